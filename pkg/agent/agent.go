// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/realprakhararya/hp-greedy/pkg/common/background"
	"github.com/realprakhararya/hp-greedy/pkg/model"
	"github.com/realprakhararya/hp-greedy/pkg/wire"
)

const (
	_heartbeatWorkName = "heartbeat"
	_loopbackIP        = "127.0.0.1"
	// Any address works; a UDP dial sends nothing and only picks the
	// outbound interface.
	_probeAddress = "10.255.255.255:1"
)

var errInvalidMemory = errors.New("memory must be positive")

// Agent owns the authoritative server of one host.
type Agent struct {
	cfg     Config
	metrics *Metrics

	mu     sync.Mutex
	server *model.Server
	ip     string
	port   int
	// synced is set once Start has rebuilt the server from the
	// coordinator's inventory. Allocations are refused until then since
	// the rebuild replaces the server's contents.
	synced bool

	listener *wire.Server
	works    background.Manager
}

// New returns an agent that has not contacted the coordinator yet.
func New(cfg Config, scope tally.Scope) (*Agent, error) {
	if err := model.ValidateLimitRatio(cfg.LimitRatio); err != nil {
		return nil, err
	}
	if cfg.Capacity <= 0 {
		return nil, errors.New("capacity must be positive")
	}

	address := cfg.ListenAddress
	if address == "" {
		address = fmt.Sprintf(":%d", cfg.ListenPort)
	}
	ip := cfg.AdvertiseIP
	if ip == "" {
		ip = DetectIP()
	}

	a := &Agent{
		cfg:      cfg,
		metrics:  NewMetrics(scope),
		server:   model.NewServer(cfg.Capacity),
		ip:       ip,
		port:     cfg.ListenPort,
		listener: wire.NewServer("agent", address, cfg.RequestTimeout, scope),
	}
	a.listener.Handle(wire.TypeAllocateVM, a.handleAllocate)
	a.listener.Handle(wire.TypeServerStatus, a.handleStatus)

	works, err := background.NewManager(background.Work{
		Name:       _heartbeatWorkName,
		Period:     cfg.HeartbeatInterval,
		RunOnStart: true,
		Func:       a.sendHeartbeat,
	})
	if err != nil {
		return nil, err
	}
	a.works = works
	return a, nil
}

// Start opens the listener, rebuilds local state from the coordinator's
// inventory, registers and starts heartbeating. Failing to reach the
// coordinator is logged and returned but the agent keeps running; the
// heartbeat registers it once the coordinator is reachable.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.listener.Start(); err != nil {
		return err
	}
	if tcp, ok := a.listener.Addr().(*net.TCPAddr); ok {
		a.mu.Lock()
		a.port = tcp.Port
		a.mu.Unlock()
	}

	var result *multierror.Error
	// The inventory is read before registering since registration
	// resets the coordinator's mirror of this agent.
	if err := a.Sync(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	a.mu.Lock()
	a.synced = true
	a.mu.Unlock()
	if err := a.Register(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	a.works.Start()

	log.WithFields(log.Fields{
		"ip":       a.ip,
		"port":     a.Port(),
		"capacity": a.cfg.Capacity,
	}).Info("Agent started")

	if err := result.ErrorOrNil(); err != nil {
		log.WithError(err).Warn("Coordinator unreachable during start")
		return err
	}
	return nil
}

// Stop stops heartbeating and closes the listener.
func (a *Agent) Stop() {
	a.works.Stop()
	a.listener.Stop()
}

// IP returns the address advertised to the coordinator.
func (a *Agent) IP() string { return a.ip }

// Port returns the advertised listen port.
func (a *Agent) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port
}

// Address returns the advertised host:port.
func (a *Agent) Address() string {
	return net.JoinHostPort(a.ip, strconv.Itoa(a.Port()))
}

// Allocate admits a VM of memory into the authoritative server. It
// reports false until Start has synced the inventory.
func (a *Agent) Allocate(memory int64) (bool, error) {
	if memory <= 0 {
		return false, errInvalidMemory
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.synced {
		a.metrics.Rejected.Inc(1)
		log.WithField("memory", memory).Warn("Rejecting allocate request before inventory sync")
		return false, nil
	}

	ok := a.server.Allocate(model.NewVM(memory), a.cfg.LimitRatio)
	if ok {
		a.metrics.Accepted.Inc(1)
	} else {
		a.metrics.Rejected.Inc(1)
	}
	a.updateGauges()
	log.WithFields(log.Fields{
		"memory":    memory,
		"allocated": ok,
		"free":      a.server.Free(),
	}).Info("Allocate request")
	return ok, nil
}

// Status returns a snapshot of the authoritative server.
func (a *Agent) Status() model.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server.Snapshot()
}

// Register announces this agent to the coordinator.
func (a *Agent) Register(ctx context.Context) error {
	resp, err := wire.Call(ctx, a.cfg.CoordinatorAddress, &wire.Request{
		Type:     wire.TypeRegister,
		IP:       a.ip,
		Port:     a.Port(),
		Capacity: a.cfg.Capacity,
	}, a.cfg.RequestTimeout)
	if err != nil {
		return errors.Wrap(err, "register")
	}
	if resp.Status != wire.StatusRegistered {
		return errors.Errorf("register: unexpected status %q", resp.Status)
	}
	log.WithField("coordinator", a.cfg.CoordinatorAddress).Info("Registered with coordinator")
	return nil
}

// Sync rebuilds the authoritative server from the coordinator's inventory,
// keeping only the VMs tagged with this agent's address. It replaces the
// server's contents, so Start runs it before allocations are admitted.
func (a *Agent) Sync(ctx context.Context) error {
	resp, err := wire.Call(ctx, a.cfg.CoordinatorAddress, &wire.Request{
		Type: wire.TypeSyncVMs,
	}, a.cfg.RequestTimeout)
	if err != nil {
		return errors.Wrap(err, "sync vms")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.server.Clear()
	for _, vm := range resp.VMs {
		if vm.ServerIP != a.ip || (vm.ServerPort != 0 && vm.ServerPort != a.port) {
			continue
		}
		if !a.server.Allocate(model.NewVM(vm.Memory), a.cfg.LimitRatio) {
			log.WithField("memory", vm.Memory).Warn("Dropping synced vm that does not fit")
		}
	}
	a.updateGauges()
	log.WithField("vms", len(a.server.Sizes())).Info("Synced vms from coordinator")
	return nil
}

// sendHeartbeat pushes the full inventory to the coordinator. Failures are
// counted and retried on the next tick.
func (a *Agent) sendHeartbeat(ctx context.Context) {
	a.mu.Lock()
	req := &wire.Request{
		Type:         wire.TypeHeartbeat,
		IP:           a.ip,
		Port:         a.port,
		Capacity:     a.cfg.Capacity,
		AllocatedVMs: a.server.Sizes(),
	}
	a.mu.Unlock()

	if err := wire.Notify(ctx, a.cfg.CoordinatorAddress, req, a.cfg.RequestTimeout); err != nil {
		a.metrics.HeartbeatFailed.Inc(1)
		log.WithError(err).Warn("Heartbeat failed")
		return
	}
	a.metrics.HeartbeatSent.Inc(1)
}

func (a *Agent) handleAllocate(_ context.Context, req *wire.Request, _ net.Addr) (*wire.Response, error) {
	ok, err := a.Allocate(req.Memory)
	if err != nil {
		return nil, err
	}
	if ok {
		return &wire.Response{Status: wire.StatusAllocated}, nil
	}
	return &wire.Response{Status: wire.StatusFailed}, nil
}

func (a *Agent) handleStatus(context.Context, *wire.Request, net.Addr) (*wire.Response, error) {
	status := a.Status()
	return &wire.Response{
		Status:       wire.StatusOK,
		Capacity:     status.Capacity,
		Used:         status.Used,
		Free:         status.Free,
		AllocatedVMs: status.VMs,
	}, nil
}

func (a *Agent) updateGauges() {
	a.metrics.Used.Update(float64(a.server.Used()))
	a.metrics.Free.Update(float64(a.server.Free()))
}

// DetectIP returns the address of the outbound interface, or the loopback
// address if none is usable.
func DetectIP() string {
	conn, err := net.Dial("udp", _probeAddress)
	if err != nil {
		return _loopbackIP
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && !addr.IP.IsUnspecified() {
		return addr.IP.String()
	}
	return _loopbackIP
}
