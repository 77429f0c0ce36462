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

package coordinator

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/realprakhararya/hp-greedy/pkg/allocator"
	"github.com/realprakhararya/hp-greedy/pkg/common/background"
	"github.com/realprakhararya/hp-greedy/pkg/model"
	"github.com/realprakhararya/hp-greedy/pkg/wire"
)

const _livenessWorkName = "liveness_monitor"

var (
	errInvalidLimitRatio = model.ErrInvalidLimitRatio
	errInvalidMemory     = errors.New("memory must be positive")
)

// Coordinator mirrors the agents' servers and dispatches placements to them.
type Coordinator struct {
	cfg        Config
	registry   *Registry
	dispatcher AgentDispatcher
	server     *wire.Server
	works      background.Manager
	metrics    *Metrics

	now func() time.Time
}

// New returns a coordinator serving on the configured address once
// started.
func New(cfg Config, dispatcher AgentDispatcher, scope tally.Scope) (*Coordinator, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if dispatcher == nil {
		dispatcher = NewAgentDispatcher(cfg.DispatchTimeout)
	}

	address := cfg.ListenAddress
	if address == "" {
		address = fmt.Sprintf(":%d", cfg.ListenPort)
	}

	c := &Coordinator{
		cfg:        cfg,
		registry:   NewRegistry(),
		dispatcher: dispatcher,
		server:     wire.NewServer("coordinator", address, cfg.RequestTimeout, scope),
		metrics:    NewMetrics(scope),
		now:        time.Now,
	}
	c.server.Handle(wire.TypeRegister, c.handleRegister)
	c.server.Handle(wire.TypeHeartbeat, c.handleHeartbeat)
	c.server.Handle(wire.TypeAllocateVM, c.handleAllocate)
	c.server.Handle(wire.TypeServerStatus, c.handleStatus)
	c.server.Handle(wire.TypeSyncVMs, c.handleSync)

	works, err := background.NewManager(background.Work{
		Name:   _livenessWorkName,
		Period: cfg.MonitorInterval,
		Func:   func(context.Context) { c.Sweep() },
	})
	if err != nil {
		return nil, err
	}
	c.works = works
	return c, nil
}

// Start opens the listener and the liveness monitor.
func (c *Coordinator) Start() error {
	if err := c.server.Start(); err != nil {
		return err
	}
	c.works.Start()
	return nil
}

// Stop closes the listener, waits for in-flight requests and stops the
// liveness monitor.
func (c *Coordinator) Stop() {
	c.server.Stop()
	c.works.Stop()
}

// Addr returns the bound listen address.
func (c *Coordinator) Addr() net.Addr {
	return c.server.Addr()
}

// Register creates or overwrites the mirror of an agent.
func (c *Coordinator) Register(ip string, port int, capacity int64) {
	port, capacity = withDefaults(port, capacity)
	c.registry.Register(ip, port, capacity, c.now())
	c.metrics.Registered.Inc(1)
	c.metrics.Agents.Update(float64(c.registry.Len()))
	log.WithFields(log.Fields{
		"ip":       ip,
		"port":     port,
		"capacity": capacity,
	}).Info("Registered agent")
}

// Heartbeat replaces the mirror of an agent with sizes.
func (c *Coordinator) Heartbeat(ip string, port int, capacity int64, sizes []int64) {
	port, capacity = withDefaults(port, capacity)
	registered := c.registry.Heartbeat(ip, port, capacity, sizes, c.now())
	c.metrics.Heartbeats.Inc(1)

	entry := log.WithFields(log.Fields{
		"ip":  ip,
		"vms": sizes,
	})
	if registered {
		c.metrics.Registered.Inc(1)
		c.metrics.Agents.Update(float64(c.registry.Len()))
		entry.Info("Registered agent on heartbeat")
		return
	}
	entry.Debug("Heartbeat")
}

// Place chooses an active agent for a VM of memory with the selection
// rule of algorithm and dispatches the allocation to it. Unknown
// algorithms select first fit. An empty algorithm uses the configured
// default. Infeasibility and agent rejection are a false result; an
// error is returned only for an invalid request.
func (c *Coordinator) Place(ctx context.Context, memory int64, algorithm string) (bool, error) {
	if memory <= 0 {
		return false, errInvalidMemory
	}
	if algorithm == "" {
		algorithm = c.cfg.DefaultAlgorithm
	}
	start := c.now()
	defer func() { c.metrics.PlaceDuration.Record(c.now().Sub(start)) }()

	vm := model.NewVM(memory)
	logEntry := log.WithFields(log.Fields{
		"memory":    memory,
		"algorithm": algorithm,
	})
	placed, candidates, err := c.registry.Place(
		vm,
		allocator.SelectorFor(algorithm),
		c.cfg.LimitRatio,
		func(target Record) (bool, error) {
			logEntry.WithField("target", target.Address()).Info("Selected agent")
			return c.dispatcher.Allocate(ctx, target.Address(), memory)
		})

	switch {
	case err != nil:
		c.metrics.DispatchError.Inc(1)
		logEntry.WithError(err).Warn("Dispatch to agent failed")
	case placed:
		c.metrics.PlaceSuccess.Inc(1)
		logEntry.Info("Placed vm")
		return true, nil
	case candidates == 0:
		c.metrics.NoCandidate.Inc(1)
		logEntry.Info("No active agents")
	default:
		c.metrics.Rejected.Inc(1)
		logEntry.Info("No agent accepted vm")
	}
	c.metrics.PlaceFail.Inc(1)
	return false, nil
}

// Status returns the mirror of every registered agent.
func (c *Coordinator) Status() []wire.ServerInfo {
	return c.registry.Status()
}

// Inventory returns the VMs mirrored on active agents.
func (c *Coordinator) Inventory() []wire.VMInfo {
	return c.registry.Inventory()
}

// Sweep evicts agents silent past the heartbeat timeout.
func (c *Coordinator) Sweep() []string {
	evicted := c.registry.Sweep(c.now(), c.cfg.HeartbeatTimeout)
	for _, address := range evicted {
		c.metrics.Evicted.Inc(1)
		log.WithField("address", address).Info("Agent timed out, removing from pool")
	}
	if len(evicted) > 0 {
		c.metrics.Agents.Update(float64(c.registry.Len()))
	}
	return evicted
}

func (c *Coordinator) handleRegister(_ context.Context, req *wire.Request, peer net.Addr) (*wire.Response, error) {
	ip := req.IP
	if ip == "" {
		ip = hostOf(peer)
	}
	c.Register(ip, req.Port, req.Capacity)
	return &wire.Response{Status: wire.StatusRegistered}, nil
}

func (c *Coordinator) handleHeartbeat(_ context.Context, req *wire.Request, peer net.Addr) (*wire.Response, error) {
	ip := req.IP
	if ip == "" {
		ip = hostOf(peer)
	}
	c.Heartbeat(ip, req.Port, req.Capacity, req.AllocatedVMs)
	return &wire.Response{Status: wire.StatusOK}, nil
}

func (c *Coordinator) handleAllocate(ctx context.Context, req *wire.Request, _ net.Addr) (*wire.Response, error) {
	placed, err := c.Place(ctx, req.Memory, req.Algorithm)
	if err != nil {
		return nil, err
	}
	if placed {
		return &wire.Response{Status: wire.StatusAllocated}, nil
	}
	return &wire.Response{Status: wire.StatusFailed}, nil
}

func (c *Coordinator) handleStatus(context.Context, *wire.Request, net.Addr) (*wire.Response, error) {
	return &wire.Response{Status: wire.StatusOK, Servers: c.Status()}, nil
}

func (c *Coordinator) handleSync(context.Context, *wire.Request, net.Addr) (*wire.Response, error) {
	return &wire.Response{Status: wire.StatusOK, VMs: c.Inventory()}, nil
}

func withDefaults(port int, capacity int64) (int, int64) {
	if port <= 0 {
		port = DefaultAgentPort
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return port, capacity
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
