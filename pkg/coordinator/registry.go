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
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/realprakhararya/hp-greedy/pkg/allocator"
	"github.com/realprakhararya/hp-greedy/pkg/model"
	"github.com/realprakhararya/hp-greedy/pkg/wire"
)

// Record is the network and liveness state of a mirrored agent.
type Record struct {
	IP            string
	Port          int
	LastHeartbeat time.Time
	Active        bool
}

// Address is the host:port the agent listens on.
func (r Record) Address() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// entry mirrors one agent: a plain server plus its record.
type entry struct {
	*model.Server
	Record
}

// Registry holds the mirrored agents keyed by their listen address, in
// registration order. All access goes through one mutex.
type Registry struct {
	sync.Mutex

	entries map[string]*entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register creates or overwrites the entry of an agent. The mirror starts
// empty.
func (r *Registry) Register(ip string, port int, capacity int64, now time.Time) {
	r.Lock()
	defer r.Unlock()
	r.put(ip, port, capacity, now)
}

// Heartbeat replaces the mirrored VMs of an agent with sizes and refreshes
// its liveness. It registers unknown agents and reports whether it did.
func (r *Registry) Heartbeat(
	ip string,
	port int,
	capacity int64,
	sizes []int64,
	now time.Time,
) (registered bool) {
	r.Lock()
	defer r.Unlock()

	e, ok := r.entries[key(ip, port)]
	if !ok {
		e = r.put(ip, port, capacity, now)
	}
	vms := make([]*model.VM, 0, len(sizes))
	for _, size := range sizes {
		vms = append(vms, model.NewVM(size))
	}
	e.Replace(vms)
	e.LastHeartbeat = now
	e.Active = true
	return !ok
}

// Sweep deletes entries silent for longer than timeout and returns the
// addresses deleted.
func (r *Registry) Sweep(now time.Time, timeout time.Duration) []string {
	r.Lock()
	defer r.Unlock()

	var evicted []string
	kept := r.order[:0]
	for _, k := range r.order {
		e := r.entries[k]
		if now.Sub(e.LastHeartbeat) > timeout {
			e.Active = false
			delete(r.entries, k)
			evicted = append(evicted, k)
			continue
		}
		kept = append(kept, k)
	}
	r.order = kept
	return evicted
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.Lock()
	defer r.Unlock()
	return len(r.order)
}

// Status returns every entry, active or not.
func (r *Registry) Status() []wire.ServerInfo {
	r.Lock()
	defer r.Unlock()

	servers := make([]wire.ServerInfo, 0, len(r.order))
	for _, k := range r.order {
		e := r.entries[k]
		servers = append(servers, wire.ServerInfo{
			IP:       e.IP,
			Port:     e.Port,
			Capacity: e.Capacity(),
			Used:     e.Used(),
			Free:     e.Free(),
			Active:   e.Active,
			VMs:      e.Sizes(),
		})
	}
	return servers
}

// Inventory returns every VM mirrored on an active entry.
func (r *Registry) Inventory() []wire.VMInfo {
	r.Lock()
	defer r.Unlock()

	vms := []wire.VMInfo{}
	for _, k := range r.order {
		e := r.entries[k]
		if !e.Active {
			continue
		}
		for _, size := range e.Sizes() {
			vms = append(vms, wire.VMInfo{
				ServerIP:   e.IP,
				ServerPort: e.Port,
				Memory:     size,
			})
		}
	}
	return vms
}

// Place selects an active entry for vm with selector and calls dispatch on
// it. The lock is held across both so decisions never interleave. The
// mirror records vm only when dispatch reports success.
func (r *Registry) Place(
	vm *model.VM,
	selector allocator.Selector,
	limitRatio float64,
	dispatch func(Record) (bool, error),
) (placed bool, candidates int, err error) {
	r.Lock()
	defer r.Unlock()

	var active []*entry
	for _, k := range r.order {
		if e := r.entries[k]; e.Active {
			active = append(active, e)
		}
	}
	hosts := make([]model.Host, len(active))
	for i, e := range active {
		hosts[i] = e.Server
	}

	i := selector(hosts, vm, limitRatio)
	if i < 0 {
		return false, len(active), nil
	}
	target := active[i]
	ok, err := dispatch(target.Record)
	if err != nil || !ok {
		return false, len(active), err
	}
	target.Allocate(vm, limitRatio)
	return true, len(active), nil
}

func (r *Registry) put(ip string, port int, capacity int64, now time.Time) *entry {
	k := key(ip, port)
	if _, ok := r.entries[k]; !ok {
		r.order = append(r.order, k)
	}
	e := &entry{
		Server: model.NewServer(capacity),
		Record: Record{IP: ip, Port: port, LastHeartbeat: now, Active: true},
	}
	r.entries[k] = e
	return e
}

func key(ip string, port int) string {
	return Record{IP: ip, Port: port}.Address()
}
