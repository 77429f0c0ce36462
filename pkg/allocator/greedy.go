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

package allocator

import (
	log "github.com/sirupsen/logrus"

	"github.com/realprakhararya/hp-greedy/pkg/model"
)

// greedy first tries a direct first fit placement. When that fails it
// evicts one placed VM at a time, places the new VM, and re-places the
// evicted one anywhere in the pool. A relocation that cannot re-place the
// evicted VM is rolled back before the next candidate is tried, so a
// failed call leaves the pool exactly as it found it.
type greedy struct {
	limitRatio float64
	metrics    *Metrics
}

// NewGreedy returns the greedy strategy with single step reassignment.
func NewGreedy(opts Options) Strategy {
	opts = opts.withDefaults()
	return &greedy{
		limitRatio: opts.LimitRatio,
		metrics:    NewMetrics(opts.Scope, Greedy),
	}
}

// Name is implementation of Strategy.Name
func (g *greedy) Name() string { return Greedy }

// ConcurrencySafe is implementation of Strategy.ConcurrencySafe
func (g *greedy) ConcurrencySafe() bool { return true }

// placement is one VM currently allocated on one server.
type placement struct {
	server *model.Server
	vm     *model.VM
}

// Place is implementation of Strategy.Place
func (g *greedy) Place(servers []*model.Server, vm *model.VM) bool {
	if placeWith(SelectFirstFit, servers, vm, g.limitRatio) >= 0 {
		return g.metrics.record(true)
	}

	var candidates []placement
	for _, s := range servers {
		for _, placed := range s.VMs() {
			candidates = append(candidates, placement{server: s, vm: placed})
		}
	}

	for _, c := range candidates {
		g.metrics.ReassignAttempt.Inc(1)
		if g.relocate(servers, c, vm) {
			g.metrics.ReassignCommit.Inc(1)
			log.WithFields(log.Fields{
				"vm":      vm.Size(),
				"evicted": c.vm.Size(),
			}).Debug("Placed vm by relocating an allocated vm")
			return g.metrics.record(true)
		}
	}
	return g.metrics.record(false)
}

// relocate evicts c.vm, places vm and re-places c.vm. On partial failure
// every move is undone and false is returned.
func (g *greedy) relocate(servers []*model.Server, c placement, vm *model.VM) bool {
	position := c.server.IndexOf(c.vm.ID)
	if position < 0 {
		return false
	}
	if err := c.server.Remove(c.vm.ID); err != nil {
		return false
	}

	if target := placeWith(SelectFirstFit, servers, vm, g.limitRatio); target >= 0 {
		if placeWith(SelectFirstFit, servers, c.vm, g.limitRatio) >= 0 {
			return true
		}
		g.metrics.ReassignRollback.Inc(1)
		if err := servers[target].Remove(vm.ID); err != nil {
			log.WithError(err).Error("Failed to roll back tentative placement")
		}
	}
	c.server.InsertAt(position, c.vm)
	return false
}

// Grow appends one server sized like the first one and places vm on it.
// The pool is returned unchanged when vm does not fit an empty server.
func Grow(servers []*model.Server, vm *model.VM, limitRatio float64) ([]*model.Server, bool) {
	if len(servers) == 0 {
		return servers, false
	}
	server := model.NewServer(servers[0].Capacity())
	if !server.Allocate(vm, limitRatio) {
		return servers, false
	}
	return append(servers, server), true
}
