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

// QueuedVM is a VM held in the waiting queue of the delayed strategy.
type QueuedVM struct {
	VM  *model.VM
	Age int
}

// DelayedStrategy implements delayed bin packing with two item matching.
// Each call runs, in order:
//
//  1. perfect fit: a server whose free space equals the VM size takes it;
//  2. pairing: a queued VM whose size sums with the new one to the server
//     capacity is placed together with it on one server;
//  3. enqueue: otherwise the VM waits in the queue;
//  4. aging: every queued VM ages by one, and VMs reaching waitK are
//     forced through first fit and leave the queue whatever the outcome.
//
// A VM held in the queue counts as placed. A forced placement that fails
// makes the whole call report failure.
type DelayedStrategy struct {
	limitRatio float64
	waitK      int
	queue      []QueuedVM
	metrics    *Metrics
}

// NewDelayed returns a delayed strategy with an empty queue.
func NewDelayed(opts Options) *DelayedStrategy {
	opts = opts.withDefaults()
	return &DelayedStrategy{
		limitRatio: opts.LimitRatio,
		waitK:      opts.WaitK,
		metrics:    NewMetrics(opts.Scope, Delayed),
	}
}

// Name is implementation of Strategy.Name
func (d *DelayedStrategy) Name() string { return Delayed }

// ConcurrencySafe is implementation of Strategy.ConcurrencySafe
func (d *DelayedStrategy) ConcurrencySafe() bool { return false }

// Pending returns a copy of the waiting queue, oldest first.
func (d *DelayedStrategy) Pending() []QueuedVM {
	return append([]QueuedVM(nil), d.queue...)
}

// Place is implementation of Strategy.Place
func (d *DelayedStrategy) Place(servers []*model.Server, vm *model.VM) bool {
	if len(servers) == 0 {
		return d.metrics.record(false)
	}

	switch {
	case d.perfectFit(servers, vm):
		d.metrics.PerfectFit.Inc(1)
	case d.pair(servers, vm):
		d.metrics.PairMatched.Inc(1)
	default:
		d.queue = append(d.queue, QueuedVM{VM: vm})
		d.metrics.Enqueued.Inc(1)
	}

	ok := d.age(servers)
	d.metrics.QueueDepth.Update(float64(len(d.queue)))
	return d.metrics.record(ok)
}

// perfectFit places vm on a server whose free space equals its size. The
// admission check still applies, so below a limit ratio of 1 an exact fit
// that would cross the ceiling is not placed and vm falls through to the
// queue.
func (d *DelayedStrategy) perfectFit(servers []*model.Server, vm *model.VM) bool {
	for _, s := range servers {
		if s.Free() == vm.Size() && s.Allocate(vm, d.limitRatio) {
			return true
		}
	}
	return false
}

// pair matches vm with the first queued VM completing a full server. The
// capacity of the first server is taken as the uniform capacity.
func (d *DelayedStrategy) pair(servers []*model.Server, vm *model.VM) bool {
	capacity := servers[0].Capacity()
	for i, queued := range d.queue {
		if queued.VM.Size()+vm.Size() != capacity {
			continue
		}
		both := &model.VM{Memory: queued.VM.Size() + vm.Size()}
		for _, s := range servers {
			if !s.CanAllocate(both, d.limitRatio) {
				continue
			}
			s.Allocate(queued.VM, d.limitRatio)
			s.Allocate(vm, d.limitRatio)
			d.queue = append(d.queue[:i:i], d.queue[i+1:]...)
			return true
		}
		return false
	}
	return false
}

// age increments every queued VM and forces out those reaching waitK.
// It returns false if any forced placement failed.
func (d *DelayedStrategy) age(servers []*model.Server) bool {
	ok := true
	remaining := d.queue[:0:0]
	for _, queued := range d.queue {
		queued.Age++
		if queued.Age < d.waitK {
			remaining = append(remaining, queued)
			continue
		}
		d.metrics.ForcedPlace.Inc(1)
		if placeWith(SelectFirstFit, servers, queued.VM, d.limitRatio) < 0 {
			d.metrics.ForcedFail.Inc(1)
			log.WithField("vm", queued.VM.Size()).
				Info("Dropping queued vm that could not be placed after waiting")
			ok = false
		}
	}
	d.queue = remaining
	return ok
}
