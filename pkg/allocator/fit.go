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
	"github.com/realprakhararya/hp-greedy/pkg/model"
)

// firstFit places into the first server in order with room.
type firstFit struct {
	limitRatio float64
	metrics    *Metrics
}

// NewFirstFit returns the first fit strategy.
func NewFirstFit(opts Options) Strategy {
	opts = opts.withDefaults()
	return &firstFit{
		limitRatio: opts.LimitRatio,
		metrics:    NewMetrics(opts.Scope, FirstFit),
	}
}

// Name is implementation of Strategy.Name
func (f *firstFit) Name() string { return FirstFit }

// Place is implementation of Strategy.Place
func (f *firstFit) Place(servers []*model.Server, vm *model.VM) bool {
	return f.metrics.record(placeWith(SelectFirstFit, servers, vm, f.limitRatio) >= 0)
}

// ConcurrencySafe is implementation of Strategy.ConcurrencySafe
func (f *firstFit) ConcurrencySafe() bool { return true }

// bestFit places into the feasible server with the least leftover space.
type bestFit struct {
	limitRatio float64
	metrics    *Metrics
}

// NewBestFit returns the best fit strategy.
func NewBestFit(opts Options) Strategy {
	opts = opts.withDefaults()
	return &bestFit{
		limitRatio: opts.LimitRatio,
		metrics:    NewMetrics(opts.Scope, BestFit),
	}
}

// Name is implementation of Strategy.Name
func (b *bestFit) Name() string { return BestFit }

// Place is implementation of Strategy.Place
func (b *bestFit) Place(servers []*model.Server, vm *model.VM) bool {
	return b.metrics.record(placeWith(SelectBestFit, servers, vm, b.limitRatio) >= 0)
}

// ConcurrencySafe is implementation of Strategy.ConcurrencySafe
func (b *bestFit) ConcurrencySafe() bool { return true }

// weightBalanced places into the server whose utilization after the
// placement is closest to UtilizationTarget.
type weightBalanced struct {
	limitRatio float64
	metrics    *Metrics
}

// NewWeightBalanced returns the weight balanced strategy.
func NewWeightBalanced(opts Options) Strategy {
	opts = opts.withDefaults()
	return &weightBalanced{
		limitRatio: opts.LimitRatio,
		metrics:    NewMetrics(opts.Scope, WeightBalanced),
	}
}

// Name is implementation of Strategy.Name
func (w *weightBalanced) Name() string { return WeightBalanced }

// Place is implementation of Strategy.Place
func (w *weightBalanced) Place(servers []*model.Server, vm *model.VM) bool {
	return w.metrics.record(placeWith(SelectWeightBalanced, servers, vm, w.limitRatio) >= 0)
}

// ConcurrencySafe is implementation of Strategy.ConcurrencySafe
func (w *weightBalanced) ConcurrencySafe() bool { return true }

// NextFitStrategy keeps the cursor of the last server that received a VM
// and resumes scanning from it on the next call.
type NextFitStrategy struct {
	limitRatio float64
	cursor     int
	metrics    *Metrics
}

// NewNextFit returns a next fit strategy starting at the first server.
func NewNextFit(opts Options) *NextFitStrategy {
	opts = opts.withDefaults()
	return &NextFitStrategy{
		limitRatio: opts.LimitRatio,
		metrics:    NewMetrics(opts.Scope, NextFit),
	}
}

// Name is implementation of Strategy.Name
func (n *NextFitStrategy) Name() string { return NextFit }

// Place is implementation of Strategy.Place
func (n *NextFitStrategy) Place(servers []*model.Server, vm *model.VM) bool {
	var ok bool
	n.cursor, ok = PlaceNextFit(servers, vm, n.cursor, n.limitRatio)
	return n.metrics.record(ok)
}

// ConcurrencySafe is implementation of Strategy.ConcurrencySafe
func (n *NextFitStrategy) ConcurrencySafe() bool { return false }

// Cursor returns the index the next scan starts from.
func (n *NextFitStrategy) Cursor() int { return n.cursor }

// PlaceNextFit allocates vm scanning circularly from cursor. It returns the
// index of the server that received the VM, or the unchanged cursor when no
// server could take it.
func PlaceNextFit(servers []*model.Server, vm *model.VM, cursor int, limitRatio float64) (int, bool) {
	i := SelectNextFit(model.Hosts(servers), vm, limitRatio, cursor)
	if i < 0 {
		return cursor, false
	}
	servers[i].Allocate(vm, limitRatio)
	return i, true
}

// placeWith allocates vm on the server chosen by selector and returns its
// index, or -1.
func placeWith(selector Selector, servers []*model.Server, vm *model.VM, limitRatio float64) int {
	i := selector(model.Hosts(servers), vm, limitRatio)
	if i < 0 {
		return -1
	}
	if !servers[i].Allocate(vm, limitRatio) {
		return -1
	}
	return i
}
