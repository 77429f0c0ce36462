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
	"math"

	"github.com/realprakhararya/hp-greedy/pkg/model"
)

// UtilizationTarget is the occupancy the weight balanced rule steers to.
const UtilizationTarget = 0.75

// Selector picks the index of the host that should receive vm, or -1 when
// no host can take it. Selectors never mutate hosts, which lets the
// coordinator evaluate them against its mirrors before dispatching.
type Selector func(hosts []model.Host, vm *model.VM, limitRatio float64) int

// SelectorFor returns the selection rule for the given algorithm name.
// Only rules that can be evaluated without per-call state are available;
// every other name falls back to first fit.
func SelectorFor(name string) Selector {
	switch name {
	case BestFit:
		return SelectBestFit
	case WeightBalanced:
		return SelectWeightBalanced
	default:
		return SelectFirstFit
	}
}

// SelectFirstFit returns the first host in order that can take vm.
func SelectFirstFit(hosts []model.Host, vm *model.VM, limitRatio float64) int {
	for i, h := range hosts {
		if h.CanAllocate(vm, limitRatio) {
			return i
		}
	}
	return -1
}

// SelectBestFit returns the feasible host leaving the least free space
// behind. The first host encountered wins ties.
func SelectBestFit(hosts []model.Host, vm *model.VM, limitRatio float64) int {
	return bestFitAmong(hosts, feasible(hosts, vm, limitRatio), vm)
}

// SelectWeightBalanced scores every feasible host by
// 1 - |new_utilization - 0.75| and returns the best one.
func SelectWeightBalanced(hosts []model.Host, vm *model.VM, limitRatio float64) int {
	chosen := -1
	bestScore := math.Inf(-1)
	for i, h := range hosts {
		if !h.CanAllocate(vm, limitRatio) {
			continue
		}
		score := weightScore(h, vm)
		if score > bestScore {
			bestScore = score
			chosen = i
		}
	}
	return chosen
}

// SelectNextFit scans hosts circularly starting at cursor, visiting each
// host exactly once. Out of range cursors restart at 0.
func SelectNextFit(hosts []model.Host, vm *model.VM, limitRatio float64, cursor int) int {
	n := len(hosts)
	if cursor < 0 || cursor >= n {
		cursor = 0
	}
	for checked := 0; checked < n; checked++ {
		i := (cursor + checked) % n
		if hosts[i].CanAllocate(vm, limitRatio) {
			return i
		}
	}
	return -1
}

func weightScore(h model.Host, vm *model.VM) float64 {
	newUtilization := float64(h.Used()+vm.Size()) / float64(h.Capacity())
	return 1 - math.Abs(newUtilization-UtilizationTarget)
}

// feasible returns the indexes of hosts that can take vm, in order.
func feasible(hosts []model.Host, vm *model.VM, limitRatio float64) []int {
	var result []int
	for i, h := range hosts {
		if h.CanAllocate(vm, limitRatio) {
			result = append(result, i)
		}
	}
	return result
}

// bestFitAmong applies the best fit rule to the candidate indexes.
func bestFitAmong(hosts []model.Host, candidates []int, vm *model.VM) int {
	chosen := -1
	var minRemaining int64
	for _, i := range candidates {
		remaining := hosts[i].Free() - vm.Size()
		if chosen < 0 || remaining < minRemaining {
			minRemaining = remaining
			chosen = i
		}
	}
	return chosen
}
