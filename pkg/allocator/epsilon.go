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

// epsilonGreedy explores a uniformly random feasible server with
// probability epsilon and exploits best fit otherwise.
type epsilonGreedy struct {
	limitRatio float64
	epsilon    float64
	rand       Rand
	metrics    *Metrics
}

// NewEpsilonGreedy returns the epsilon greedy best fit strategy.
func NewEpsilonGreedy(opts Options) Strategy {
	opts = opts.withDefaults()
	return &epsilonGreedy{
		limitRatio: opts.LimitRatio,
		epsilon:    opts.Epsilon,
		rand:       opts.Rand,
		metrics:    NewMetrics(opts.Scope, EpsilonGreedy),
	}
}

// Name is implementation of Strategy.Name
func (e *epsilonGreedy) Name() string { return EpsilonGreedy }

// Place is implementation of Strategy.Place
func (e *epsilonGreedy) Place(servers []*model.Server, vm *model.VM) bool {
	hosts := model.Hosts(servers)
	candidates := feasible(hosts, vm, e.limitRatio)
	if len(candidates) == 0 {
		return e.metrics.record(false)
	}

	var chosen int
	if e.rand.Float64() < e.epsilon {
		e.metrics.Explore.Inc(1)
		chosen = candidates[e.rand.Intn(len(candidates))]
	} else {
		e.metrics.Exploit.Inc(1)
		chosen = bestFitAmong(hosts, candidates, vm)
	}
	return e.metrics.record(servers[chosen].Allocate(vm, e.limitRatio))
}

// ConcurrencySafe is implementation of Strategy.ConcurrencySafe. The
// random source is not safe for concurrent use.
func (e *epsilonGreedy) ConcurrencySafe() bool { return false }
