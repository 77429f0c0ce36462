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
	"math/rand"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/realprakhararya/hp-greedy/pkg/model"
)

const (
	// FirstFit places into the first server with room.
	FirstFit = "first_fit"
	// BestFit places into the server with the least leftover space.
	BestFit = "best_fit"
	// NextFit resumes scanning where the previous placement ended.
	NextFit = "next_fit"
	// WeightBalanced steers servers towards UtilizationTarget.
	WeightBalanced = "weight_balanced"
	// EpsilonGreedy explores a random feasible server with probability
	// epsilon and applies best fit otherwise.
	EpsilonGreedy = "epsilon_greedy"
	// Greedy places directly and relocates one placed VM when that fails.
	Greedy = "greedy"
	// Delayed holds VMs in a waiting queue to pair them into full servers.
	Delayed = "delayed"
)

const (
	_defaultEpsilon = 0.1
	_defaultWaitK   = 3
)

var errUnknownStrategy = errors.New("unknown allocation strategy")

// Strategy places one VM onto a list of servers. Strategies mutate the
// servers they are given; infeasibility is reported as false, never as an
// error.
type Strategy interface {
	// Name returns the registered name of the strategy.
	Name() string

	// Place tries to allocate vm onto one of servers.
	Place(servers []*model.Server, vm *model.VM) bool

	// ConcurrencySafe returns true iff the strategy keeps no state across
	// calls, so that concurrent Place calls on disjoint pools are safe.
	ConcurrencySafe() bool
}

// Rand is the random source used by exploring strategies. *rand.Rand
// satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Options configures strategies created through New.
type Options struct {
	// LimitRatio is the admission ceiling shared by all strategies. New
	// rejects values outside (0, 1]; the direct constructors treat zero
	// as DefaultLimitRatio.
	LimitRatio float64
	// Epsilon is the exploration probability of EpsilonGreedy.
	Epsilon float64
	// Rand is the random source of EpsilonGreedy.
	Rand Rand
	// WaitK is the age at which Delayed forces a queued VM out.
	WaitK int
	// Scope is the parent metrics scope.
	Scope tally.Scope
}

func (o Options) withDefaults() Options {
	if o.LimitRatio == 0 {
		o.LimitRatio = model.DefaultLimitRatio
	}
	if o.Epsilon < 0 || o.Epsilon > 1 {
		o.Epsilon = _defaultEpsilon
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.WaitK <= 0 {
		o.WaitK = _defaultWaitK
	}
	if o.Scope == nil {
		o.Scope = tally.NoopScope
	}
	return o
}

// map of strategy name to constructor. Written only from init, so reads
// are safe afterwards.
var strategies = make(map[string]func(Options) Strategy)

// register keeps a strategy constructor in the strategy map.
func register(name string, newFunc func(Options) Strategy) {
	if newFunc == nil {
		log.WithField("name", name).Error("invalid strategy creator function")
		return
	}
	if _, registered := strategies[name]; registered {
		log.WithField("name", name).Error("strategy already registered")
		return
	}
	strategies[name] = newFunc
}

func init() {
	register(FirstFit, func(o Options) Strategy { return NewFirstFit(o) })
	register(BestFit, func(o Options) Strategy { return NewBestFit(o) })
	register(NextFit, func(o Options) Strategy { return NewNextFit(o) })
	register(WeightBalanced, func(o Options) Strategy { return NewWeightBalanced(o) })
	register(EpsilonGreedy, func(o Options) Strategy { return NewEpsilonGreedy(o) })
	register(Greedy, func(o Options) Strategy { return NewGreedy(o) })
	register(Delayed, func(o Options) Strategy { return NewDelayed(o) })
}

// New creates a fresh instance of the named strategy. Stateful strategies
// keep their state in the returned instance only.
func New(name string, opts Options) (Strategy, error) {
	newFunc, ok := strategies[name]
	if !ok {
		return nil, errors.Wrapf(errUnknownStrategy, "name %q", name)
	}
	if err := model.ValidateLimitRatio(opts.LimitRatio); err != nil {
		return nil, errors.Wrapf(err, "strategy %q", name)
	}
	return newFunc(opts), nil
}

// Names returns the registered strategy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsKnown reports whether name is a registered strategy.
func IsKnown(name string) bool {
	_, ok := strategies[name]
	return ok
}
