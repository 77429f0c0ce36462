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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"

	"github.com/realprakhararya/hp-greedy/pkg/model"
)

// fixedRand returns a fixed exploration draw and a fixed index offset.
type fixedRand struct {
	draw   float64
	offset int
}

func (r *fixedRand) Float64() float64 { return r.draw }
func (r *fixedRand) Intn(n int) int   { return r.offset % n }

// newPool creates servers of the given capacity preloaded with VMs of the
// given sizes.
func newPool(capacity int64, loads ...[]int64) []*model.Server {
	servers := make([]*model.Server, len(loads))
	for i, sizes := range loads {
		servers[i] = model.NewServer(capacity)
		for _, size := range sizes {
			servers[i].Allocate(model.NewVM(size), model.DefaultLimitRatio)
		}
	}
	return servers
}

func sizes(servers []*model.Server) [][]int64 {
	result := make([][]int64, len(servers))
	for i, s := range servers {
		result[i] = s.Sizes()
	}
	return result
}

// poolState captures the exact VM identities on every server.
func poolState(servers []*model.Server) [][]string {
	state := make([][]string, len(servers))
	for i, s := range servers {
		state[i] = []string{}
		for _, vm := range s.VMs() {
			state[i] = append(state[i], vm.ID)
		}
	}
	return state
}

type FitTestSuite struct {
	suite.Suite
	opts Options
}

func TestFitTestSuite(t *testing.T) {
	suite.Run(t, new(FitTestSuite))
}

func (suite *FitTestSuite) SetupTest() {
	suite.opts = Options{LimitRatio: 1.0}
}

func (suite *FitTestSuite) TestSingleServerScenario() {
	servers := newPool(100, nil)
	strategy := NewBestFit(suite.opts)

	suite.True(strategy.Place(servers, model.NewVM(60)))
	suite.EqualValues(40, servers[0].Free())
	suite.False(strategy.Place(servers, model.NewVM(50)))
	suite.EqualValues(40, servers[0].Free())
	suite.True(strategy.Place(servers, model.NewVM(40)))
	suite.EqualValues(0, servers[0].Free())
}

func (suite *FitTestSuite) TestFirstFitUsesInputOrder() {
	servers := newPool(100, []int64{90}, []int64{50}, nil)
	suite.True(NewFirstFit(suite.opts).Place(servers, model.NewVM(30)))
	suite.Equal([][]int64{{90}, {50, 30}, {}}, sizes(servers))
}

func (suite *FitTestSuite) TestBestFitChoosesLeastLeftover() {
	servers := newPool(100, []int64{10}, []int64{60}, []int64{40})
	suite.True(NewBestFit(suite.opts).Place(servers, model.NewVM(30)))
	suite.Equal([][]int64{{10}, {60, 30}, {40}}, sizes(servers))
}

func (suite *FitTestSuite) TestBestFitTieGoesToFirst() {
	servers := newPool(100, []int64{50}, []int64{20}, []int64{50})
	suite.Equal(0, SelectBestFit(model.Hosts(servers), model.NewVM(30), 1.0))
}

func (suite *FitTestSuite) TestBestFitIsMinimal() {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		servers := make([]*model.Server, 6)
		for i := range servers {
			servers[i] = model.NewServer(100)
			servers[i].Allocate(model.NewVM(int64(r.Intn(100))), 1.0)
		}
		vm := model.NewVM(int64(1 + r.Intn(60)))
		hosts := model.Hosts(servers)
		chosen := SelectBestFit(hosts, vm, 1.0)
		if chosen < 0 {
			for _, h := range hosts {
				suite.False(h.CanAllocate(vm, 1.0))
			}
			continue
		}
		for i, h := range hosts {
			if !h.CanAllocate(vm, 1.0) {
				continue
			}
			suite.LessOrEqual(hosts[chosen].Free()-vm.Size(), h.Free()-vm.Size())
			if h.Free() == hosts[chosen].Free() {
				suite.LessOrEqual(chosen, i)
			}
		}
	}
}

func (suite *FitTestSuite) TestWeightBalancedSteersToTarget() {
	// New utilizations: 0.3, 0.8, 1.0. 0.8 is closest to 0.75.
	servers := newPool(100, nil, []int64{50}, []int64{70})
	suite.True(NewWeightBalanced(suite.opts).Place(servers, model.NewVM(30)))
	suite.Equal([][]int64{{}, {50, 30}, {70}}, sizes(servers))
}

func (suite *FitTestSuite) TestWeightBalancedSkipsInfeasible() {
	servers := newPool(100, []int64{80}, nil)
	suite.Equal(1, SelectWeightBalanced(model.Hosts(servers), model.NewVM(30), 1.0))
	suite.Equal(-1, SelectWeightBalanced(model.Hosts(servers), model.NewVM(101), 1.0))
}

func (suite *FitTestSuite) TestNextFitCursor() {
	servers := newPool(100, nil, nil, nil)
	strategy := NewNextFit(suite.opts)

	suite.True(strategy.Place(servers, model.NewVM(70)))
	suite.Equal(0, strategy.Cursor())
	suite.True(strategy.Place(servers, model.NewVM(70)))
	suite.Equal(1, strategy.Cursor())
	// Server 0 has room for 20 but the scan resumes at the cursor.
	suite.True(strategy.Place(servers, model.NewVM(20)))
	suite.Equal(1, strategy.Cursor())
	suite.Equal([][]int64{{70}, {70, 20}, {}}, sizes(servers))

	suite.True(strategy.Place(servers, model.NewVM(80)))
	suite.Equal(2, strategy.Cursor())
	// Server 2 is left with 20, so the scan wraps around to server 0.
	suite.True(strategy.Place(servers, model.NewVM(30)))
	suite.Equal(0, strategy.Cursor())
}

func (suite *FitTestSuite) TestNextFitFailureKeepsCursor() {
	servers := newPool(100, []int64{90}, []int64{90})
	cursor, ok := PlaceNextFit(servers, model.NewVM(20), 1, 1.0)
	suite.False(ok)
	suite.Equal(1, cursor)

	cursor, ok = PlaceNextFit(servers, model.NewVM(5), 7, 1.0)
	suite.True(ok)
	suite.Equal(0, cursor)
}

func (suite *FitTestSuite) TestNextFitVisitsEachServerOnce() {
	counting := []*countingHost{{Server: model.NewServer(10)}, {Server: model.NewServer(10)}, {Server: model.NewServer(10)}}
	hosts := []model.Host{counting[0], counting[1], counting[2]}
	suite.Equal(-1, SelectNextFit(hosts, model.NewVM(11), 1.0, 2))
	for _, h := range counting {
		suite.Equal(1, h.checks)
	}
}

func (suite *FitTestSuite) TestSelectorFor() {
	servers := newPool(100, []int64{10}, []int64{60})
	hosts := model.Hosts(servers)
	vm := model.NewVM(30)
	suite.Equal(0, SelectorFor(FirstFit)(hosts, vm, 1.0))
	suite.Equal(1, SelectorFor(BestFit)(hosts, vm, 1.0))
	suite.Equal(1, SelectorFor(WeightBalanced)(hosts, vm, 1.0))
	suite.Equal(0, SelectorFor("no_such_algorithm")(hosts, vm, 1.0))
}

type countingHost struct {
	*model.Server
	checks int
}

func (h *countingHost) CanAllocate(vm *model.VM, limitRatio float64) bool {
	h.checks++
	return h.Server.CanAllocate(vm, limitRatio)
}

func TestEpsilonGreedyExploit(t *testing.T) {
	servers := newPool(100, []int64{10}, []int64{60}, []int64{40})
	strategy := NewEpsilonGreedy(Options{Epsilon: 0.2, Rand: &fixedRand{draw: 0.5}})
	assert.True(t, strategy.Place(servers, model.NewVM(30)))
	assert.Equal(t, [][]int64{{10}, {60, 30}, {40}}, sizes(servers))
}

func TestEpsilonGreedyExplore(t *testing.T) {
	// Feasible servers are 0 and 2; offset 1 picks the second of them.
	servers := newPool(100, []int64{10}, []int64{90}, []int64{40})
	strategy := NewEpsilonGreedy(Options{Epsilon: 0.2, Rand: &fixedRand{draw: 0.1, offset: 1}})
	assert.True(t, strategy.Place(servers, model.NewVM(30)))
	assert.Equal(t, [][]int64{{10}, {90}, {40, 30}}, sizes(servers))
}

func TestEpsilonGreedyNoFeasible(t *testing.T) {
	servers := newPool(100, []int64{90})
	strategy := NewEpsilonGreedy(Options{Epsilon: 1, Rand: &fixedRand{}})
	assert.False(t, strategy.Place(servers, model.NewVM(30)))
	assert.Equal(t, [][]int64{{90}}, sizes(servers))
}

func TestCapacityInvariantHoldsForAllStrategies(t *testing.T) {
	const limitRatio = 0.8
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			r := rand.New(rand.NewSource(42))
			strategy, err := New(name, Options{
				LimitRatio: limitRatio,
				Epsilon:    0.3,
				Rand:       rand.New(rand.NewSource(1)),
				WaitK:      2,
			})
			require.NoError(t, err)

			servers := newPool(100, nil, nil, nil, nil)
			for i := 0; i < 200; i++ {
				before := totalUsed(servers)
				vm := model.NewVM(int64(1 + r.Intn(90)))
				strategy.Place(servers, vm)
				for _, s := range servers {
					assert.LessOrEqual(t, float64(s.Used()), float64(s.Capacity())*limitRatio)
				}
				assert.GreaterOrEqual(t, totalUsed(servers), before)

				// Free some space now and then so placement keeps going.
				if i%7 == 0 {
					for _, s := range servers {
						s.Clear()
					}
				}
			}
		})
	}
}

func TestSuccessfulAllocationAddsExactlyVMSize(t *testing.T) {
	for _, name := range []string{FirstFit, BestFit, NextFit, WeightBalanced, Greedy} {
		strategy, err := New(name, Options{LimitRatio: 1.0})
		require.NoError(t, err)
		servers := newPool(100, []int64{20}, []int64{50})
		usedBefore := totalUsed(servers)
		require.True(t, strategy.Place(servers, model.NewVM(25)), name)
		assert.EqualValues(t, usedBefore+25, totalUsed(servers), name)
	}
}

func totalUsed(servers []*model.Server) int64 {
	var used int64
	for _, s := range servers {
		used += s.Used()
	}
	return used
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{
		BestFit, Delayed, EpsilonGreedy, FirstFit, Greedy, NextFit, WeightBalanced,
	}, Names())
	assert.True(t, IsKnown(Greedy))
	assert.False(t, IsKnown("worst_fit"))

	_, err := New("worst_fit", Options{LimitRatio: 1.0})
	assert.Error(t, err)

	for _, name := range Names() {
		strategy, err := New(name, Options{LimitRatio: 1.0})
		require.NoError(t, err)
		assert.Equal(t, name, strategy.Name())
	}
}

func TestNewRejectsInvalidLimitRatio(t *testing.T) {
	for _, ratio := range []float64{0, -0.5, 1.5} {
		_, err := New(FirstFit, Options{LimitRatio: ratio})
		assert.Equal(t, model.ErrInvalidLimitRatio, errors.Cause(err), "ratio %v", ratio)
	}
	strategy, err := New(FirstFit, Options{LimitRatio: 0.9})
	require.NoError(t, err)
	assert.False(t, strategy.Place(newPool(100, nil), model.NewVM(95)))
}

func TestNewReturnsIndependentState(t *testing.T) {
	a, err := New(Delayed, Options{LimitRatio: 1.0})
	require.NoError(t, err)
	b, err := New(Delayed, Options{LimitRatio: 1.0})
	require.NoError(t, err)

	servers := newPool(100, nil)
	assert.True(t, a.Place(servers, model.NewVM(30)))
	assert.Len(t, a.(*DelayedStrategy).Pending(), 1)
	assert.Empty(t, b.(*DelayedStrategy).Pending())
}

func TestMetricsRecordOutcomes(t *testing.T) {
	scope := tally.NewTestScope("", nil)
	strategy := NewFirstFit(Options{Scope: scope})
	servers := newPool(100, nil)

	strategy.Place(servers, model.NewVM(60))
	strategy.Place(servers, model.NewVM(60))

	counters := scope.Snapshot().Counters()
	var success, fail int64
	for _, c := range counters {
		if c.Name() != "allocator.place" || c.Tags()["strategy"] != FirstFit {
			continue
		}
		switch c.Tags()["result"] {
		case "success":
			success += c.Value()
		case "fail":
			fail += c.Value()
		}
	}
	assert.EqualValues(t, 1, success)
	assert.EqualValues(t, 1, fail)
}
