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
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	"github.com/realprakhararya/hp-greedy/pkg/allocator"
	"github.com/realprakhararya/hp-greedy/pkg/coordinator/mocks"
	"github.com/realprakhararya/hp-greedy/pkg/wire"
)

type CoordinatorTestSuite struct {
	suite.Suite

	ctx            context.Context
	mockCtrl       *gomock.Controller
	mockDispatcher *mocks.MockAgentDispatcher
	scope          tally.TestScope
	coordinator    *Coordinator
	clock          time.Time
}

func TestCoordinatorTestSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorTestSuite))
}

func (suite *CoordinatorTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.mockCtrl = gomock.NewController(suite.T())
	suite.mockDispatcher = mocks.NewMockAgentDispatcher(suite.mockCtrl)
	suite.scope = tally.NewTestScope("", nil)

	cfg := DefaultConfig()
	cfg.ListenAddress = "127.0.0.1:0"
	c, err := New(cfg, suite.mockDispatcher, suite.scope)
	suite.Require().NoError(err)
	suite.clock = time.Unix(1000, 0)
	c.now = func() time.Time { return suite.clock }
	suite.coordinator = c
}

func (suite *CoordinatorTestSuite) TearDownTest() {
	suite.mockCtrl.Finish()
}

func (suite *CoordinatorTestSuite) counter(name string) int64 {
	var total int64
	for _, c := range suite.scope.Snapshot().Counters() {
		if c.Name() == name {
			total += c.Value()
		}
	}
	return total
}

func (suite *CoordinatorTestSuite) TestNewRejectsBadLimitRatio() {
	cfg := DefaultConfig()
	cfg.LimitRatio = 1.5
	_, err := New(cfg, suite.mockDispatcher, tally.NoopScope)
	suite.Equal(errInvalidLimitRatio, err)
}

func (suite *CoordinatorTestSuite) TestRegisterDefaults() {
	suite.coordinator.Register("10.0.0.1", 0, 0)
	status := suite.coordinator.Status()
	suite.Len(status, 1)
	suite.Equal(DefaultAgentPort, status[0].Port)
	suite.EqualValues(DefaultCapacity, status[0].Capacity)
	suite.EqualValues(1, suite.counter("coordinator.agent.registered"))
}

func (suite *CoordinatorTestSuite) TestPlaceBestFitDispatchesToTightestAgent() {
	suite.coordinator.Heartbeat("10.0.0.1", 5001, 100, []int64{30})
	suite.coordinator.Heartbeat("10.0.0.2", 5001, 100, []int64{60})

	suite.mockDispatcher.EXPECT().
		Allocate(gomock.Any(), "10.0.0.2:5001", int64(35)).
		Return(true, nil)

	placed, err := suite.coordinator.Place(suite.ctx, 35, allocator.BestFit)
	suite.NoError(err)
	suite.True(placed)
	suite.Equal([]int64{60, 35}, suite.coordinator.Status()[1].VMs)
	suite.EqualValues(1, suite.counter("coordinator.place.result"))
}

func (suite *CoordinatorTestSuite) TestPlaceDefaultAlgorithmIsBestFit() {
	suite.coordinator.Heartbeat("10.0.0.1", 5001, 100, nil)
	suite.coordinator.Heartbeat("10.0.0.2", 5001, 100, []int64{50})

	suite.mockDispatcher.EXPECT().
		Allocate(gomock.Any(), "10.0.0.2:5001", int64(40)).
		Return(true, nil)

	placed, err := suite.coordinator.Place(suite.ctx, 40, "")
	suite.NoError(err)
	suite.True(placed)
}

func (suite *CoordinatorTestSuite) TestPlaceWeightBalanced() {
	suite.coordinator.Heartbeat("10.0.0.1", 5001, 100, []int64{10})
	suite.coordinator.Heartbeat("10.0.0.2", 5001, 100, []int64{50})

	// 50+25 lands exactly on the 75% target.
	suite.mockDispatcher.EXPECT().
		Allocate(gomock.Any(), "10.0.0.2:5001", int64(25)).
		Return(true, nil)

	placed, err := suite.coordinator.Place(suite.ctx, 25, allocator.WeightBalanced)
	suite.NoError(err)
	suite.True(placed)
}

func (suite *CoordinatorTestSuite) TestPlaceUnknownAlgorithmUsesFirstFit() {
	suite.coordinator.Heartbeat("10.0.0.1", 5001, 100, []int64{50})
	suite.coordinator.Heartbeat("10.0.0.2", 5001, 100, []int64{90})

	suite.mockDispatcher.EXPECT().
		Allocate(gomock.Any(), "10.0.0.1:5001", int64(10)).
		Return(true, nil)

	placed, err := suite.coordinator.Place(suite.ctx, 10, "round_robin")
	suite.NoError(err)
	suite.True(placed)
}

func (suite *CoordinatorTestSuite) TestPlaceAgentRejectionIsOrdinaryFailure() {
	suite.coordinator.Heartbeat("10.0.0.1", 5001, 100, nil)

	suite.mockDispatcher.EXPECT().
		Allocate(gomock.Any(), "10.0.0.1:5001", int64(50)).
		Return(false, nil)

	placed, err := suite.coordinator.Place(suite.ctx, 50, allocator.FirstFit)
	suite.NoError(err)
	suite.False(placed)
	suite.Empty(suite.coordinator.Status()[0].VMs)
	suite.EqualValues(1, suite.counter("coordinator.place.rejected"))
}

func (suite *CoordinatorTestSuite) TestPlaceDispatchErrorIsFailure() {
	suite.coordinator.Heartbeat("10.0.0.1", 5001, 100, nil)

	suite.mockDispatcher.EXPECT().
		Allocate(gomock.Any(), "10.0.0.1:5001", int64(50)).
		Return(false, errors.New("connection refused"))

	placed, err := suite.coordinator.Place(suite.ctx, 50, allocator.FirstFit)
	suite.NoError(err)
	suite.False(placed)
	suite.Empty(suite.coordinator.Status()[0].VMs)
	suite.EqualValues(1, suite.counter("coordinator.place.dispatch_error"))
}

func (suite *CoordinatorTestSuite) TestPlaceNoFeasibleAgent() {
	placed, err := suite.coordinator.Place(suite.ctx, 50, allocator.FirstFit)
	suite.NoError(err)
	suite.False(placed)
	suite.EqualValues(1, suite.counter("coordinator.place.no_candidate"))

	suite.coordinator.Heartbeat("10.0.0.1", 5001, 100, []int64{80})
	placed, err = suite.coordinator.Place(suite.ctx, 50, allocator.BestFit)
	suite.NoError(err)
	suite.False(placed)
}

func (suite *CoordinatorTestSuite) TestPlaceRejectsInvalidMemory() {
	_, err := suite.coordinator.Place(suite.ctx, 0, allocator.FirstFit)
	suite.Equal(errInvalidMemory, err)
}

func (suite *CoordinatorTestSuite) TestSilentAgentLeavesStatus() {
	suite.coordinator.Register("10.0.0.1", 5001, 100)
	suite.clock = suite.clock.Add(6 * time.Second)
	suite.coordinator.Register("10.0.0.2", 5001, 100)

	suite.clock = suite.clock.Add(5 * time.Second)
	suite.Equal([]string{"10.0.0.1:5001"}, suite.coordinator.Sweep())

	status := suite.coordinator.Status()
	suite.Len(status, 1)
	suite.Equal("10.0.0.2", status[0].IP)
	suite.EqualValues(1, suite.counter("coordinator.agent.evicted"))
}

func (suite *CoordinatorTestSuite) TestPlacementsNeverInterleave() {
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		suite.coordinator.Heartbeat(ip, 5001, 1000, nil)
	}

	inFlight := atomic.NewInt32(0)
	overlapped := atomic.NewBool(false)
	suite.mockDispatcher.EXPECT().
		Allocate(gomock.Any(), gomock.Any(), int64(10)).
		DoAndReturn(func(context.Context, string, int64) (bool, error) {
			if inFlight.Inc() > 1 {
				overlapped.Store(true)
			}
			time.Sleep(time.Millisecond)
			inFlight.Dec()
			return true, nil
		}).
		Times(30)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			suite.coordinator.Place(suite.ctx, 10, allocator.FirstFit)
		}()
	}
	wg.Wait()

	suite.False(overlapped.Load())
	var used int64
	for _, s := range suite.coordinator.Status() {
		used += s.Used
	}
	suite.EqualValues(300, used)
}

func (suite *CoordinatorTestSuite) call(req *wire.Request) *wire.Response {
	resp, err := wire.Call(suite.ctx, suite.coordinator.Addr().String(), req, time.Second)
	suite.Require().NoError(err)
	return resp
}

func (suite *CoordinatorTestSuite) TestWireProtocol() {
	defer goleak.VerifyNone(suite.T())

	suite.Require().NoError(suite.coordinator.Start())
	defer suite.coordinator.Stop()

	suite.Equal(wire.StatusRegistered, suite.call(&wire.Request{
		Type:     wire.TypeRegister,
		IP:       "10.0.0.1",
		Port:     5001,
		Capacity: 100,
	}).Status)

	// missing ip falls back to the peer address
	suite.Equal(wire.StatusRegistered, suite.call(&wire.Request{
		Type: wire.TypeRegister,
		Port: 6001,
	}).Status)

	suite.Equal(wire.StatusOK, suite.call(&wire.Request{
		Type:         wire.TypeHeartbeat,
		IP:           "10.0.0.1",
		Port:         5001,
		Capacity:     100,
		AllocatedVMs: []int64{20, 30},
	}).Status)

	suite.mockDispatcher.EXPECT().
		Allocate(gomock.Any(), "10.0.0.1:5001", int64(40)).
		Return(true, nil)
	suite.Equal(wire.StatusAllocated, suite.call(&wire.Request{
		Type:      wire.TypeAllocateVM,
		Memory:    40,
		Algorithm: allocator.BestFit,
	}).Status)

	suite.Equal(wire.StatusFailed, suite.call(&wire.Request{
		Type:   wire.TypeAllocateVM,
		Memory: 500,
	}).Status)

	status := suite.call(&wire.Request{Type: wire.TypeServerStatus})
	suite.Equal([]wire.ServerInfo{
		{IP: "10.0.0.1", Port: 5001, Capacity: 100, Used: 90, Free: 10, Active: true, VMs: []int64{20, 30, 40}},
		{IP: "127.0.0.1", Port: 6001, Capacity: 100, Used: 0, Free: 100, Active: true},
	}, status.Servers)

	inventory := suite.call(&wire.Request{Type: wire.TypeSyncVMs})
	suite.Equal([]wire.VMInfo{
		{ServerIP: "10.0.0.1", ServerPort: 5001, Memory: 20},
		{ServerIP: "10.0.0.1", ServerPort: 5001, Memory: 30},
		{ServerIP: "10.0.0.1", ServerPort: 5001, Memory: 40},
	}, inventory.VMs)

	suite.Equal(wire.StatusUnknownCommand, suite.call(&wire.Request{Type: "shutdown"}).Status)

	_, err := wire.Call(suite.ctx, suite.coordinator.Addr().String(), &wire.Request{
		Type: wire.TypeAllocateVM,
	}, time.Second)
	suite.Error(err)
}

func (suite *CoordinatorTestSuite) TestLivenessMonitorRuns() {
	cfg := DefaultConfig()
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.MonitorInterval = 5 * time.Millisecond
	cfg.HeartbeatTimeout = 20 * time.Millisecond
	c, err := New(cfg, suite.mockDispatcher, tally.NoopScope)
	suite.Require().NoError(err)

	suite.Require().NoError(c.Start())
	defer c.Stop()

	c.Register("10.0.0.1", 5001, 100)
	suite.Eventually(func() bool {
		return len(c.Status()) == 0
	}, time.Second, 5*time.Millisecond)
}
