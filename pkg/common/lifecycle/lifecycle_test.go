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

package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
)

type LifeCycleTestSuite struct {
	suite.Suite
	lifeCycle LifeCycle
}

func TestLifeCycle(t *testing.T) {
	suite.Run(t, new(LifeCycleTestSuite))
}

func (s *LifeCycleTestSuite) SetupTest() {
	s.lifeCycle = NewLifeCycle()
}

func (s *LifeCycleTestSuite) TearDownTest() {
	goleak.VerifyNone(s.T())
}

func (s *LifeCycleTestSuite) TestStopWaitsForGoroutines() {
	s.True(s.lifeCycle.Start())

	finished := atomic.NewInt32(0)
	for i := 0; i < 10; i++ {
		s.True(s.lifeCycle.Go(func(stop <-chan struct{}) {
			<-stop
			finished.Inc()
		}))
	}

	s.True(s.lifeCycle.Stop())
	s.Equal(int32(10), finished.Load())
}

func (s *LifeCycleTestSuite) TestStartStopIdempotent() {
	s.False(s.lifeCycle.Stop())
	s.True(s.lifeCycle.Start())
	s.False(s.lifeCycle.Start())
	s.True(s.lifeCycle.Running())
	s.True(s.lifeCycle.Stop())
	s.False(s.lifeCycle.Stop())
	s.False(s.lifeCycle.Running())
}

func (s *LifeCycleTestSuite) TestGoRequiresStart() {
	ran := atomic.NewBool(false)
	s.False(s.lifeCycle.Go(func(<-chan struct{}) { ran.Store(true) }))
	s.False(ran.Load())
}

func (s *LifeCycleTestSuite) TestStopChClosedWhenStopped() {
	select {
	case <-s.lifeCycle.StopCh():
	default:
		s.Fail("stop channel of a stopped lifecycle should be closed")
	}

	s.lifeCycle.Start()
	stopCh := s.lifeCycle.StopCh()
	select {
	case <-stopCh:
		s.Fail("stop channel closed while running")
	default:
	}
	s.lifeCycle.Stop()
	<-stopCh
}

func (s *LifeCycleTestSuite) TestRestart() {
	s.lifeCycle.Start()
	s.lifeCycle.Stop()
	s.True(s.lifeCycle.Start())
	s.True(s.lifeCycle.Go(func(stop <-chan struct{}) { <-stop }))
	s.True(s.lifeCycle.Stop())
}
