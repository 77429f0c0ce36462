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
	"sync"
)

// LifeCycle tracks the goroutines owned by a component and broadcasts
// stop to all of them.
//
//	lc := NewLifeCycle()
//	lc.Start()
//	lc.Go(func(stop <-chan struct{}) {
//		<-stop
//	})
//	lc.Stop() // blocks until the goroutine returns
type LifeCycle interface {
	// Start returns false if already started.
	Start() bool
	// Stop broadcasts stop and waits for every goroutine started with Go.
	// It returns false if not running.
	Stop() bool
	// Go runs f on a new goroutine tracked by Stop. The function is not
	// run if the lifecycle is not started.
	Go(f func(stop <-chan struct{})) bool
	// StopCh is closed when Stop is called.
	StopCh() <-chan struct{}
	// Running reports whether Start was called without a matching Stop.
	Running() bool
}

type lifeCycle struct {
	sync.Mutex
	// stopCh is nil when not running
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewLifeCycle returns a stopped LifeCycle.
func NewLifeCycle() LifeCycle {
	return &lifeCycle{}
}

func (l *lifeCycle) Start() bool {
	l.Lock()
	defer l.Unlock()

	if l.stopCh != nil {
		return false
	}
	l.stopCh = make(chan struct{})
	return true
}

func (l *lifeCycle) Stop() bool {
	l.Lock()
	if l.stopCh == nil {
		l.Unlock()
		return false
	}
	close(l.stopCh)
	l.stopCh = nil
	l.Unlock()

	l.wg.Wait()
	return true
}

func (l *lifeCycle) Go(f func(stop <-chan struct{})) bool {
	l.Lock()
	defer l.Unlock()

	if l.stopCh == nil {
		return false
	}
	stop := l.stopCh
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		f(stop)
	}()
	return true
}

func (l *lifeCycle) StopCh() <-chan struct{} {
	l.Lock()
	defer l.Unlock()

	if l.stopCh == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return l.stopCh
}

func (l *lifeCycle) Running() bool {
	l.Lock()
	defer l.Unlock()
	return l.stopCh != nil
}
