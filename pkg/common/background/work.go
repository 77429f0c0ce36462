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

package background

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

var (
	errEmptyName     = errors.New("background work name cannot be empty")
	errDuplicateName = errors.New("duplicate background work name")
	errBadPeriod     = errors.New("background work period must be positive")
)

// Work is a function run periodically until its manager stops.
// The context passed to Func is cancelled on Stop.
type Work struct {
	Name         string
	Func         func(ctx context.Context)
	Period       time.Duration
	InitialDelay time.Duration
	// RunOnStart runs Func once as soon as the work starts, before the
	// first period elapses.
	RunOnStart bool
}

// Manager starts and stops a set of Works together.
type Manager interface {
	// Start starts all registered works. Starting twice is a no-op.
	Start()
	// Stop stops all registered works and waits for running Funcs to return.
	Stop()
	// RegisterWorks registers works against the manager.
	RegisterWorks(works ...Work) error
}

type manager struct {
	sync.Mutex
	runners map[string]*runner
}

// NewManager returns a Manager with the given works registered.
func NewManager(works ...Work) (Manager, error) {
	m := &manager{runners: make(map[string]*runner)}
	if err := m.RegisterWorks(works...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *manager) RegisterWorks(works ...Work) error {
	m.Lock()
	defer m.Unlock()

	for _, work := range works {
		if work.Name == "" {
			return errEmptyName
		}
		if work.Period <= 0 {
			return errors.Wrap(errBadPeriod, work.Name)
		}
		if _, ok := m.runners[work.Name]; ok {
			return errors.Wrap(errDuplicateName, work.Name)
		}
		m.runners[work.Name] = &runner{work: work}
	}
	return nil
}

func (m *manager) Start() {
	m.Lock()
	defer m.Unlock()
	for _, r := range m.runners {
		r.start()
	}
}

func (m *manager) Stop() {
	m.Lock()
	defer m.Unlock()
	for _, r := range m.runners {
		r.stop()
	}
}

type runner struct {
	work Work

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func (r *runner) start() {
	if r.running.Swap(true) {
		log.WithField("name", r.work.Name).
			Debug("Background work is already running, no-op.")
		return
	}

	log.WithFields(log.Fields{
		"name":   r.work.Name,
		"period": r.work.Period,
	}).Info("Starting background work")

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
}

func (r *runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if r.work.InitialDelay > 0 {
		timer := time.NewTimer(r.work.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	if r.work.RunOnStart || r.work.InitialDelay > 0 {
		r.work.Func(ctx)
	}

	ticker := time.NewTicker(r.work.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.WithField("name", r.work.Name).Debug("Background work triggered")
			r.work.Func(ctx)
		}
	}
}

func (r *runner) stop() {
	if !r.running.Load() {
		log.WithField("name", r.work.Name).
			Debug("Background work is not running, no-op.")
		return
	}

	r.cancel()
	<-r.done
	r.running.Store(false)
	log.WithField("name", r.work.Name).Info("Background work stopped")
}
