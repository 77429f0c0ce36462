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

package simulator

import (
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"go.uber.org/atomic"

	"github.com/realprakhararya/hp-greedy/pkg/allocator"
	"github.com/realprakhararya/hp-greedy/pkg/model"
)

var (
	errInvalidMemory = errors.New("memory must be positive")
	errEmptyPool     = errors.New("pool_size and server_capacity must be positive")
)

// Config is the simulator configuration.
type Config struct {
	PoolSize       int     `yaml:"pool_size" validate:"min=1"`
	ServerCapacity int64   `yaml:"server_capacity" validate:"min=1"`
	Algorithm      string  `yaml:"algorithm" validate:"nonzero"`
	LimitRatio     float64 `yaml:"limit_ratio"`
	Epsilon        float64 `yaml:"epsilon"`
	WaitK          int     `yaml:"wait_k"`
	// GrowPool lets the greedy strategy add one server sized like the
	// first when reassignment fails.
	GrowPool bool `yaml:"grow_pool"`
	// Seed feeds the exploration of epsilon_greedy. Zero picks a random seed.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		PoolSize:       5,
		ServerCapacity: 100,
		Algorithm:      allocator.FirstFit,
		LimitRatio:     model.DefaultLimitRatio,
		Epsilon:        0.1,
		WaitK:          3,
	}
}

// Stats counts submissions since the last reset.
type Stats struct {
	Submitted int64
	Placed    int64
	Grown     int64
}

// Simulator places VMs on an in-process pool with one strategy.
type Simulator struct {
	mu       sync.Mutex
	cfg      Config
	scope    tally.Scope
	servers  []*model.Server
	strategy allocator.Strategy

	submitted atomic.Int64
	placed    atomic.Int64
	grown     atomic.Int64
}

// New returns a simulator with an empty pool.
func New(cfg Config, scope tally.Scope) (*Simulator, error) {
	if cfg.PoolSize <= 0 || cfg.ServerCapacity <= 0 {
		return nil, errEmptyPool
	}
	if err := model.ValidateLimitRatio(cfg.LimitRatio); err != nil {
		return nil, err
	}
	if !allocator.IsKnown(cfg.Algorithm) {
		return nil, errors.Errorf("unknown algorithm %q, expected one of %v",
			cfg.Algorithm, allocator.Names())
	}
	if scope == nil {
		scope = tally.NoopScope
	}
	s := &Simulator{cfg: cfg, scope: scope}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Submit places a VM of memory and reports whether it was placed or, for
// the delayed strategy, held in its queue.
func (s *Simulator) Submit(memory int64) (bool, error) {
	if memory <= 0 {
		return false, errInvalidMemory
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submitted.Inc()
	vm := model.NewVM(memory)
	ok := s.strategy.Place(s.servers, vm)
	if !ok && s.cfg.GrowPool && s.cfg.Algorithm == allocator.Greedy {
		if s.servers, ok = allocator.Grow(s.servers, vm, s.cfg.LimitRatio); ok {
			s.grown.Inc()
			log.WithField("servers", len(s.servers)).Info("Grew pool")
		}
	}
	if ok {
		s.placed.Inc()
	}
	return ok, nil
}

// Status returns a snapshot of every server in pool order.
func (s *Simulator) Status() []model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make([]model.Status, len(s.servers))
	for i, server := range s.servers {
		status[i] = server.Snapshot()
	}
	return status
}

// Pending returns the sizes waiting in the delayed strategy's queue.
func (s *Simulator) Pending() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	delayed, ok := s.strategy.(*allocator.DelayedStrategy)
	if !ok {
		return nil
	}
	var sizes []int64
	for _, queued := range delayed.Pending() {
		sizes = append(sizes, queued.VM.Size())
	}
	return sizes
}

// Stats returns the counters since the last reset.
func (s *Simulator) Stats() Stats {
	return Stats{
		Submitted: s.submitted.Load(),
		Placed:    s.placed.Load(),
		Grown:     s.grown.Load(),
	}
}

// Algorithm returns the strategy name.
func (s *Simulator) Algorithm() string {
	return s.cfg.Algorithm
}

// Reset restores the initial pool and a fresh strategy.
func (s *Simulator) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset()
}

func (s *Simulator) reset() error {
	seed := s.cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	strategy, err := allocator.New(s.cfg.Algorithm, allocator.Options{
		LimitRatio: s.cfg.LimitRatio,
		Epsilon:    s.cfg.Epsilon,
		WaitK:      s.cfg.WaitK,
		Rand:       rand.New(rand.NewSource(seed)),
		Scope:      s.scope,
	})
	if err != nil {
		return err
	}

	s.servers = make([]*model.Server, s.cfg.PoolSize)
	for i := range s.servers {
		s.servers[i] = model.NewServer(s.cfg.ServerCapacity)
	}
	s.strategy = strategy
	s.submitted.Store(0)
	s.placed.Store(0)
	s.grown.Store(0)
	return nil
}
