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
	"time"

	"github.com/realprakhararya/hp-greedy/pkg/allocator"
	"github.com/realprakhararya/hp-greedy/pkg/common/metrics"
	"github.com/realprakhararya/hp-greedy/pkg/model"
)

// Defaults applied to agents that omit fields on registration.
const (
	DefaultCapacity  = 100
	DefaultAgentPort = 5001
)

// Config is the coordinator configuration.
type Config struct {
	// ListenAddress overrides ListenPort when set, e.g. "127.0.0.1:0".
	ListenAddress string `yaml:"listen_address"`
	ListenPort    int    `yaml:"listen_port" validate:"min=0,max=65535"`

	// HeartbeatTimeout is the longest silence tolerated before an agent
	// is evicted.
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout" validate:"min=1"`
	// MonitorInterval is the period of the liveness sweep.
	MonitorInterval time.Duration `yaml:"monitor_interval" validate:"min=1"`
	// DispatchTimeout bounds one remote allocation on an agent.
	DispatchTimeout time.Duration `yaml:"dispatch_timeout" validate:"min=1"`
	// RequestTimeout bounds reading a request and writing its reply.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=1"`

	LimitRatio       float64 `yaml:"limit_ratio"`
	DefaultAlgorithm string  `yaml:"default_algorithm" validate:"nonzero"`

	HTTPPort int            `yaml:"http_port" validate:"min=0,max=65535"`
	Metrics  metrics.Config `yaml:"metrics"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		ListenPort:       5000,
		HeartbeatTimeout: 10 * time.Second,
		MonitorInterval:  2 * time.Second,
		DispatchTimeout:  5 * time.Second,
		RequestTimeout:   5 * time.Second,
		LimitRatio:       model.DefaultLimitRatio,
		DefaultAlgorithm: allocator.BestFit,
	}
}

// Normalize checks fields the validator tags cannot express.
func (c *Config) Normalize() error {
	return model.ValidateLimitRatio(c.LimitRatio)
}
