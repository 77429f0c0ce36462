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

package agent

import (
	"time"

	"github.com/realprakhararya/hp-greedy/pkg/common/metrics"
	"github.com/realprakhararya/hp-greedy/pkg/model"
)

// Config is the agent configuration.
type Config struct {
	CoordinatorAddress string `yaml:"coordinator_address" validate:"nonzero"`

	// ListenAddress overrides ListenPort when set, e.g. "127.0.0.1:0".
	ListenAddress string `yaml:"listen_address"`
	ListenPort    int    `yaml:"listen_port" validate:"min=0,max=65535"`
	// AdvertiseIP is reported to the coordinator. Detected when empty.
	AdvertiseIP string `yaml:"advertise_ip"`

	Capacity          int64         `yaml:"capacity" validate:"min=1"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" validate:"min=1"`
	RequestTimeout    time.Duration `yaml:"request_timeout" validate:"min=1"`
	LimitRatio        float64       `yaml:"limit_ratio"`

	HTTPPort int            `yaml:"http_port" validate:"min=0,max=65535"`
	Metrics  metrics.Config `yaml:"metrics"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		ListenPort:        5001,
		Capacity:          100,
		HeartbeatInterval: 5 * time.Second,
		RequestTimeout:    5 * time.Second,
		LimitRatio:        model.DefaultLimitRatio,
	}
}
