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
	"github.com/uber-go/tally/v4"
)

// Metrics is the agent metrics.
type Metrics struct {
	HeartbeatSent   tally.Counter
	HeartbeatFailed tally.Counter
	Accepted        tally.Counter
	Rejected        tally.Counter
	Used            tally.Gauge
	Free            tally.Gauge
}

// NewMetrics returns the agent metrics under scope.
func NewMetrics(scope tally.Scope) *Metrics {
	scope = scope.SubScope("agent")
	heartbeat := scope.SubScope("heartbeat")
	allocate := scope.SubScope("allocate")
	memory := scope.SubScope("memory")
	return &Metrics{
		HeartbeatSent:   heartbeat.Counter("sent"),
		HeartbeatFailed: heartbeat.Counter("failed"),
		Accepted:        allocate.Counter("accepted"),
		Rejected:        allocate.Counter("rejected"),
		Used:            memory.Gauge("used"),
		Free:            memory.Gauge("free"),
	}
}
