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
	"github.com/uber-go/tally/v4"
)

// Metrics is the coordinator metrics.
type Metrics struct {
	Registered tally.Counter
	Heartbeats tally.Counter
	Evicted    tally.Counter
	Agents     tally.Gauge

	PlaceSuccess  tally.Counter
	PlaceFail     tally.Counter
	NoCandidate   tally.Counter
	DispatchError tally.Counter
	Rejected      tally.Counter
	PlaceDuration tally.Timer
}

// NewMetrics returns the coordinator metrics under scope.
func NewMetrics(scope tally.Scope) *Metrics {
	scope = scope.SubScope("coordinator")
	agentScope := scope.SubScope("agent")
	placeScope := scope.SubScope("place")
	return &Metrics{
		Registered: agentScope.Counter("registered"),
		Heartbeats: agentScope.Counter("heartbeat"),
		Evicted:    agentScope.Counter("evicted"),
		Agents:     agentScope.Gauge("count"),

		PlaceSuccess:  placeScope.Tagged(map[string]string{"result": "success"}).Counter("result"),
		PlaceFail:     placeScope.Tagged(map[string]string{"result": "fail"}).Counter("result"),
		NoCandidate:   placeScope.Counter("no_candidate"),
		DispatchError: placeScope.Counter("dispatch_error"),
		Rejected:      placeScope.Counter("rejected"),
		PlaceDuration: placeScope.Timer("duration"),
	}
}
