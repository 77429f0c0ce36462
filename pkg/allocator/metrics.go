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
	"github.com/uber-go/tally/v4"
)

// Metrics contains the counters emitted by one strategy instance.
type Metrics struct {
	PlaceSuccess tally.Counter
	PlaceFail    tally.Counter

	// Greedy reassignment
	ReassignAttempt  tally.Counter
	ReassignCommit   tally.Counter
	ReassignRollback tally.Counter

	// Epsilon greedy
	Explore tally.Counter
	Exploit tally.Counter

	// Delayed bin packing
	PerfectFit  tally.Counter
	PairMatched tally.Counter
	Enqueued    tally.Counter
	ForcedPlace tally.Counter
	ForcedFail  tally.Counter
	QueueDepth  tally.Gauge
}

// NewMetrics returns the metrics of the named strategy rooted below scope.
func NewMetrics(scope tally.Scope, name string) *Metrics {
	strategyScope := scope.SubScope("allocator").Tagged(map[string]string{"strategy": name})
	successScope := strategyScope.Tagged(map[string]string{"result": "success"})
	failScope := strategyScope.Tagged(map[string]string{"result": "fail"})
	reassignScope := strategyScope.SubScope("reassign")
	queueScope := strategyScope.SubScope("queue")

	return &Metrics{
		PlaceSuccess: successScope.Counter("place"),
		PlaceFail:    failScope.Counter("place"),

		ReassignAttempt:  reassignScope.Counter("attempt"),
		ReassignCommit:   reassignScope.Counter("commit"),
		ReassignRollback: reassignScope.Counter("rollback"),

		Explore: strategyScope.Counter("explore"),
		Exploit: strategyScope.Counter("exploit"),

		PerfectFit:  queueScope.Counter("perfect_fit"),
		PairMatched: queueScope.Counter("pair_matched"),
		Enqueued:    queueScope.Counter("enqueued"),
		ForcedPlace: queueScope.Counter("forced_place"),
		ForcedFail:  queueScope.Counter("forced_fail"),
		QueueDepth:  queueScope.Gauge("depth"),
	}
}

// record counts the outcome of one Place call and returns it.
func (m *Metrics) record(ok bool) bool {
	if ok {
		m.PlaceSuccess.Inc(1)
	} else {
		m.PlaceFail.Inc(1)
	}
	return ok
}
