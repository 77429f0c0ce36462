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

package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/uber-go/tally/v4"

	"github.com/realprakhararya/hp-greedy/pkg/common/background"
)

// RuntimeWorkName names the background work sampling go runtime gauges.
const RuntimeWorkName = "runtime_metrics"

type runtimeMetrics struct {
	numGoRoutines   tally.Gauge
	goMaxProcs      tally.Gauge
	memoryAllocated tally.Gauge
	memoryHeapInuse tally.Gauge
	memoryStack     tally.Gauge
	numGC           tally.Gauge
}

// RuntimeWork returns background work publishing go runtime gauges under
// scope every interval.
func RuntimeWork(scope tally.Scope, interval time.Duration) background.Work {
	scope = scope.SubScope("runtime")
	m := runtimeMetrics{
		numGoRoutines:   scope.Gauge("num_goroutines"),
		goMaxProcs:      scope.Gauge("gomaxprocs"),
		memoryAllocated: scope.Gauge("memory_allocated"),
		memoryHeapInuse: scope.Gauge("memory_heapinuse"),
		memoryStack:     scope.Gauge("memory_stack"),
		numGC:           scope.Gauge("memory_num_gc"),
	}
	return background.Work{
		Name:       RuntimeWorkName,
		Period:     interval,
		RunOnStart: true,
		Func:       func(context.Context) { m.sample() },
	}
}

func (m runtimeMetrics) sample() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.numGoRoutines.Update(float64(runtime.NumGoroutine()))
	m.goMaxProcs.Update(float64(runtime.GOMAXPROCS(0)))
	m.memoryAllocated.Update(float64(memStats.Alloc))
	m.memoryHeapInuse.Update(float64(memStats.HeapInuse))
	m.memoryStack.Update(float64(memStats.StackInuse))
	m.numGC.Update(float64(memStats.NumGC))
}
