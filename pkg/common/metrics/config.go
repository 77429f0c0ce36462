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
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	tallyprom "github.com/uber-go/tally/v4/prometheus"
	"go.uber.org/atomic"
)

const (
	// MetricsPath serves prometheus exposition when prometheus is enabled.
	MetricsPath = "/metrics"
	// HealthPath answers 200 while the process reports healthy.
	HealthPath = "/health"
)

// Config is the metrics section of a process configuration.
type Config struct {
	Prometheus *PrometheusConfig `yaml:"prometheus"`
	// FlushInterval is how often the root scope reports.
	FlushInterval time.Duration `yaml:"flush_interval"`
	// RuntimeInterval is how often go runtime gauges are sampled.
	// Zero disables runtime metrics.
	RuntimeInterval time.Duration `yaml:"runtime_interval"`
}

// PrometheusConfig enables the prometheus reporter.
type PrometheusConfig struct {
	Enable bool `yaml:"enable"`
}

const _defaultFlushInterval = time.Second

// Health is a settable health flag served on HealthPath.
type Health struct {
	healthy atomic.Bool
}

// SetHealthy updates the reported health.
func (h *Health) SetHealthy(v bool) { h.healthy.Store(v) }

// ServeHTTP implements http.Handler.
func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if h.healthy.Load() {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprintln(w, "unhealthy")
}

// InitMetricScope returns a root scope, its closer and a mux carrying the
// non-RPC handlers: prometheus exposition if enabled, and health.
func InitMetricScope(
	cfg *Config,
	rootMetricScope string,
	health *Health,
) (tally.Scope, io.Closer, *http.ServeMux) {
	mux := http.NewServeMux()
	if cfg == nil {
		cfg = &Config{}
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = _defaultFlushInterval
	}

	opts := tally.ScopeOptions{
		Tags:      map[string]string{},
		Separator: ".",
	}
	if cfg.Prometheus != nil && cfg.Prometheus.Enable {
		// tally rejects "-" in prometheus names
		opts.Prefix = strings.Replace(rootMetricScope, "-", "_", -1)
		opts.Separator = tallyprom.DefaultSeparator
		reporter := tallyprom.NewReporter(tallyprom.Options{})
		opts.CachedReporter = reporter
		log.WithField("path", MetricsPath).Info("Setting up prometheus metrics handler")
		mux.Handle(MetricsPath, reporter.HTTPHandler())
	} else {
		log.Warn("No metrics backend configured, metrics are discarded")
		opts.Prefix = rootMetricScope
		opts.Reporter = tally.NullStatsReporter
	}

	if health != nil {
		mux.Handle(HealthPath, health)
	}

	scope, closer := tally.NewRootScope(opts, interval)
	return scope, closer, mux
}
