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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/realprakhararya/hp-greedy/pkg/common/config"
	"github.com/realprakhararya/hp-greedy/pkg/common/logging"
	"github.com/realprakhararya/hp-greedy/pkg/common/metrics"
	"github.com/realprakhararya/hp-greedy/pkg/coordinator"
)

var (
	version string
	app     = kingpin.New("hp-coordinator", "VM placement coordinator")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	jsonLogging = app.Flag(
		"json-logging", "log in JSON").
		Default("false").
		Envar("JSON_LOGGING").
		Bool()

	cfgFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		ExistingFiles()

	listenPort = app.Flag(
		"port", "Listen port (listen_port override)").
		Short('p').
		Envar("COORDINATOR_PORT").
		Int()

	httpPort = app.Flag(
		"http-port", "Metrics and health HTTP port (http_port override)").
		Envar("HTTP_PORT").
		Int()

	defaultAlgorithm = app.Flag(
		"algorithm", "Algorithm used when a request names none (default_algorithm override)").
		Envar("DEFAULT_ALGORITHM").
		Enum("first_fit", "best_fit", "weight_balanced")

	heartbeatTimeout = app.Flag(
		"heartbeat-timeout", "Silence after which an agent is evicted (heartbeat_timeout override)").
		Envar("HEARTBEAT_TIMEOUT").
		Duration()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))

	initialLevel := "info"
	if *debug {
		initialLevel = "debug"
	}
	if err := logging.Configure(initialLevel, *jsonLogging, log.Fields{"app": app.Name}); err != nil {
		log.WithError(err).Fatal("Cannot configure logging")
	}

	cfg := coordinator.DefaultConfig()
	log.WithField("files", *cfgFiles).Info("Loading coordinator config")
	if err := config.Load(&cfg, *cfgFiles...); err != nil {
		log.WithError(err).Fatal("Cannot parse yaml config")
	}
	if *listenPort != 0 {
		cfg.ListenPort = *listenPort
	}
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}
	if *defaultAlgorithm != "" {
		cfg.DefaultAlgorithm = *defaultAlgorithm
	}
	if *heartbeatTimeout > 0 {
		cfg.HeartbeatTimeout = *heartbeatTimeout
	}
	if err := config.Validate(&cfg); err != nil {
		log.WithError(err).Fatal("Invalid coordinator config")
	}
	log.WithField("config", cfg).Info("Completed loading coordinator config")

	process, err := metrics.StartProcess(&cfg.Metrics, "hp_coordinator", cfg.HTTPPort)
	if err != nil {
		log.WithError(err).Fatal("Cannot start metrics")
	}
	process.Mux.HandleFunc(logging.LevelOverwrite, logging.LevelOverwriteHandler(log.GetLevel()))

	c, err := coordinator.New(cfg, coordinator.NewAgentDispatcher(cfg.DispatchTimeout), process.Scope)
	if err != nil {
		log.WithError(err).Fatal("Cannot create coordinator")
	}
	if err := c.Start(); err != nil {
		log.WithError(err).Fatal("Cannot start coordinator")
	}
	process.Health.SetHealthy(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Stopping coordinator")
	c.Stop()
	if err := process.Close(); err != nil {
		log.WithError(err).Warn("Unclean shutdown")
	}
	log.Info("Coordinator stopped")
}
