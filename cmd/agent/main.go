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

	"github.com/realprakhararya/hp-greedy/pkg/agent"
	"github.com/realprakhararya/hp-greedy/pkg/common/config"
	"github.com/realprakhararya/hp-greedy/pkg/common/logging"
	"github.com/realprakhararya/hp-greedy/pkg/common/metrics"
)

var (
	version string
	app     = kingpin.New("hp-agent", "VM placement agent owning one server")

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

	coordinatorAddress = app.Flag(
		"coordinator", "Coordinator host:port (coordinator_address override)").
		Envar("COORDINATOR_ADDRESS").
		String()

	listenPort = app.Flag(
		"port", "Listen port (listen_port override)").
		Short('p').
		Envar("AGENT_PORT").
		Int()

	capacity = app.Flag(
		"capacity", "Server capacity (capacity override)").
		Envar("AGENT_CAPACITY").
		Int64()

	advertiseIP = app.Flag(
		"advertise-ip", "IP reported to the coordinator, detected when empty").
		Envar("ADVERTISE_IP").
		String()

	httpPort = app.Flag(
		"http-port", "Metrics and health HTTP port (http_port override)").
		Envar("HTTP_PORT").
		Int()
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

	cfg := agent.DefaultConfig()
	log.WithField("files", *cfgFiles).Info("Loading agent config")
	if err := config.Load(&cfg, *cfgFiles...); err != nil {
		log.WithError(err).Fatal("Cannot parse yaml config")
	}
	if *coordinatorAddress != "" {
		cfg.CoordinatorAddress = *coordinatorAddress
	}
	if *listenPort != 0 {
		cfg.ListenPort = *listenPort
	}
	if *capacity > 0 {
		cfg.Capacity = *capacity
	}
	if *advertiseIP != "" {
		cfg.AdvertiseIP = *advertiseIP
	}
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}
	if err := config.Validate(&cfg); err != nil {
		log.WithError(err).Fatal("Invalid agent config")
	}
	log.WithField("config", cfg).Info("Completed loading agent config")

	process, err := metrics.StartProcess(&cfg.Metrics, "hp_agent", cfg.HTTPPort)
	if err != nil {
		log.WithError(err).Fatal("Cannot start metrics")
	}
	process.Mux.HandleFunc(logging.LevelOverwrite, logging.LevelOverwriteHandler(log.GetLevel()))

	a, err := agent.New(cfg, process.Scope)
	if err != nil {
		log.WithError(err).Fatal("Cannot create agent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		log.WithError(err).Warn("Agent started without coordinator")
	}
	process.Health.SetHealthy(true)
	<-ctx.Done()

	log.Info("Stopping agent")
	a.Stop()
	if err := process.Close(); err != nil {
		log.WithError(err).Warn("Unclean shutdown")
	}
	log.Info("Agent stopped")
}
