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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/realprakhararya/hp-greedy/pkg/allocator"
	"github.com/realprakhararya/hp-greedy/pkg/common/config"
	"github.com/realprakhararya/hp-greedy/pkg/common/logging"
	"github.com/realprakhararya/hp-greedy/pkg/common/metrics"
	"github.com/realprakhararya/hp-greedy/pkg/simulator"
)

var (
	version string
	app     = kingpin.New("hp-simulator", "Single process VM placement simulator")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	cfgFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		ExistingFiles()

	algorithm = app.Flag(
		"algorithm", "Placement strategy (algorithm override)").
		Short('a').
		Envar("ALGORITHM").
		Enum(allocator.Names()...)

	poolSize = app.Flag(
		"servers", "Number of servers (pool_size override)").
		Short('n').
		Int()

	serverCapacity = app.Flag(
		"capacity", "Capacity of each server (server_capacity override)").
		Int64()

	limitRatio = app.Flag(
		"limit-ratio", "Fraction of capacity open to allocation (limit_ratio override)").
		Float64()

	growPool = app.Flag(
		"grow", "Let the greedy strategy add servers (grow_pool override)").
		Bool()

	seed = app.Flag(
		"seed", "Seed for epsilon_greedy exploration (seed override)").
		Int64()

	sizes = app.Arg("vms", "VM sizes to place; read from stdin when omitted").Int64List()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))

	level := "warning"
	if *debug {
		level = "debug"
	}
	app.FatalIfError(logging.Configure(level, false, log.Fields{"app": app.Name}), "logging")

	cfg := simulator.DefaultConfig()
	app.FatalIfError(config.Load(&cfg, *cfgFiles...), "config")
	if *algorithm != "" {
		cfg.Algorithm = *algorithm
	}
	if *poolSize > 0 {
		cfg.PoolSize = *poolSize
	}
	if *serverCapacity > 0 {
		cfg.ServerCapacity = *serverCapacity
	}
	if *limitRatio != 0 {
		cfg.LimitRatio = *limitRatio
	}
	if *growPool {
		cfg.GrowPool = true
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	app.FatalIfError(config.Validate(&cfg), "config")

	process, err := metrics.StartProcess(nil, "hp_simulator", 0)
	app.FatalIfError(err, "metrics")
	defer process.Close()

	sim, err := simulator.New(cfg, process.Scope)
	app.FatalIfError(err, "simulator")

	if len(*sizes) > 0 {
		for _, size := range *sizes {
			submit(os.Stdout, sim, size)
		}
		printPool(os.Stdout, sim)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	run(ctx, os.Stdin, os.Stdout, sim)
}

// run reads one command per line: a VM size, "status" or "reset".
func run(ctx context.Context, in io.Reader, out io.Writer, sim *simulator.Simulator) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch word := strings.TrimSpace(line); word {
			case "":
			case "status":
				printPool(out, sim)
			case "reset":
				if err := sim.Reset(); err != nil {
					fmt.Fprintln(out, "error:", err)
				}
			default:
				size, err := strconv.ParseInt(word, 10, 64)
				if err != nil {
					fmt.Fprintln(out, `expected a VM size, "status" or "reset"`)
					continue
				}
				submit(out, sim, size)
			}
		}
	}
}

func submit(out io.Writer, sim *simulator.Simulator, size int64) {
	placed, err := sim.Submit(size)
	switch {
	case err != nil:
		fmt.Fprintln(out, "error:", err)
	case placed:
		fmt.Fprintf(out, "VM(%d) placed with %s\n", size, sim.Algorithm())
	default:
		fmt.Fprintf(out, "VM(%d) rejected by %s\n", size, sim.Algorithm())
	}
}

func printPool(out io.Writer, sim *simulator.Simulator) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(tw, "Server\tCapacity\tUsed\tFree\tVMs\t")
	for i, st := range sim.Status() {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%v\t\n", i, st.Capacity, st.Used, st.Free, st.VMs)
	}
	tw.Flush()

	if pending := sim.Pending(); len(pending) > 0 {
		fmt.Fprintf(out, "Waiting: %v\n", pending)
	}
	stats := sim.Stats()
	fmt.Fprintf(out, "Placed %d of %d submitted", stats.Placed, stats.Submitted)
	if stats.Grown > 0 {
		fmt.Fprintf(out, ", pool grew by %d", stats.Grown)
	}
	fmt.Fprintln(out)
}
