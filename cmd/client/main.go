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

	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/realprakhararya/hp-greedy/pkg/allocator"
	"github.com/realprakhararya/hp-greedy/pkg/client"
	"github.com/realprakhararya/hp-greedy/pkg/common/logging"
)

var (
	version string
	app     = kingpin.New("hp-client", "VM placement client")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	coordinatorAddress = app.Flag(
		"coordinator", "Coordinator host:port").
		Short('a').
		Default("127.0.0.1:5000").
		Envar("COORDINATOR_ADDRESS").
		String()

	algorithm = app.Flag(
		"algorithm", "Algorithm used when a request names none").
		Default(allocator.BestFit).
		Envar("DEFAULT_ALGORITHM").
		Enum(allocator.FirstFit, allocator.BestFit, allocator.WeightBalanced)

	timeout = app.Flag(
		"timeout", "Per request timeout").
		Default("5s").
		Envar("REQUEST_TIMEOUT").
		Duration()

	output = app.Flag(
		"output", "Output format").
		Short('o').
		Default("table").
		Enum("table", "json", "yaml")

	allocate       = app.Command("allocate", "Place one VM")
	allocateMemory = allocate.Arg("memory", "VM memory").Required().Int64()
	allocateAlgo   = allocate.Flag("with", "Algorithm for this request").String()

	status    = app.Command("status", "Show the coordinator's view of every agent")
	inventory = app.Command("inventory", "List the VMs on active agents")
	shell     = app.Command("shell", "Read VM sizes from stdin, one per line, until EOF or interrupt")
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := "warning"
	if *debug {
		level = "debug"
	}
	if err := logging.Configure(level, false, log.Fields{"app": app.Name}); err != nil {
		app.FatalIfError(err, "")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*coordinatorAddress, *algorithm, *timeout)
	var err error
	switch cmd {
	case allocate.FullCommand():
		err = allocateAction(ctx, c, *allocateMemory, *allocateAlgo)
	case status.FullCommand():
		err = statusAction(ctx, c)
	case inventory.FullCommand():
		err = inventoryAction(ctx, c)
	case shell.FullCommand():
		err = shellAction(ctx, c, os.Stdin)
	}
	app.FatalIfError(err, "")
}

func allocateAction(ctx context.Context, c *client.Client, memory int64, algo string) error {
	placed, err := c.Allocate(ctx, memory, algo)
	if err != nil {
		return err
	}
	if placed {
		fmt.Printf("VM(%d) allocated\n", memory)
	} else {
		fmt.Printf("VM(%d) failed: no server accepted it\n", memory)
	}
	return nil
}

func statusAction(ctx context.Context, c *client.Client) error {
	servers, err := c.ServerStatus(ctx)
	if err != nil {
		return err
	}
	return printServers(os.Stdout, *output, servers)
}

func inventoryAction(ctx context.Context, c *client.Client) error {
	vms, err := c.Inventory(ctx)
	if err != nil {
		return err
	}
	return printInventory(os.Stdout, *output, vms)
}

// shellAction places one VM per input line. An optional second word names
// the algorithm. Request failures are printed and the loop continues.
func shellAction(ctx context.Context, c *client.Client, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("vm> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "status" {
				if err := statusAction(ctx, c); err != nil {
					fmt.Println("error:", err)
				}
				continue
			}
			memory, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil || memory <= 0 {
				fmt.Println("expected a positive VM size or \"status\"")
				continue
			}
			algo := ""
			if len(fields) > 1 {
				algo = fields[1]
			}
			reqCtx, cancel := context.WithTimeout(ctx, *timeout)
			err = allocateAction(reqCtx, c, memory, algo)
			cancel()
			if err != nil {
				fmt.Println("error:", err)
			}
		}
	}
}
