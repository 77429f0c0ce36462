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
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/realprakhararya/hp-greedy/pkg/wire"
)

type serverRow struct {
	IP       string  `json:"ip" yaml:"ip"`
	Port     int     `json:"port" yaml:"port"`
	Capacity int64   `json:"capacity" yaml:"capacity"`
	Used     int64   `json:"used" yaml:"used"`
	Free     int64   `json:"free" yaml:"free"`
	Active   bool    `json:"active" yaml:"active"`
	VMs      []int64 `json:"vms" yaml:"vms"`
}

type vmRow struct {
	ServerIP   string `json:"server_ip" yaml:"server_ip"`
	ServerPort int    `json:"server_port" yaml:"server_port"`
	Memory     int64  `json:"memory" yaml:"memory"`
}

func printServers(w io.Writer, format string, servers []wire.ServerInfo) error {
	rows := make([]serverRow, 0, len(servers))
	for _, s := range servers {
		rows = append(rows, serverRow(s))
	}
	if format != "table" {
		return printStructured(w, format, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No servers registered")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(tw, "IP\tPort\tCapacity\tUsed\tFree\tActive\tVMs\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%t\t%v\t\n",
			r.IP, r.Port, r.Capacity, r.Used, r.Free, r.Active, r.VMs)
	}
	return tw.Flush()
}

func printInventory(w io.Writer, format string, vms []wire.VMInfo) error {
	rows := make([]vmRow, 0, len(vms))
	for _, vm := range vms {
		rows = append(rows, vmRow(vm))
	}
	if format != "table" {
		return printStructured(w, format, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(tw, "Server\tPort\tMemory\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t\n", r.ServerIP, r.ServerPort, r.Memory)
	}
	return tw.Flush()
}

func printStructured(w io.Writer, format string, v interface{}) error {
	var (
		out []byte
		err error
	)
	switch format {
	case "json":
		out, err = json.MarshalIndent(v, "", "  ")
		out = append(out, '\n')
	case "yaml":
		out, err = yaml.Marshal(v)
	default:
		return errors.Errorf("invalid format %s", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
