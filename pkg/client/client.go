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

package client

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/realprakhararya/hp-greedy/pkg/wire"
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 5 * time.Second

// Client sends placement and status requests to a coordinator. It keeps
// no state between requests and never retries.
type Client struct {
	address   string
	algorithm string
	timeout   time.Duration
}

// New returns a client of the coordinator at address. algorithm is used
// for Allocate calls that name none; empty leaves the choice to the
// coordinator.
func New(address, algorithm string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		address:   address,
		algorithm: algorithm,
		timeout:   timeout,
	}
}

// Allocate asks the coordinator to place a VM of memory. It reports
// whether the VM was placed.
func (c *Client) Allocate(ctx context.Context, memory int64, algorithm string) (bool, error) {
	if algorithm == "" {
		algorithm = c.algorithm
	}
	resp, err := wire.Call(ctx, c.address, &wire.Request{
		Type:      wire.TypeAllocateVM,
		Memory:    memory,
		Algorithm: algorithm,
	}, c.timeout)
	if err != nil {
		return false, err
	}
	switch resp.Status {
	case wire.StatusAllocated:
		return true, nil
	case wire.StatusFailed:
		return false, nil
	default:
		return false, errors.Errorf("unexpected allocate status %q", resp.Status)
	}
}

// ServerStatus returns the coordinator's view of every agent.
func (c *Client) ServerStatus(ctx context.Context) ([]wire.ServerInfo, error) {
	resp, err := wire.Call(ctx, c.address, &wire.Request{Type: wire.TypeServerStatus}, c.timeout)
	if err != nil {
		return nil, err
	}
	return resp.Servers, nil
}

// Inventory returns every VM the coordinator mirrors on active agents.
func (c *Client) Inventory(ctx context.Context) ([]wire.VMInfo, error) {
	resp, err := wire.Call(ctx, c.address, &wire.Request{Type: wire.TypeSyncVMs}, c.timeout)
	if err != nil {
		return nil, err
	}
	return resp.VMs, nil
}
