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
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/realprakhararya/hp-greedy/pkg/wire"
)

//go:generate mockgen -destination=mocks/mock_dispatcher.go -package=mocks github.com/realprakhararya/hp-greedy/pkg/coordinator AgentDispatcher

// AgentDispatcher performs a placement on the agent owning the chosen
// server. A false result with nil error is an ordinary rejection.
type AgentDispatcher interface {
	Allocate(ctx context.Context, address string, memory int64) (bool, error)
}

type wireDispatcher struct {
	timeout time.Duration
}

// NewAgentDispatcher returns a dispatcher sending allocate_vm requests
// over the wire protocol.
func NewAgentDispatcher(timeout time.Duration) AgentDispatcher {
	return &wireDispatcher{timeout: timeout}
}

func (d *wireDispatcher) Allocate(ctx context.Context, address string, memory int64) (bool, error) {
	resp, err := wire.Call(ctx, address, &wire.Request{
		Type:   wire.TypeAllocateVM,
		Memory: memory,
	}, d.timeout)
	if err != nil {
		return false, errors.Wrapf(err, "allocate on agent %s", address)
	}
	return resp.Status == wire.StatusAllocated, nil
}
