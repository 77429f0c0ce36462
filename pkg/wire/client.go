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

package wire

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// RemoteError is an error reply returned by a peer.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}

// Call sends req to address on a new connection and reads one reply. An
// error reply is returned as *RemoteError. timeout bounds the whole
// exchange, and the earlier of it and ctx's deadline wins.
func Call(ctx context.Context, address string, req *Request, timeout time.Duration) (*Response, error) {
	conn, err := dial(ctx, address, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := WriteMessage(conn, req); err != nil {
		return nil, errors.Wrapf(err, "send %s to %s", req.Type, address)
	}
	var resp Response
	if err := ReadMessage(conn, &resp); err != nil {
		return nil, errors.Wrapf(err, "read %s reply from %s", req.Type, address)
	}
	if resp.Status == StatusError {
		return nil, &RemoteError{Message: resp.Message}
	}
	return &resp, nil
}

// Notify sends req without waiting on the outcome. A reply, if one
// arrives before the deadline, is only logged.
func Notify(ctx context.Context, address string, req *Request, timeout time.Duration) error {
	conn, err := dial(ctx, address, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := WriteMessage(conn, req); err != nil {
		return errors.Wrapf(err, "send %s to %s", req.Type, address)
	}

	var resp Response
	if err := ReadMessage(conn, &resp); err != nil {
		log.WithError(err).WithField("type", req.Type).Debug("No acknowledgment")
		return nil
	}
	log.WithFields(log.Fields{
		"type":   req.Type,
		"status": resp.Status,
	}).Debug("Acknowledged")
	return nil
}

func dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", address)
	}
	conn.SetDeadline(deadline)
	return conn, nil
}
