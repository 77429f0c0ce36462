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
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/realprakhararya/hp-greedy/pkg/common/lifecycle"
)

// DefaultTimeout bounds reading a request and writing its reply.
const DefaultTimeout = 5 * time.Second

// HandlerFunc serves one decoded request. A returned error becomes an
// error reply. peer is the remote address of the connection.
type HandlerFunc func(ctx context.Context, req *Request, peer net.Addr) (*Response, error)

// Server accepts one request per connection and dispatches it by type.
// Handlers may be registered before or after Start.
type Server struct {
	name    string
	address string
	timeout time.Duration

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	mu        sync.Mutex
	listener  net.Listener
	lifeCycle lifecycle.LifeCycle
	metrics   *serverMetrics
}

type serverMetrics struct {
	scope       tally.Scope
	decodeError tally.Counter
	unknown     tally.Counter
}

// NewServer returns a server listening on address once started.
func NewServer(name, address string, timeout time.Duration, scope tally.Scope) *Server {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if scope == nil {
		scope = tally.NoopScope
	}
	scope = scope.SubScope("wire")
	return &Server{
		name:      name,
		address:   address,
		timeout:   timeout,
		handlers:  make(map[string]HandlerFunc),
		lifeCycle: lifecycle.NewLifeCycle(),
		metrics: &serverMetrics{
			scope:       scope,
			decodeError: scope.Counter("decode_error"),
			unknown:     scope.Counter("unknown_command"),
		},
	}
}

// Handle registers the handler for a message type, replacing any previous
// one. Connections accepted afterwards use the new handler.
func (s *Server) Handle(msgType string, handler HandlerFunc) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[msgType] = handler
}

func (s *Server) handler(msgType string) (HandlerFunc, bool) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	handler, ok := s.handlers[msgType]
	return handler, ok
}

// Start binds the listener and serves connections until Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lifeCycle.Start() {
		return nil
	}
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.lifeCycle.Stop()
		return errors.Wrapf(err, "listen on %s", s.address)
	}
	s.listener = listener
	log.WithFields(log.Fields{
		"name":    s.name,
		"address": listener.Addr().String(),
	}).Info("Listening")

	s.lifeCycle.Go(func(stop <-chan struct{}) {
		<-stop
		listener.Close()
	})
	s.lifeCycle.Go(func(stop <-chan struct{}) {
		s.serve(listener, stop)
	})
	return nil
}

// Addr returns the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifeCycle.Stop() {
		log.WithField("name", s.name).Info("Stopped listening")
	}
}

func (s *Server) serve(listener net.Listener, stop <-chan struct{}) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			log.WithError(err).WithField("name", s.name).Warn("Accept failed")
			time.Sleep(10 * time.Millisecond)
			continue
		}
		started := s.lifeCycle.Go(func(stop <-chan struct{}) {
			s.handleConnection(conn, stop)
		})
		if !started {
			conn.Close()
		}
	}
}

func (s *Server) handleConnection(conn net.Conn, stop <-chan struct{}) {
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	conn.SetDeadline(time.Now().Add(s.timeout))

	var req Request
	if err := ReadMessage(conn, &req); err != nil {
		s.metrics.decodeError.Inc(1)
		log.WithError(err).
			WithField("peer", conn.RemoteAddr().String()).
			Warn("Failed to read request")
		s.reply(conn, Errorf(err.Error()))
		return
	}

	handler, ok := s.handler(req.Type)
	if !ok {
		s.metrics.unknown.Inc(1)
		s.reply(conn, &Response{Status: StatusUnknownCommand})
		return
	}

	s.metrics.scope.Tagged(map[string]string{"type": req.Type}).Counter("request").Inc(1)
	resp, err := handler(ctx, &req, conn.RemoteAddr())
	if err != nil {
		log.WithError(err).WithField("type", req.Type).Warn("Request failed")
		resp = Errorf(err.Error())
	}
	if resp == nil {
		resp = &Response{Status: StatusOK}
	}
	s.reply(conn, resp)
}

func (s *Server) reply(conn net.Conn, resp *Response) {
	if err := WriteMessage(conn, resp); err != nil {
		log.WithError(err).
			WithField("peer", conn.RemoteAddr().String()).
			Debug("Failed to write reply")
	}
}
