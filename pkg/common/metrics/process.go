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
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/realprakhararya/hp-greedy/pkg/common/background"
)

const _shutdownTimeout = 5 * time.Second

// Process is the metrics plumbing of a daemon: the root scope, the HTTP
// endpoint serving the mux, and runtime sampling.
type Process struct {
	Scope  tally.Scope
	Mux    *http.ServeMux
	Health *Health

	closer io.Closer
	server *http.Server
	works  background.Manager
}

// StartProcess builds the root scope and, when httpPort is non zero,
// serves the mux on it. Handlers may be added to Mux until the first
// request arrives.
func StartProcess(cfg *Config, rootMetricScope string, httpPort int) (*Process, error) {
	p := &Process{Health: &Health{}}
	p.Scope, p.closer, p.Mux = InitMetricScope(cfg, rootMetricScope, p.Health)

	var works []background.Work
	if cfg != nil && cfg.RuntimeInterval > 0 {
		works = append(works, RuntimeWork(p.Scope, cfg.RuntimeInterval))
	}
	manager, err := background.NewManager(works...)
	if err != nil {
		p.closer.Close()
		return nil, err
	}
	p.works = manager
	p.works.Start()

	if httpPort != 0 {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", httpPort))
		if err != nil {
			p.Close()
			return nil, errors.Wrapf(err, "listen on http port %d", httpPort)
		}
		p.server = &http.Server{Handler: p.Mux}
		go func() {
			if err := p.server.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("HTTP server failed")
			}
		}()
		log.WithField("port", httpPort).Info("Serving metrics and health")
	}
	return p, nil
}

// Close stops serving and flushes the root scope.
func (p *Process) Close() error {
	p.Health.SetHealthy(false)
	p.works.Stop()

	var result *multierror.Error
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), _shutdownTimeout)
		defer cancel()
		if err := p.server.Shutdown(ctx); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "shutdown http server"))
		}
	}
	if err := p.closer.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "close metrics scope"))
	}
	return result.ErrorOrNil()
}
