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

package logging

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// LevelOverwrite is the endpoint for the level overwrite handler.
const LevelOverwrite = "/logging-level"

const _usage = "usage: GET /logging-level?level=[info|debug]&duration=<duration>"

// LevelOverwriteHandler raises the log level to info or debug for a
// duration, then restores initialLevel.
func LevelOverwriteHandler(initialLevel log.Level) http.HandlerFunc {
	var generation atomic.Int64
	log.SetLevel(initialLevel)

	return func(w http.ResponseWriter, r *http.Request) {
		level, duration, err := parseOverwrite(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, err.Error())
			fmt.Fprintln(w, _usage)
			return
		}

		log.WithFields(log.Fields{
			"new_level": level,
			"duration":  duration,
		}).Info("Overwriting log level")
		log.SetLevel(level)

		// Only the latest overwrite restores the level.
		current := generation.Inc()
		time.AfterFunc(duration, func() {
			if generation.Load() == current {
				log.WithField("level", initialLevel).Info("Restoring log level")
				log.SetLevel(initialLevel)
			}
		})

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Level changed to %s for the next %v.\n", level, duration)
	}
}

func parseOverwrite(r *http.Request) (log.Level, time.Duration, error) {
	values := r.URL.Query()
	rawLevel, rawDuration := values.Get("level"), values.Get("duration")
	if rawLevel == "" || rawDuration == "" {
		return 0, 0, errors.New("required params not set: level, duration")
	}

	level, err := log.ParseLevel(rawLevel)
	if err != nil {
		return 0, 0, err
	}
	if level != log.InfoLevel && level != log.DebugLevel {
		return 0, 0, errors.Errorf("level %s is not info or debug", rawLevel)
	}

	duration, err := time.ParseDuration(rawDuration)
	if err != nil {
		return 0, 0, err
	}
	return level, duration, nil
}
