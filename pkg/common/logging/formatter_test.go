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
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestFormatterAddsProcessFields(t *testing.T) {
	formatter := LogFieldFormatter{
		Fields:    log.Fields{"app": "hp-agent", "port": 5001},
		Formatter: &log.JSONFormatter{},
	}
	b, err := formatter.Format(log.WithField("memory", 40))
	assert.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, `"app":"hp-agent"`)
	assert.Contains(t, s, `"port":5001`)
	assert.Contains(t, s, `"memory":40`)
}

func TestFormatterKeepsEntryFields(t *testing.T) {
	formatter := LogFieldFormatter{
		Fields:    log.Fields{"component": "default"},
		Formatter: &log.JSONFormatter{},
	}
	b, err := formatter.Format(log.WithField("component", "agent"))
	assert.NoError(t, err)
	assert.Contains(t, string(b), `"component":"agent"`)
}

func TestConfigure(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	assert.Error(t, Configure("loud", false, nil))
	assert.NoError(t, Configure("debug", true, log.Fields{"app": "coordinator"}))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}
