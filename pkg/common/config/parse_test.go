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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name     string        `yaml:"name" validate:"nonzero"`
	Port     int           `yaml:"port" validate:"min=1,max=65535"`
	Interval time.Duration `yaml:"interval"`
	Ratio    float64       `yaml:"ratio"`
}

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseMergesOverDefaults(t *testing.T) {
	cfg := testConfig{Name: "default", Port: 80, Ratio: 1.0}
	base := writeFile(t, "port: 5000\ninterval: 2s\n")
	override := writeFile(t, "name: coordinator\n")

	require.NoError(t, Parse(&cfg, base, override))
	assert.Equal(t, testConfig{
		Name:     "coordinator",
		Port:     5000,
		Interval: 2 * time.Second,
		Ratio:    1.0,
	}, cfg)
}

func TestParseNoFilesValidatesDefaults(t *testing.T) {
	cfg := testConfig{Name: "x", Port: 1}
	assert.NoError(t, Parse(&cfg))
}

func TestParseValidationFailure(t *testing.T) {
	cfg := testConfig{}
	err := Parse(&cfg, writeFile(t, "port: 70000\n"))
	require.Error(t, err)

	verr, ok := err.(ValidationError)
	require.True(t, ok)
	assert.Error(t, verr.ErrForField("Name"))
	assert.Error(t, verr.ErrForField("Port"))
	assert.NoError(t, verr.ErrForField("Ratio"))
	assert.Contains(t, verr.Error(), "validation failed")
}

func TestParseUnknownField(t *testing.T) {
	cfg := testConfig{Name: "x", Port: 1}
	err := Parse(&cfg, writeFile(t, "nmae: typo\n"))
	assert.Error(t, err)
}

func TestParseMissingFile(t *testing.T) {
	cfg := testConfig{Name: "x", Port: 1}
	err := Parse(&cfg, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadSkipsValidation(t *testing.T) {
	cfg := testConfig{}
	require.NoError(t, Load(&cfg, writeFile(t, "port: 70000\n")))
	assert.Equal(t, 70000, cfg.Port)
	assert.Error(t, Validate(&cfg))
}
