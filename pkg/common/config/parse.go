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
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// ValidationError is returned when a configuration fails validation.
type ValidationError struct {
	errorMap validator.ErrorMap
}

// ErrForField returns the validation error for the given field.
func (e ValidationError) ErrForField(name string) error {
	if errs, ok := e.errorMap[name]; ok {
		return errs
	}
	return nil
}

func (e ValidationError) Error() string {
	var fields []string
	for f := range e.errorMap {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var w bytes.Buffer
	fmt.Fprint(&w, "validation failed")
	for _, f := range fields {
		fmt.Fprintf(&w, "\n   %s: %v", f, e.errorMap[f])
	}
	return w.String()
}

// Parse loads configFiles in order on top of the values already in config,
// so later files override earlier ones and callers can pre-fill defaults.
// The merged result is validated with `validate` struct tags.
func Parse(config interface{}, configFiles ...string) error {
	if err := Load(config, configFiles...); err != nil {
		return err
	}
	return Validate(config)
}

// Load merges configFiles into config like Parse but leaves validation to
// the caller, for binaries that apply flag overrides first.
func Load(config interface{}, configFiles ...string) error {
	for _, fname := range configFiles {
		data, err := os.ReadFile(fname)
		if err != nil {
			return errors.Wrapf(err, "failed to read config file %s", fname)
		}
		if err := yaml.UnmarshalStrict(data, config); err != nil {
			return errors.Wrapf(err, "failed to parse config file %s", fname)
		}
	}
	return nil
}

// Validate checks config against its `validate` struct tags.
func Validate(config interface{}) error {
	if err := validator.Validate(config); err != nil {
		if errorMap, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errorMap: errorMap}
		}
		return err
	}
	return nil
}
