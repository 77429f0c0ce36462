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
	log "github.com/sirupsen/logrus"
)

// LogFieldFormatter adds a fixed set of fields to every entry before
// delegating to the wrapped formatter.
type LogFieldFormatter struct {
	log.Formatter
	Fields log.Fields
}

// Format implements log.Formatter.
func (f LogFieldFormatter) Format(e *log.Entry) ([]byte, error) {
	for k, v := range f.Fields {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return f.Formatter.Format(e)
}

// Configure sets the process wide logger: JSON or text output, the level,
// and the fields identifying this process.
func Configure(level string, json bool, fields log.Fields) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	var formatter log.Formatter = &log.TextFormatter{FullTimestamp: true}
	if json {
		formatter = &log.JSONFormatter{}
	}
	log.SetFormatter(&LogFieldFormatter{Formatter: formatter, Fields: fields})
	log.SetLevel(lvl)
	return nil
}
