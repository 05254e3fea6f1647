// Copyright 2024 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides basic infrastructure to set configuration settings
// for lfbench. Each setting is a flag registered with RegisterFlags and
// mirrored by a Config field tagged with the flag name.
package config

import (
	"fmt"
	"reflect"

	"gvisor.dev/lflist/pkg/lflist"
	"gvisor.dev/lflist/pkg/listbench"
	"gvisor.dev/lflist/pkg/log"
)

// Log formats.
const (
	LogFormatText       = "text"
	LogFormatJSON       = "json"
	LogFormatLogrus     = "logrus"
	LogFormatLogrusJSON = "logrus-json"
)

// Config holds configuration that is not part of a single benchmark run.
type Config struct {
	// LogFilename is the filename to log to, if not empty. %COMMAND% and
	// %TIMESTAMP% are replaced.
	LogFilename string `flag:"log"`

	// LogFormat is the log format: text, json, logrus or logrus-json.
	LogFormat string `flag:"log-format"`

	// Debug enables debug logging.
	Debug bool `flag:"debug"`

	// AlsoLogToStderr sends log messages to stderr as well as the log file.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// Targets lists the set implementations to benchmark.
	Targets listbench.TargetList `flag:"targets"`

	// Capacity bounds the lflist arena. Zero selects the library default.
	Capacity uint `flag:"capacity"`

	// Threads is the number of workers. Zero means GOMAXPROCS.
	Threads int `flag:"threads"`

	// Private gives every worker its own set.
	Private bool `flag:"private"`

	// Pin binds workers to CPUs.
	Pin bool `flag:"pin"`

	// Elements is the number of keys per worker of the deterministic
	// benchmark.
	Elements int `flag:"elements"`

	// AddStride, AddOffset, RemStride and RemOffset shape the keys of the
	// deterministic benchmark. Zero strides mean the thread count.
	AddStride int `flag:"add-stride"`
	AddOffset int `flag:"add-offset"`
	RemStride int `flag:"rem-stride"`
	RemOffset int `flag:"rem-offset"`

	// Ops is the number of operations per worker of the steady benchmark.
	Ops int `flag:"ops"`

	// Prefill is the number of random insertions per worker before the
	// steady benchmark.
	Prefill int `flag:"prefill"`

	// Universe is the key range of the steady benchmark. Zero means ten
	// times Prefill.
	Universe int `flag:"universe"`

	// AddPercent and RemPercent set the steady operation mix.
	AddPercent int `flag:"add-percent"`
	RemPercent int `flag:"rem-percent"`

	// Seed seeds the steady benchmark's generators.
	Seed uint64 `flag:"seed"`

	// Format is the report format.
	Format listbench.Format `flag:"format"`

	// Verbose adds per-thread lines to reports.
	Verbose bool `flag:"verbose"`
}

// Params returns the benchmark parameters held in c.
func (c *Config) Params() listbench.Params {
	return listbench.Params{
		Threads:    c.Threads,
		Private:    c.Private,
		Pin:        c.Pin,
		Elements:   c.Elements,
		AddStride:  c.AddStride,
		AddOffset:  c.AddOffset,
		RemStride:  c.RemStride,
		RemOffset:  c.RemOffset,
		Ops:        c.Ops,
		Prefill:    c.Prefill,
		Universe:   c.Universe,
		AddPercent: c.AddPercent,
		RemPercent: c.RemPercent,
		Seed:       c.Seed,
	}
}

// Lookup resolves the configured targets.
func (c *Config) Lookup() ([]listbench.Target, error) {
	if c.Capacity > lflist.MaxCapacity {
		return nil, fmt.Errorf("capacity %d exceeds %d", c.Capacity, uint(lflist.MaxCapacity))
	}
	targets := make([]listbench.Target, 0, len(c.Targets))
	for _, name := range c.Targets {
		t, err := listbench.Lookup(name, uint32(c.Capacity))
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON, LogFormatLogrus, LogFormatLogrusJSON:
	default:
		return fmt.Errorf("invalid log format %q, must be %q, %q, %q or %q", c.LogFormat, LogFormatText, LogFormatJSON, LogFormatLogrus, LogFormatLogrusJSON)
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("no benchmark targets")
	}
	if _, err := c.Lookup(); err != nil {
		return err
	}
	p := c.Params().WithDefaults()
	return p.Validate()
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			continue
		}
		log.Infof("\t%s: %s", name, getVal(obj.Field(i)))
	}
}
