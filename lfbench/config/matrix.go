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

package config

import (
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mohae/deepcopy"

	"gvisor.dev/lflist/pkg/listbench"
)

// Matrix is a batch of runs read from a TOML file:
//
//	[[run]]
//	name = "contended"
//	benchmarks = ["steady"]
//	[run.flags]
//	threads = "8"
//	add-percent = "40"
//	rem-percent = "40"
//
// Each run starts from the command line configuration and overrides the
// flags it names.
type Matrix struct {
	Runs []Run `toml:"run"`
}

// Run is one entry of a Matrix.
type Run struct {
	// Name labels the run in logs.
	Name string `toml:"name"`

	// Benchmarks lists "det", "steady" or "all". Empty means all.
	Benchmarks []string `toml:"benchmarks"`

	// Flags maps flag names to values, converted with the same rules as
	// the command line.
	Flags map[string]string `toml:"flags"`
}

// ParseMatrix decodes a matrix from TOML text.
func ParseMatrix(data string) (*Matrix, error) {
	var m Matrix
	md, err := toml.Decode(data, &m)
	if err != nil {
		return nil, fmt.Errorf("decoding matrix: %w", err)
	}
	return checkMatrix(&m, md)
}

// LoadMatrix reads a matrix from a TOML file.
func LoadMatrix(path string) (*Matrix, error) {
	var m Matrix
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("decoding matrix %q: %w", path, err)
	}
	return checkMatrix(&m, md)
}

func checkMatrix(m *Matrix, md toml.MetaData) (*Matrix, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown matrix keys: %s", strings.Join(keys, ", "))
	}
	if len(m.Runs) == 0 {
		return nil, fmt.Errorf("matrix has no runs")
	}
	for i := range m.Runs {
		r := &m.Runs[i]
		if r.Name == "" {
			r.Name = fmt.Sprintf("run%d", i)
		}
		if _, err := ParseBenchmarks(r.Benchmarks); err != nil {
			return nil, fmt.Errorf("run %q: %w", r.Name, err)
		}
	}
	return m, nil
}

// Apply returns a copy of c with the run's flags applied. c is not modified.
func (c *Config) Apply(r *Run) (*Config, error) {
	conf := deepcopy.Copy(c).(*Config)

	flagSet := flag.NewFlagSet("matrix", flag.ContinueOnError)
	RegisterFlags(flagSet)

	names := make([]string, 0, len(r.Flags))
	for name := range r.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	// Flags are validated together, so that a run may change settings that
	// are only consistent as a whole.
	for _, name := range names {
		if err := conf.set(flagSet, name, r.Flags[name]); err != nil {
			return nil, fmt.Errorf("run %q: %w", r.Name, err)
		}
	}
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("run %q: %w", r.Name, err)
	}
	return conf, nil
}

// ParseBenchmarks converts benchmark names. An empty list selects both
// benchmarks.
func ParseBenchmarks(names []string) ([]listbench.Benchmark, error) {
	if len(names) == 0 {
		return []listbench.Benchmark{listbench.Deterministic, listbench.Steady}, nil
	}
	var benches []listbench.Benchmark
	for _, name := range names {
		switch strings.ToLower(name) {
		case "det", "deterministic":
			benches = append(benches, listbench.Deterministic)
		case "steady":
			benches = append(benches, listbench.Steady)
		case "all":
			benches = append(benches, listbench.Deterministic, listbench.Steady)
		default:
			return nil, fmt.Errorf("unknown benchmark %q, want det, steady or all", name)
		}
	}
	return benches, nil
}
