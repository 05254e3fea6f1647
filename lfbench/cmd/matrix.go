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

package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"gvisor.dev/lflist/lfbench/config"
	"gvisor.dev/lflist/pkg/listbench"
	"gvisor.dev/lflist/pkg/log"
)

// Matrix implements subcommands.Command for the "matrix" command.
type Matrix struct {
	keepGoing bool

	// out receives the report. nil means stdout.
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Matrix) Name() string {
	return "matrix"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Matrix) Synopsis() string {
	return "run the batch of benchmarks described by a TOML file"
}

// Usage implements subcommands.Command.Usage.
func (*Matrix) Usage() string {
	return `matrix [flags] <file.toml> - run a batch of benchmarks.

The file holds a list of runs. Each run starts from the global flags and
overrides the flags listed in its flags table:

	[[run]]
	name = "contended"
	benchmarks = ["steady"]
	[run.flags]
	threads = "8"
	add-percent = "40"
	rem-percent = "40"

All results are reported together in the format of the global --format flag.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *Matrix) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&m.keepGoing, "keep-going", false, "continue with the next run after a failed one.")
}

// Execute implements subcommands.Command.Execute.
func (m *Matrix) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	matrix, err := config.LoadMatrix(f.Arg(0))
	if err != nil {
		return Errorf("%v", err)
	}
	out := m.out
	if out == nil {
		out = os.Stdout
	}

	results, runErr := m.run(ctx, conf, matrix)
	if err := report(out, conf, results); err != nil {
		return Errorf("writing report: %v", err)
	}
	if runErr != nil {
		return Errorf("%v", runErr)
	}
	return subcommands.ExitSuccess
}

func (m *Matrix) run(ctx context.Context, conf *config.Config, matrix *config.Matrix) ([]*listbench.Result, error) {
	var (
		results []*listbench.Result
		errs    []error
	)
	for i := range matrix.Runs {
		run := &matrix.Runs[i]
		runConf, err := conf.Apply(run)
		if err != nil {
			return results, err
		}
		benches, err := config.ParseBenchmarks(run.Benchmarks)
		if err != nil {
			return results, err
		}
		log.Infof("Matrix run %q: %v", run.Name, runConf.ToFlags())
		res, err := runBenchmarks(ctx, runConf, benches)
		results = append(results, res...)
		if err != nil {
			err = fmt.Errorf("run %q: %w", run.Name, err)
			if !m.keepGoing || ctx.Err() != nil {
				return results, err
			}
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}
