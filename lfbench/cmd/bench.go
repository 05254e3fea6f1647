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
	"flag"
	"io"
	"os"

	"github.com/google/subcommands"

	"gvisor.dev/lflist/lfbench/config"
	"gvisor.dev/lflist/pkg/listbench"
)

// benchCommand runs a fixed list of benchmarks with the global configuration.
type benchCommand struct {
	benches []listbench.Benchmark

	// out receives the report. nil means stdout.
	out io.Writer
}

func (b *benchCommand) execute(ctx context.Context, f *flag.FlagSet, args []any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	out := b.out
	if out == nil {
		out = os.Stdout
	}
	results, runErr := runBenchmarks(ctx, conf, b.benches)
	if err := report(out, conf, results); err != nil {
		return Errorf("writing report: %v", err)
	}
	if runErr != nil {
		return Errorf("%v", runErr)
	}
	return subcommands.ExitSuccess
}

// Det implements subcommands.Command for the "det" command.
type Det struct {
	benchCommand
}

// Name implements subcommands.Command.Name.
func (*Det) Name() string {
	return "det"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Det) Synopsis() string {
	return "run the deterministic stress benchmark"
}

// Usage implements subcommands.Command.Usage.
func (*Det) Usage() string {
	return `det - run the deterministic stress benchmark.

Every worker inserts --elements keys in increasing order, checking each with
lookups and a repeated insertion, removes them again in decreasing order, and
finally looks each key up once more. Worker t uses the keys
i*stride + t*offset + t%stride. When the insertion and removal patterns agree
and give every worker its own keys, every result is checked.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Det) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (d *Det) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	d.benches = []listbench.Benchmark{listbench.Deterministic}
	return d.execute(ctx, f, args)
}

// Steady implements subcommands.Command for the "steady" command.
type Steady struct {
	benchCommand
}

// Name implements subcommands.Command.Name.
func (*Steady) Name() string {
	return "steady"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Steady) Synopsis() string {
	return "run the randomized steady-state benchmark"
}

// Usage implements subcommands.Command.Usage.
func (*Steady) Usage() string {
	return `steady - run the randomized steady-state benchmark.

Every worker prefills the set with --prefill random keys from [0, universe),
then performs --ops operations on random keys: --add-percent insertions,
--rem-percent removals and lookups for the rest.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Steady) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (s *Steady) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	s.benches = []listbench.Benchmark{listbench.Steady}
	return s.execute(ctx, f, args)
}

// All implements subcommands.Command for the "all" command.
type All struct {
	benchCommand
}

// Name implements subcommands.Command.Name.
func (*All) Name() string {
	return "all"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*All) Synopsis() string {
	return "run the deterministic and the steady-state benchmarks"
}

// Usage implements subcommands.Command.Usage.
func (*All) Usage() string {
	return "all - run det, then steady, on every target.\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*All) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (a *All) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	a.benches = []listbench.Benchmark{listbench.Deterministic, listbench.Steady}
	return a.execute(ctx, f, args)
}
