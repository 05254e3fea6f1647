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
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"gvisor.dev/lflist/pkg/lflist"
	"gvisor.dev/lflist/pkg/listbench"
)

// Variants implements subcommands.Command for the "variants" command.
type Variants struct {
	// out receives the listing. nil means stdout.
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Variants) Name() string {
	return "variants"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Variants) Synopsis() string {
	return "list the benchmark targets and the list variants they denote"
}

// Usage implements subcommands.Command.Usage.
func (*Variants) Usage() string {
	return `variants - list benchmark targets.

Besides the names listed, --targets accepts any switch combination written as
topology/cursor/restart/order/mark, for example doubly/hint/head/seqcst/cas.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Variants) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (v *Variants) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	out := v.out
	if out == nil {
		out = os.Stdout
	}
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tSWITCHES\tCONCURRENT\n")
	for _, name := range listbench.Targets() {
		switches := "-"
		if cfg, err := lflist.ParseVariant(name); err == nil {
			switches = cfg.Switches()
		}
		target, err := listbench.Lookup(name, 0)
		if err != nil {
			return Errorf("%v", err)
		}
		fmt.Fprintf(w, "%s\t%s\t%t\n", name, switches, target.Concurrent)
	}
	if err := w.Flush(); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}
