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

// Package cmd holds implementations of the lfbench commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gvisor.dev/lflist/lfbench/config"
	"gvisor.dev/lflist/pkg/listbench"
	"gvisor.dev/lflist/pkg/log"
)

// runBenchmarks runs benches on every target of conf. Results of runs that
// completed are returned even when others failed.
func runBenchmarks(ctx context.Context, conf *config.Config, benches []listbench.Benchmark) ([]*listbench.Result, error) {
	targets, err := conf.Lookup()
	if err != nil {
		return nil, err
	}
	var (
		results []*listbench.Result
		errs    []error
	)
	params := conf.Params()
	for _, bench := range benches {
		for _, target := range targets {
			if err := ctx.Err(); err != nil {
				return results, errors.Join(append(errs, err)...)
			}
			log.Infof("Running %s on %s", bench, target.Name)
			res, err := listbench.Run(ctx, bench, target, params)
			if res != nil {
				log.Infof("%s on %s: %.2f ms, %d ops, %.2f Kops/s", bench, target.Name, res.Millis(), res.Ops, res.Throughput())
				results = append(results, res)
			}
			if err != nil {
				log.Warningf("%s on %s failed: %v", bench, target.Name, err)
				errs = append(errs, fmt.Errorf("%s on %s: %w", bench, target.Name, err))
			}
		}
	}
	return results, errors.Join(errs...)
}

// report writes results in the configured format.
func report(w io.Writer, conf *config.Config, results []*listbench.Result) error {
	if len(results) == 0 {
		return nil
	}
	return listbench.Report(w, conf.Format, conf.Verbose, results...)
}
