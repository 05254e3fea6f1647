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

package listbench

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"gvisor.dev/lflist/pkg/lflist"
	"gvisor.dev/lflist/pkg/prometheus"
)

// Format is a report format, usable as a flag.
type Format string

// Report formats.
const (
	FormatText       Format = "text"
	FormatLatex      Format = "latex"
	FormatCSV        Format = "csv"
	FormatJSON       Format = "json"
	FormatPrometheus Format = "prometheus"
)

var formats = []Format{FormatText, FormatLatex, FormatCSV, FormatJSON, FormatPrometheus}

// String implements flag.Value.
func (f *Format) String() string {
	return string(*f)
}

// Get implements flag.Getter.
func (f *Format) Get() any {
	return *f
}

// Set implements flag.Value.
func (f *Format) Set(v string) error {
	for _, known := range formats {
		if Format(v) == known {
			*f = known
			return nil
		}
	}
	return fmt.Errorf("unknown report format %q, want one of %v", v, formats)
}

const (
	latexHeader = "Time (ms) & Total ops & Throughput (Kops/s) & adds & rems & cons& trav & fail & rtry \\\\\n"
	csvHeader   = "Time (ms);Total ops;Throughput (Kops/s);adds;rems;cons;trav;fail;rtry;threads;benchmark\n"
)

// Report writes results to w. verbose adds per-thread lines to the text and
// LaTeX formats.
func Report(w io.Writer, format Format, verbose bool, results ...*Result) error {
	switch format {
	case FormatText, "":
		for _, r := range results {
			if err := writeText(w, r, verbose); err != nil {
				return err
			}
		}
	case FormatLatex:
		for _, r := range results {
			if err := writeLatex(w, r, verbose); err != nil {
				return err
			}
		}
	case FormatCSV:
		if _, err := io.WriteString(w, csvHeader); err != nil {
			return err
		}
		for _, r := range results {
			c := &r.Counters
			if _, err := fmt.Fprintf(w, "%.2f;%d;%.2f;%d;%d;%d;%d;%d;%d;%d;%s\n",
				r.Millis(), r.Ops, r.Throughput(), c.Adds, c.Rems, c.Cons, c.Trav, c.Fail, c.Rtry, r.Params.Threads, r.Target); err != nil {
				return err
			}
		}
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonResults(results))
	case FormatPrometheus:
		_, err := prometheus.Write(w, prometheus.ExportOptions{
			CommentHeader:  "lflist benchmark results",
			ExporterPrefix: "lflist_bench_",
		}, Snapshot(results...))
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
	return nil
}

func writeThreads(w io.Writer, r *Result) error {
	for _, t := range r.Threads {
		c := &t.Counters
		if _, err := fmt.Fprintf(w, "%s Thread %d: ops %d adds %d rems %d cons %d trav %d fail %d rtry %d\n",
			r.Benchmark, t.Thread, t.Ops, c.Adds, c.Rems, c.Cons, c.Trav, c.Fail, c.Rtry); err != nil {
			return err
		}
	}
	return nil
}

func writeText(w io.Writer, r *Result, verbose bool) error {
	if verbose {
		if err := writeThreads(w, r); err != nil {
			return err
		}
	}
	c := &r.Counters
	_, err := fmt.Fprintf(w, "%s Threads: %d\nTime (ms) %.2f Total ops %d Throughput (Kops/s) %.2f\nadds %d rems %d cons %d trav %d fail %d rtry %d\n",
		r.Benchmark, r.Params.Threads, r.Millis(), r.Ops, r.Throughput(), c.Adds, c.Rems, c.Cons, c.Trav, c.Fail, c.Rtry)
	return err
}

func writeLatex(w io.Writer, r *Result, verbose bool) error {
	if verbose {
		if err := writeThreads(w, r); err != nil {
			return err
		}
	}
	c := &r.Counters
	_, err := fmt.Fprintf(w, "%s Threads: %d\n%s%.2f & %d & %.2f & %d & %d & %d & %d & %d & %d \\\\\n",
		r.Benchmark, r.Params.Threads, latexHeader, r.Millis(), r.Ops, r.Throughput(), c.Adds, c.Rems, c.Cons, c.Trav, c.Fail, c.Rtry)
	return err
}

type jsonResult struct {
	*Result
	Millis     float64 `json:"elapsed_ms"`
	Throughput float64 `json:"throughput_kops"`
}

func jsonResults(results []*Result) []jsonResult {
	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i] = jsonResult{Result: r, Millis: r.Millis(), Throughput: r.Throughput()}
	}
	return out
}

var (
	elapsedMetric = &prometheus.Metric{
		Name: "elapsed_milliseconds",
		Type: prometheus.TypeGauge,
		Help: "Longest time any worker spent in the timed phase.",
	}
	opsMetric = &prometheus.Metric{
		Name: "operations_total",
		Type: prometheus.TypeCounter,
		Help: "Operations performed by all workers.",
	}
	throughputMetric = &prometheus.Metric{
		Name: "throughput_kops",
		Type: prometheus.TypeGauge,
		Help: "Thousands of operations per second.",
	}
	eventsMetric = &prometheus.Metric{
		Name: "events_total",
		Type: prometheus.TypeCounter,
		Help: "Set counters summed over all workers, by event.",
	}
	failuresMetric = &prometheus.Metric{
		Name: "check_failures_total",
		Type: prometheus.TypeCounter,
		Help: "Operations whose result contradicted a disjoint key pattern.",
	}
)

// Snapshot converts results to a Prometheus snapshot labeled by benchmark,
// target, thread count and sharing mode.
func Snapshot(results ...*Result) *prometheus.Snapshot {
	s := prometheus.NewSnapshot()
	for _, r := range results {
		labels := func(extra ...string) map[string]string {
			mode := "shared"
			if r.Params.Private {
				mode = "private"
			}
			l := map[string]string{
				"benchmark": string(r.Benchmark),
				"variant":   r.Target,
				"threads":   strconv.Itoa(r.Params.Threads),
				"mode":      mode,
			}
			for i := 0; i+1 < len(extra); i += 2 {
				l[extra[i]] = extra[i+1]
			}
			return l
		}
		s.Add(
			prometheus.LabeledFloatData(elapsedMetric, labels(), r.Millis()),
			prometheus.LabeledIntData(opsMetric, labels(), int64(r.Ops)),
			prometheus.LabeledFloatData(throughputMetric, labels(), r.Throughput()),
			prometheus.LabeledIntData(failuresMetric, labels(), int64(r.FailureCount)),
		)
		if !lflist.Enabled() {
			continue
		}
		c := &r.Counters
		for _, e := range []struct {
			name string
			val  uint64
		}{
			{"adds", c.Adds},
			{"rems", c.Rems},
			{"cons", c.Cons},
			{"trav", c.Trav},
			{"fail", c.Fail},
			{"rtry", c.Rtry},
		} {
			s.Add(prometheus.LabeledIntData(eventsMetric, labels("event", e.name), int64(e.val)))
		}
	}
	return s
}
