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
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/common/expfmt"

	"gvisor.dev/lflist/pkg/lflist"
)

func sampleResult() *Result {
	return &Result{
		Benchmark: Deterministic,
		Target:    "singly",
		Params:    Params{Threads: 2, Elements: 10},
		Elapsed:   1500 * time.Microsecond,
		Ops:       180,
		Counters:  lflist.Counters{Adds: 20, Rems: 20, Cons: 40, Trav: 400, Fail: 1, Rtry: 2},
		Threads: []ThreadResult{
			{Thread: 0, Ops: 90, Elapsed: time.Millisecond, Counters: lflist.Counters{Adds: 10, Rems: 10, Cons: 20, Trav: 200, Fail: 1}},
			{Thread: 1, Ops: 90, Elapsed: 1500 * time.Microsecond, Counters: lflist.Counters{Adds: 10, Rems: 10, Cons: 20, Trav: 200, Rtry: 2}},
		},
	}
}

func TestThroughput(t *testing.T) {
	r := sampleResult()
	if got, want := r.Throughput(), 120.0; math.Abs(got-want) > 1e-6 {
		t.Errorf("Throughput() = %v, want %v", got, want)
	}
	if got := (&Result{Ops: 5}).Throughput(); got != 0 {
		t.Errorf("Throughput() without elapsed time = %v, want 0", got)
	}
}

func TestReportText(t *testing.T) {
	var buf bytes.Buffer
	if err := Report(&buf, FormatText, true, sampleResult()); err != nil {
		t.Fatalf("Report: %v", err)
	}
	want := "DET Thread 0: ops 90 adds 10 rems 10 cons 20 trav 200 fail 1 rtry 0\n" +
		"DET Thread 1: ops 90 adds 10 rems 10 cons 20 trav 200 fail 0 rtry 2\n" +
		"DET Threads: 2\n" +
		"Time (ms) 1.50 Total ops 180 Throughput (Kops/s) 120.00\n" +
		"adds 20 rems 20 cons 40 trav 400 fail 1 rtry 2\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("text report mismatch (-want +got):\n%s", diff)
	}
}

func TestReportLatex(t *testing.T) {
	var buf bytes.Buffer
	if err := Report(&buf, FormatLatex, false, sampleResult()); err != nil {
		t.Fatalf("Report: %v", err)
	}
	want := "DET Threads: 2\n" +
		"Time (ms) & Total ops & Throughput (Kops/s) & adds & rems & cons& trav & fail & rtry \\\\\n" +
		"1.50 & 180 & 120.00 & 20 & 20 & 40 & 400 & 1 & 2 \\\\\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("LaTeX report mismatch (-want +got):\n%s", diff)
	}
}

func TestReportCSV(t *testing.T) {
	r1 := sampleResult()
	r2 := sampleResult()
	r2.Benchmark = Steady
	r2.Target = "btree"
	var buf bytes.Buffer
	if err := Report(&buf, FormatCSV, false, r1, r2); err != nil {
		t.Fatalf("Report: %v", err)
	}
	want := "Time (ms);Total ops;Throughput (Kops/s);adds;rems;cons;trav;fail;rtry;threads;benchmark\n" +
		"1.50;180;120.00;20;20;40;400;1;2;2;singly\n" +
		"1.50;180;120.00;20;20;40;400;1;2;2;btree\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("CSV report mismatch (-want +got):\n%s", diff)
	}
}

func TestReportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Report(&buf, FormatJSON, false, sampleResult()); err != nil {
		t.Fatalf("Report: %v", err)
	}
	var got []struct {
		Benchmark  string          `json:"benchmark"`
		Target     string          `json:"target"`
		Ops        uint64          `json:"ops"`
		Throughput float64         `json:"throughput_kops"`
		Counters   lflist.Counters `json:"counters"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal(%s): %v", buf.String(), err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	r := got[0]
	if r.Benchmark != "DET" || r.Target != "singly" || r.Ops != 180 || math.Abs(r.Throughput-120) > 1e-6 {
		t.Errorf("unexpected result %+v", r)
	}
	if diff := cmp.Diff(sampleResult().Counters, r.Counters); diff != "" {
		t.Errorf("counters mismatch (-want +got):\n%s", diff)
	}
}

func TestReportPrometheus(t *testing.T) {
	r2 := sampleResult()
	r2.Params.Private = true
	var buf bytes.Buffer
	if err := Report(&buf, FormatPrometheus, false, sampleResult(), r2); err != nil {
		t.Fatalf("Report: %v", err)
	}
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("parsing report: %v\n%s", err, buf.String())
	}
	ops, ok := families["lflist_bench_operations_total"]
	if !ok {
		t.Fatalf("no operations metric in:\n%s", buf.String())
	}
	if got := len(ops.GetMetric()); got != 2 {
		t.Errorf("got %d operation samples, want 2", got)
	}
	for _, m := range ops.GetMetric() {
		labels := make(map[string]string)
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["benchmark"] != "DET" || labels["variant"] != "singly" || labels["threads"] != "2" {
			t.Errorf("unexpected labels %v", labels)
		}
		if got := m.GetCounter().GetValue(); got != 180 {
			t.Errorf("operations = %v, want 180", got)
		}
	}
	events, ok := families["lflist_bench_events_total"]
	if lflist.Enabled() != ok {
		t.Errorf("events metric present = %t, counters enabled = %t", ok, lflist.Enabled())
	}
	if ok && len(events.GetMetric()) != 12 {
		t.Errorf("got %d event samples, want 12", len(events.GetMetric()))
	}
}

func TestFormatFlag(t *testing.T) {
	var f Format
	if err := f.Set("csv"); err != nil || f != FormatCSV {
		t.Errorf("Set(csv) = %v, format %q", err, f)
	}
	if err := f.Set("xml"); err == nil {
		t.Errorf("Set(xml) succeeded")
	}
}
