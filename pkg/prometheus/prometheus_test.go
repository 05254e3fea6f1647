// Copyright 2022 The gVisor Authors.
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

package prometheus

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/common/expfmt"
)

func TestWriteParses(t *testing.T) {
	when := time.Unix(1700000000, 0)
	adds := &Metric{Name: "adds_total", Type: TypeCounter, Help: "Successful adds.\nPer run."}
	tput := &Metric{Name: "throughput_kops", Type: TypeGauge}

	first := &Snapshot{When: when}
	first.Add(
		LabeledIntData(adds, map[string]string{"variant": "singly"}, 12),
		LabeledFloatData(tput, map[string]string{"variant": "singly"}, 1.5),
	)
	second := &Snapshot{When: when.Add(time.Second)}
	second.Add(LabeledIntData(adds, map[string]string{"variant": "doubly"}, 30))

	var buf bytes.Buffer
	n, err := Write(&buf, ExportOptions{
		CommentHeader:  "lfbench results",
		ExporterPrefix: "lfbench_",
		ExtraLabels:    map[string]string{"threads": "4"},
	}, first, second)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != buf.Len() {
		t.Errorf("Write returned %d, buffer holds %d bytes", n, buf.Len())
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, buf.String())
	}

	got := make(map[string]float64)
	for name, mf := range families {
		for _, m := range mf.GetMetric() {
			var variant string
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "variant" {
					variant = lp.GetValue()
				}
			}
			v := m.GetCounter().GetValue()
			if mf.GetType().String() == "GAUGE" {
				v = m.GetGauge().GetValue()
			}
			got[name+"/"+variant] = v
		}
	}
	want := map[string]float64{
		"lfbench_adds_total/singly":      12,
		"lfbench_adds_total/doubly":      30,
		"lfbench_throughput_kops/singly": 1.5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parsed metrics mismatch (-want +got):\n%s", diff)
	}
	if help := families["lfbench_adds_total"].GetHelp(); help != "Successful adds.\nPer run." {
		t.Errorf("help = %q", help)
	}
}

func TestDuplicateLabels(t *testing.T) {
	m := &Metric{Name: "x", Type: TypeGauge}
	s := NewSnapshot().Add(LabeledIntData(m, map[string]string{"a": "1"}, 1))
	var buf bytes.Buffer
	if _, err := Write(&buf, ExportOptions{ExtraLabels: map[string]string{"a": "2"}}, s); err == nil {
		t.Errorf("Write with duplicate label succeeded")
	}
}

func TestConflictingTypes(t *testing.T) {
	s := NewSnapshot().Add(
		NewIntData(&Metric{Name: "x", Type: TypeGauge}, 1),
		NewIntData(&Metric{Name: "x", Type: TypeCounter}, 1),
	)
	var buf bytes.Buffer
	if _, err := Write(&buf, ExportOptions{}, s); err == nil {
		t.Errorf("Write with conflicting types succeeded")
	}
}

func TestNumberString(t *testing.T) {
	for _, tc := range []struct {
		n    Number
		want string
	}{
		{Number{}, "0"},
		{Number{Int: -3}, "-3"},
		{Number{Float: 0.25}, "0.25"},
	} {
		if got := tc.n.String(); got != tc.want {
			t.Errorf("%+v.String() = %q, want %q", tc.n, got, tc.want)
		}
	}
}
