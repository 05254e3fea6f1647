// Copyright 2018 The gVisor Authors.
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

package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	expected := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if diff := cmp.Diff(expected, tw.lines); diff != "" {
		t.Errorf("unexpected lines (-want +got):\n%s", diff)
	}
}

type recordingEmitter struct {
	levels []Level
	msgs   []string
}

func (r *recordingEmitter) Emit(_ int, level Level, _ time.Time, format string, v ...any) {
	r.levels = append(r.levels, level)
	r.msgs = append(r.msgs, fmt.Sprintf(format, v...))
}

func TestBasicLoggerLevels(t *testing.T) {
	for _, tc := range []struct {
		level Level
		want  []string
	}{
		{level: Warning, want: []string{"w"}},
		{level: Info, want: []string{"i", "w"}},
		{level: Debug, want: []string{"d", "i", "w"}},
	} {
		t.Run(tc.level.String(), func(t *testing.T) {
			r := &recordingEmitter{}
			l := &BasicLogger{Level: tc.level, Emitter: r}
			l.Debugf("d")
			l.Infof("i")
			l.Warningf("w")
			if diff := cmp.Diff(tc.want, r.msgs); diff != "" {
				t.Errorf("emitted messages (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMultiEmitter(t *testing.T) {
	a, b := &recordingEmitter{}, &recordingEmitter{}
	m := MultiEmitter{a, b}
	l := &BasicLogger{Level: Info, Emitter: &m}
	l.Infof("hello %d", 1)
	for _, r := range []*recordingEmitter{a, b} {
		if diff := cmp.Diff([]string{"hello 1"}, r.msgs); diff != "" {
			t.Errorf("emitted messages (-want +got):\n%s", diff)
		}
	}
}

func TestGoogleEmitter(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: GoogleEmitter{&Writer{Next: tw}}}
	l.Warningf("value %d", 7)
	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(tw.lines), tw.lines)
	}
	line := tw.lines[0]
	if !strings.HasPrefix(line, "W") {
		t.Errorf("line %q does not start with the level", line)
	}
	if !strings.Contains(line, "log_test.go:") {
		t.Errorf("line %q does not name the caller", line)
	}
	if !strings.HasSuffix(line, "] value 7\n") {
		t.Errorf("line %q does not end with the message", line)
	}
}

func TestJSONEmitter(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Debug, Emitter: JSONEmitter{&Writer{Next: tw}}}
	l.Debugf("n=%d", 3)
	if len(tw.lines) == 0 {
		t.Fatalf("nothing written")
	}
	var got jsonLog
	if err := json.Unmarshal([]byte(tw.lines[0]), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", tw.lines[0], err)
	}
	if got.Msg != "n=3" || got.Level != Debug {
		t.Errorf("got %+v, want msg n=3 at debug", got)
	}
	if !strings.HasPrefix(got.Caller, "log_test.go:") {
		t.Errorf("caller = %q, want log_test.go:<line>", got.Caller)
	}
}

func TestLogrusEmitter(t *testing.T) {
	var buf bytes.Buffer
	l := &BasicLogger{Level: Info, Emitter: NewLogrusEmitter(&buf, true)}
	l.Infof("run %s", "det")
	l.Debugf("hidden")
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if got["msg"] != "run det" || got["level"] != "info" {
		t.Errorf("got %v, want msg %q at level info", got, "run det")
	}
}

func TestRateLimitedLogger(t *testing.T) {
	r := &recordingEmitter{}
	rl := RateLimitedLogger(&BasicLogger{Level: Info, Emitter: r}, time.Hour, 2)
	for i := 0; i < 5; i++ {
		rl.Warningf("failure %d", i)
	}
	if diff := cmp.Diff([]string{"failure 0", "failure 1"}, r.msgs); diff != "" {
		t.Errorf("emitted messages (-want +got):\n%s", diff)
	}
	if got := rl.Suppressed(); got != 3 {
		t.Errorf("Suppressed() = %d, want 3", got)
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenFile(filepath.Join(dir, "%CMD%", "run-%VARIANT%.log"), map[string]string{
		"CMD":     "det",
		"VARIANT": "singly",
	})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	want := filepath.Join(dir, "det", "run-singly.log")
	if f.Name() != want {
		t.Errorf("opened %q, want %q", f.Name(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("Stat(%q): %v", want, err)
	}

	if f, err := OpenFile("", nil); f != nil || err != nil {
		t.Errorf("OpenFile(\"\") = (%v, %v), want (nil, nil)", f, err)
	}
}
