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
	"fmt"
	"runtime"
	"time"

	"gvisor.dev/lflist/pkg/lflist"
)

// Params describes a run. Zero values select the defaults documented on
// each field.
type Params struct {
	// Threads is the number of workers. Zero means GOMAXPROCS.
	Threads int `json:"threads"`

	// Private gives every worker its own instance instead of sharing one.
	Private bool `json:"private"`

	// Pin binds each worker to its own CPU where supported.
	Pin bool `json:"pin,omitempty"`

	// Elements is the number of keys each worker handles in the
	// deterministic benchmark.
	Elements int `json:"elements,omitempty"`

	// AddStride and AddOffset generate the keys of the insertion phase:
	// worker t uses i*AddStride + t*AddOffset + t%AddStride. The stride
	// defaults to Threads.
	AddStride int `json:"add_stride,omitempty"`
	AddOffset int `json:"add_offset,omitempty"`

	// RemStride and RemOffset generate the keys of the removal phases in
	// the same way. The stride defaults to Threads.
	RemStride int `json:"rem_stride,omitempty"`
	RemOffset int `json:"rem_offset,omitempty"`

	// Ops is the number of operations per worker in the steady benchmark.
	Ops int `json:"ops,omitempty"`

	// Prefill is the number of random insertions per worker before the
	// steady benchmark is timed.
	Prefill int `json:"prefill,omitempty"`

	// Universe bounds the random keys to [0, Universe). Zero means ten
	// times Prefill.
	Universe int `json:"universe,omitempty"`

	// AddPercent and RemPercent give the operation mix of the steady
	// benchmark; the remainder are lookups.
	AddPercent int `json:"add_percent,omitempty"`
	RemPercent int `json:"rem_percent,omitempty"`

	// Seed seeds worker t's generator with Seed+t.
	Seed uint64 `json:"seed,omitempty"`
}

// WithDefaults returns p with unset fields filled in.
func (p Params) WithDefaults() Params {
	if p.Threads <= 0 {
		p.Threads = runtime.GOMAXPROCS(0)
	}
	if p.AddStride == 0 {
		p.AddStride = p.Threads
	}
	if p.RemStride == 0 {
		p.RemStride = p.Threads
	}
	if p.Universe == 0 {
		p.Universe = 10 * p.Prefill
	}
	return p
}

// Validate checks p, which must have had its defaults applied.
func (p *Params) Validate() error {
	switch {
	case p.Threads <= 0:
		return fmt.Errorf("%w: %d threads", ErrInvalidParams, p.Threads)
	case p.Elements < 0, p.Ops < 0, p.Prefill < 0:
		return fmt.Errorf("%w: negative element, operation or prefill count", ErrInvalidParams)
	case p.AddStride <= 0 || p.RemStride <= 0:
		return fmt.Errorf("%w: strides must be positive, got %d and %d", ErrInvalidParams, p.AddStride, p.RemStride)
	case p.Universe <= 0 && (p.Ops > 0 || p.Prefill > 0):
		return fmt.Errorf("%w: empty key universe", ErrInvalidParams)
	case p.AddPercent < 0 || p.RemPercent < 0 || p.AddPercent+p.RemPercent > 100:
		return fmt.Errorf("%w: add %d%% and remove %d%% do not form a mix", ErrInvalidParams, p.AddPercent, p.RemPercent)
	}
	return nil
}

// Disjoint reports whether the deterministic key pattern gives every worker
// its own keys, in which case every operation result is predictable.
func (p *Params) Disjoint() bool {
	return (p.AddStride == p.RemStride && p.AddOffset == p.RemOffset) &&
		(p.AddStride == p.Threads || (p.AddStride == 1 && p.AddOffset == p.Elements))
}

func detKey(i, t, stride, offset int) int64 {
	return int64(i)*int64(stride) + int64(t)*int64(offset) + int64(t%stride)
}

// Benchmark names a workload.
type Benchmark string

// Workloads.
const (
	Deterministic Benchmark = "DET"
	Steady        Benchmark = "STEADY"
)

// ThreadResult is what one worker did.
type ThreadResult struct {
	Thread   int             `json:"thread"`
	Ops      uint64          `json:"ops"`
	Elapsed  time.Duration   `json:"elapsed_ns"`
	Counters lflist.Counters `json:"counters"`
}

// CheckFailure records an operation of the deterministic benchmark whose
// result contradicted the key pattern.
type CheckFailure struct {
	Thread int    `json:"thread"`
	Key    int64  `json:"key"`
	Check  string `json:"check"`
}

func (f CheckFailure) String() string {
	return fmt.Sprintf("thread %d key %d: %s", f.Thread, f.Key, f.Check)
}

// Result summarizes a run.
type Result struct {
	Benchmark Benchmark `json:"benchmark"`
	Target    string    `json:"target"`
	Params    Params    `json:"params"`

	// Elapsed is the longest time any worker spent in its timed phase.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Ops is the total number of operations performed.
	Ops uint64 `json:"ops"`

	// Counters is the sum of the workers' counters.
	Counters lflist.Counters `json:"counters"`

	Threads []ThreadResult `json:"threads"`

	// Failures holds the first check failures of a deterministic run;
	// FailureCount counts all of them.
	Failures     []CheckFailure `json:"failures,omitempty"`
	FailureCount int            `json:"failure_count,omitempty"`
}

// Throughput returns thousands of operations per second.
func (r *Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Elapsed.Seconds() / 1000
}

// Millis returns Elapsed in milliseconds.
func (r *Result) Millis() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}
