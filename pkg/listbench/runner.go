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
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"gvisor.dev/lflist/pkg/atomicbitops"
	"gvisor.dev/lflist/pkg/cleanup"
	"gvisor.dev/lflist/pkg/lflist"
	"gvisor.dev/lflist/pkg/log"
	"gvisor.dev/lflist/pkg/sync"
)

const (
	// ctxCheckMask sets how often workers poll for cancellation.
	ctxCheckMask = 1<<10 - 1

	// maxRecordedFailures bounds Result.Failures.
	maxRecordedFailures = 32
)

const (
	failureLogEvery = time.Second
	failureLogBurst = 10
)

// worker is the per-goroutine state of a run.
type worker struct {
	t    int
	set  Set
	inst int

	// added and removed count successful operations by their results, so
	// that consistency can be checked with counters compiled out.
	added   int
	removed int

	ops      uint64
	elapsed  time.Duration
	counters lflist.Counters
	failures []CheckFailure
	nfail    int
	failLog  log.Logger
}

func (w *worker) fail(key int64, check string) {
	w.nfail++
	if len(w.failures) < maxRecordedFailures {
		w.failures = append(w.failures, CheckFailure{Thread: w.t, Key: key, Check: check})
	}
	w.failLog.Warningf("Check failed: thread %d key %d: %s", w.t, key, check)
}

func (w *worker) add(key int64) bool {
	w.ops++
	if w.set.Add(key) {
		w.added++
		return true
	}
	return false
}

func (w *worker) remove(key int64) bool {
	w.ops++
	if w.set.Remove(key) {
		w.removed++
		return true
	}
	return false
}

func (w *worker) contains(key int64) bool {
	w.ops++
	return w.set.Contains(key)
}

// run holds what the workers of one benchmark share.
type run struct {
	target    Target
	params    Params
	instances []Instance
	ready     atomicbitops.Int64
}

func newRun(target Target, p Params) (*run, error) {
	p = p.WithDefaults()
	if !p.Private && !target.Concurrent && p.Threads > 1 {
		return nil, fmt.Errorf("%w: %s with %d threads", ErrNotConcurrent, target.Name, p.Threads)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := 1
	if p.Private {
		n = p.Threads
	}
	r := &run{target: target, params: p, instances: make([]Instance, n)}
	for i := range r.instances {
		inst, err := target.New()
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", target.Name, err)
		}
		r.instances[i] = inst
	}
	return r, nil
}

// barrier blocks until every worker has arrived or ctx is done.
func (r *run) barrier(ctx context.Context) error {
	r.ready.Add(1)
	sync.SpinWait(func() bool {
		return r.ready.Load() >= int64(r.params.Threads) || ctx.Err() != nil
	})
	return ctx.Err()
}

// execute runs body on every worker and reduces the results. prepare runs
// before the barrier and is not timed.
func (r *run) execute(ctx context.Context, bench Benchmark, prepare, body func(context.Context, *worker) error) (*Result, error) {
	p := &r.params
	workers := make([]*worker, p.Threads)
	// Check failures are rate limited so that a pattern that is not
	// disjoint by accident does not flood the log.
	failLog := log.RateLimitedLogger(log.Log(), failureLogEvery, failureLogBurst)
	g, gctx := errgroup.WithContext(ctx)
	for t := range workers {
		w := &worker{t: t, failLog: failLog}
		if p.Private {
			w.inst = t
		}
		workers[t] = w
		g.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					e, ok := v.(error)
					if !ok || !(errors.Is(e, lflist.ErrArenaExhausted) || errors.Is(e, lflist.ErrOrderViolation)) {
						panic(v)
					}
					err = fmt.Errorf("thread %d: %w", w.t, e)
				}
			}()
			if p.Pin {
				restore, err := pinThread(t)
				if err != nil {
					return fmt.Errorf("pinning thread %d: %w", t, err)
				}
				cu := cleanup.Make(restore)
				defer cu.Clean()
			}
			w.set = r.instances[w.inst].Worker(t)
			defer w.set.Cleanup()
			if prepare != nil {
				if err := prepare(gctx, w); err != nil {
					return err
				}
			}
			w.set.ResetCounters()
			if err := r.barrier(gctx); err != nil {
				return err
			}
			start := time.Now()
			if err := body(gctx, w); err != nil {
				return err
			}
			w.elapsed = time.Since(start)
			w.counters = w.set.Counters()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Benchmark: bench,
		Target:    r.target.Name,
		Params:    r.params,
		Threads:   make([]ThreadResult, 0, len(workers)),
	}
	for _, w := range workers {
		res.Elapsed = max(res.Elapsed, w.elapsed)
		res.Ops += w.ops
		res.Counters.Add(w.counters)
		res.Threads = append(res.Threads, ThreadResult{
			Thread:   w.t,
			Ops:      w.ops,
			Elapsed:  w.elapsed,
			Counters: w.counters,
		})
		res.FailureCount += w.nfail
		for _, f := range w.failures {
			if len(res.Failures) < maxRecordedFailures {
				res.Failures = append(res.Failures, f)
			}
		}
	}
	if n := failLog.Suppressed(); n > 0 {
		log.Debugf("%d check failure messages suppressed", n)
	}
	if err := r.verify(workers); err != nil {
		return res, err
	}
	if res.FailureCount > 0 {
		return res, fmt.Errorf("%w: %d failures in %s run of %s, first: %v", ErrCheckFailed, res.FailureCount, bench, r.target.Name, res.Failures[0])
	}
	return res, nil
}

// verify checks that every instance holds exactly the keys its workers'
// successful operations leave behind.
func (r *run) verify(workers []*worker) error {
	want := make([]int, len(r.instances))
	for _, w := range workers {
		want[w.inst] += w.added - w.removed
	}
	for i, inst := range r.instances {
		if err := inst.Check(); err != nil {
			return fmt.Errorf("%w: instance %d: %w", ErrInconsistent, i, err)
		}
		if got := inst.Len(); got != want[i] {
			return fmt.Errorf("%w: instance %d holds %d keys, operations leave %d", ErrInconsistent, i, got, want[i])
		}
	}
	return nil
}

// RunDeterministic runs the deterministic stress benchmark: every worker
// inserts its keys in increasing order, removes them in decreasing order and
// finally looks them all up once more, checking each result when the key
// pattern is disjoint.
func RunDeterministic(ctx context.Context, target Target, p Params) (*Result, error) {
	r, err := newRun(target, p)
	if err != nil {
		return nil, err
	}
	p = r.params
	disjoint := p.Disjoint()
	log.Debugf("DET %s: %d threads, %d elements, disjoint %t", target.Name, p.Threads, p.Elements, disjoint)

	check := func(w *worker, ok bool, key int64, what string) {
		if disjoint && !ok {
			w.fail(key, what)
		}
	}
	body := func(ctx context.Context, w *worker) error {
		n := p.Elements
		for i := 0; i < n; i++ {
			if i&ctxCheckMask == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			key := detKey(i, w.t, p.AddStride, p.AddOffset)
			check(w, !w.contains(key), key, "absent before add")
			check(w, w.add(key), key, "add succeeds")
			check(w, w.contains(key), key, "present after add")
			check(w, !w.add(key), key, "second add fails")
		}
		for i := n - 1; i >= 0; i-- {
			if i&ctxCheckMask == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			key := detKey(i, w.t, p.RemStride, p.RemOffset)
			check(w, w.contains(key), key, "present before remove")
			check(w, w.remove(key), key, "remove succeeds")
			check(w, !w.contains(key), key, "absent after remove")
			check(w, !w.remove(key), key, "second remove fails")
		}
		for i := 0; i < n; i++ {
			if i&ctxCheckMask == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			key := detKey(i, w.t, p.RemStride, p.RemOffset)
			check(w, !w.contains(key), key, "absent at end")
		}
		return nil
	}
	return r.execute(ctx, Deterministic, nil, body)
}

// RunSteady runs the randomized benchmark: every worker prefills its set
// with random keys, then performs a mix of adds, removes and lookups of keys
// drawn uniformly from the universe.
func RunSteady(ctx context.Context, target Target, p Params) (*Result, error) {
	r, err := newRun(target, p)
	if err != nil {
		return nil, err
	}
	p = r.params
	log.Debugf("STEADY %s: %d threads, %d ops, prefill %d, universe %d, mix %d/%d", target.Name, p.Threads, p.Ops, p.Prefill, p.Universe, p.AddPercent, p.RemPercent)

	rngs := make([]*rand.Rand, p.Threads)
	for t := range rngs {
		seed := p.Seed + uint64(t)
		rngs[t] = rand.New(rand.NewPCG(seed, seed))
	}
	universe := uint64(p.Universe)
	prepare := func(ctx context.Context, w *worker) error {
		rng := rngs[w.t]
		for i := 0; i < p.Prefill; i++ {
			if i&ctxCheckMask == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			w.add(int64(rng.Uint64N(universe)))
		}
		w.ops = 0
		return nil
	}
	body := func(ctx context.Context, w *worker) error {
		rng := rngs[w.t]
		for i := 0; i < p.Ops; i++ {
			if i&ctxCheckMask == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			key := int64(rng.Uint64N(universe))
			switch op := rng.IntN(100); {
			case op < p.AddPercent:
				w.add(key)
			case op < p.AddPercent+p.RemPercent:
				w.remove(key)
			default:
				w.contains(key)
			}
		}
		return nil
	}
	return r.execute(ctx, Steady, prepare, body)
}

// Run runs bench.
func Run(ctx context.Context, bench Benchmark, target Target, p Params) (*Result, error) {
	switch bench {
	case Deterministic:
		return RunDeterministic(ctx, target, p)
	case Steady:
		return RunSteady(ctx, target, p)
	default:
		return nil, fmt.Errorf("%w: unknown benchmark %q", ErrInvalidParams, bench)
	}
}
