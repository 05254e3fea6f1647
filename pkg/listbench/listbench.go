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

// Package listbench measures ordered-set implementations under the two
// workloads used to evaluate the lock-free list: a deterministic stress test
// in which every worker checks the results of its own operations, and a
// randomized steady-state mix of adds, removes and lookups.
package listbench

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/btree"

	"gvisor.dev/lflist/pkg/lflist"
	"gvisor.dev/lflist/pkg/seqlist"
	"gvisor.dev/lflist/pkg/sync"
)

var (
	// ErrUnknownTarget is returned by Lookup for names that denote no
	// implementation.
	ErrUnknownTarget = errors.New("unknown benchmark target")

	// ErrNotConcurrent is returned when a sequential target is asked to
	// serve several workers at once.
	ErrNotConcurrent = errors.New("target does not support concurrent workers")

	// ErrInvalidParams is returned for inconsistent workload parameters.
	ErrInvalidParams = errors.New("invalid benchmark parameters")

	// ErrCheckFailed is returned when a deterministic run observed an
	// operation result that contradicts its disjoint key pattern.
	ErrCheckFailed = errors.New("operation check failed")

	// ErrInconsistent is returned when the set contents after a run do not
	// match the successful operations.
	ErrInconsistent = errors.New("set inconsistent after run")
)

// Set is the view of an ordered set held by one worker.
type Set interface {
	Add(key int64) bool
	Remove(key int64) bool
	Contains(key int64) bool
	Counters() lflist.Counters
	ResetCounters()
	Cleanup()
}

// Instance is one set data structure.
type Instance interface {
	// Worker returns the Set through which worker t operates.
	Worker(t int) Set

	// Len returns the number of keys. It is only called when no worker is
	// running.
	Len() int

	// Check verifies the internal structure. It is only called when no
	// worker is running.
	Check() error
}

// Target describes a set implementation under test.
type Target struct {
	// Name identifies the implementation in reports.
	Name string

	// Concurrent reports whether an instance may serve several workers.
	Concurrent bool

	// New returns an empty instance.
	New func() (Instance, error)
}

// Lookup returns the target called name: "seq" for the sequential list,
// "btree" for a lock-protected B-tree, or any lflist variant. capacity bounds
// the lflist arena; zero selects the default.
func Lookup(name string, capacity uint32) (Target, error) {
	switch name {
	case "seq":
		return Target{
			Name: name,
			New: func() (Instance, error) {
				l, err := seqlist.New[int64](lflist.Config{})
				if err != nil {
					return nil, err
				}
				return seqInstance{l}, nil
			},
		}, nil
	case "btree":
		return Target{
			Name:       name,
			Concurrent: true,
			New: func() (Instance, error) {
				return &btreeInstance{tree: btree.NewOrderedG[int64](btreeDegree)}, nil
			},
		}, nil
	}
	cfg, err := lflist.ParseVariant(name)
	if err != nil {
		return Target{}, fmt.Errorf("%w %q: %v", ErrUnknownTarget, name, err)
	}
	cfg.Capacity = capacity
	return Target{
		Name:       cfg.Name(),
		Concurrent: true,
		New: func() (Instance, error) {
			s, err := lflist.New[int64](cfg)
			if err != nil {
				return nil, err
			}
			return lflistInstance{s}, nil
		},
	}, nil
}

// Targets returns the names accepted by Lookup, lflist presets first.
func Targets() []string {
	names := lflist.Variants()
	extra := []string{"btree", "seq"}
	sort.Strings(extra)
	return append(names, extra...)
}

// TargetList is a comma separated list of target names, usable as a flag.
type TargetList []string

// String implements flag.Value.
func (l *TargetList) String() string {
	return strings.Join(*l, ",")
}

// Get implements flag.Getter.
func (l *TargetList) Get() any {
	return *l
}

// Set implements flag.Value.
func (l *TargetList) Set(v string) error {
	*l = nil
	for _, name := range strings.Split(v, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*l = append(*l, name)
		}
	}
	return nil
}

type lflistInstance struct {
	s *lflist.Set[int64]
}

func (i lflistInstance) Worker(int) Set {
	return i.s.NewHandle()
}

func (i lflistInstance) Len() int {
	return i.s.Len()
}

func (i lflistInstance) Check() error {
	return i.s.Check()
}

type seqInstance struct {
	l *seqlist.List[int64]
}

func (i seqInstance) Worker(int) Set {
	return i.l
}

func (i seqInstance) Len() int {
	return len(i.l.Keys())
}

func (i seqInstance) Check() error {
	keys := i.l.Keys()
	for j := 1; j < len(keys); j++ {
		if keys[j-1] >= keys[j] {
			return fmt.Errorf("%w: key %d follows key %d", lflist.ErrOrderViolation, keys[j], keys[j-1])
		}
	}
	return nil
}

const btreeDegree = 32

// btreeInstance is a B-tree guarded by a reader/writer lock, the locking
// baseline for the lock-free list.
type btreeInstance struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[int64]
}

func (i *btreeInstance) Worker(int) Set {
	return &btreeWorker{inst: i}
}

func (i *btreeInstance) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tree.Len()
}

func (i *btreeInstance) Check() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var (
		err   error
		prev  int64
		first = true
	)
	i.tree.Ascend(func(k int64) bool {
		if !first && k <= prev {
			err = fmt.Errorf("%w: key %d follows key %d", lflist.ErrOrderViolation, k, prev)
			return false
		}
		prev, first = k, false
		return true
	})
	return err
}

type btreeWorker struct {
	inst     *btreeInstance
	counters lflist.Counters
}

func (w *btreeWorker) Add(key int64) bool {
	w.inst.mu.Lock()
	_, had := w.inst.tree.ReplaceOrInsert(key)
	w.inst.mu.Unlock()
	if !had {
		w.counters.Adds++
	}
	return !had
}

func (w *btreeWorker) Remove(key int64) bool {
	w.inst.mu.Lock()
	_, had := w.inst.tree.Delete(key)
	w.inst.mu.Unlock()
	if had {
		w.counters.Rems++
	}
	return had
}

func (w *btreeWorker) Contains(key int64) bool {
	w.inst.mu.RLock()
	has := w.inst.tree.Has(key)
	w.inst.mu.RUnlock()
	if has {
		w.counters.Cons++
	}
	return has
}

func (w *btreeWorker) Counters() lflist.Counters {
	return w.counters
}

func (w *btreeWorker) ResetCounters() {
	w.counters = lflist.Counters{}
}

func (w *btreeWorker) Cleanup() {}
