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

// Package lflist provides a lock-free ordered set of integer keys.
//
// The set is a sorted linked list in the style of Harris: removal first marks
// a node's next link, which makes the key disappear, and then unlinks it.
// Any traversal that meets a marked node helps by unlinking it. Add, Remove
// and Contains are linearizable and lock-free; Contains never writes to the
// list.
//
// A Set is shared by any number of goroutines, each of which performs its
// operations through its own Handle:
//
//	s, err := lflist.New[int64](lflist.Config{})
//	...
//	h := s.NewHandle()
//	defer h.Cleanup()
//	h.Add(42)
//
// Nodes live in an arena and are recycled by epoch-based reclamation, so a
// node is never reused while an operation might still be looking at it.
package lflist

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"

	"gvisor.dev/lflist/pkg/atomicbitops"
	"gvisor.dev/lflist/pkg/sync"
)

var (
	// ErrInvalidConfig is returned for configurations with unknown switch
	// values or an out of range capacity.
	ErrInvalidConfig = errors.New("invalid list configuration")

	// ErrArenaExhausted is the panic value raised by Add when the arena has
	// no slot left and none is pending reclamation.
	ErrArenaExhausted = errors.New("list arena exhausted")

	// ErrOrderViolation reports a pair of linked nodes whose keys are not
	// strictly increasing. Traversals panic with it; Check returns it.
	ErrOrderViolation = errors.New("list order violated")
)

// Set is a lock-free ordered set of keys. It is safe for concurrent use
// through per-goroutine handles.
type Set[K constraints.Signed] struct {
	_ sync.NoCopy

	cfg    Config
	arena  arena
	epochs collector

	// orphanMu protects orphans, the retired slots of handles that were
	// cleaned up before their grace period ended.
	orphanMu sync.Mutex
	orphans  []retired

	// retired counts the slots in handle limbos and orphans, that is the
	// slots that will reach a free list once their grace period ends.
	retired atomicbitops.Int64

	// inspectMu serializes the inspection methods, which share one
	// participant record.
	inspectMu sync.Mutex
	inspector *participant
}

// New returns an empty set using the given configuration.
func New[K constraints.Signed](cfg Config) (*Set[K], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Set[K]{cfg: cfg}
	s.arena.init(cfg.capacity())
	head := s.arena.alloc()
	tail := s.arena.alloc()
	if head != headIndex || tail != tailIndex {
		panic(fmt.Sprintf("sentinels allocated at %d, %d", head, tail))
	}
	hn, tn := s.arena.node(head), s.arena.node(tail)
	hn.gen.Add(1)
	tn.gen.Add(1)
	tn.prev.Store(uint64(mkhint(hn.gen.Load(), head)))
	hn.next.Store(uint64(mkref(tail)))
	return s, nil
}

// Config returns the configuration s was created with.
func (s *Set[K]) Config() Config {
	return s.cfg
}

// NewHandle returns a handle for use by a single goroutine.
func (s *Set[K]) NewHandle() *Handle[K] {
	h := &Handle[K]{
		set:         s,
		arena:       &s.arena,
		part:        s.epochs.register(),
		nextCollect: collectEvery,
	}
	h.pred = s.hintOf(headIndex)
	h.curr = s.hintOf(tailIndex)
	return h
}

func (s *Set[K]) hintOf(idx uint32) hint {
	return mkhint(s.arena.node(idx).gen.Load(), idx)
}

// below reports whether the node at idx orders before key. Sentinels are
// recognized by index so that every key value is usable.
func (s *Set[K]) below(idx uint32, key int64) bool {
	switch idx {
	case headIndex:
		return true
	case tailIndex:
		return false
	}
	return s.arena.node(idx).key.Load() < key
}

// holds reports whether the node at idx carries key.
func (s *Set[K]) holds(idx uint32, key int64) bool {
	if idx == headIndex || idx == tailIndex {
		return false
	}
	return s.arena.node(idx).key.Load() == key
}

// ordered reports whether the node at a may precede the node at b.
func (s *Set[K]) ordered(a, b uint32) bool {
	if a == headIndex || b == tailIndex {
		return a != tailIndex && b != headIndex
	}
	if a == tailIndex || b == headIndex {
		return false
	}
	return s.arena.node(a).key.Load() < s.arena.node(b).key.Load()
}

// adoptOrphans takes ownership of retired slots from a handle being cleaned
// up.
func (s *Set[K]) adoptOrphans(rs []retired) {
	if len(rs) == 0 {
		return
	}
	s.orphanMu.Lock()
	s.orphans = append(s.orphans, rs...)
	s.orphanMu.Unlock()
}

// reapOrphans returns orphans whose grace period ended by epoch g to the
// arena pool. It never waits for the lock.
func (s *Set[K]) reapOrphans(g uint64) {
	if !s.orphanMu.TryLock() {
		return
	}
	defer s.orphanMu.Unlock()
	kept := s.orphans[:0]
	for _, r := range s.orphans {
		if r.reclaimable(g) {
			s.arena.push(r.idx, r.idx, 1)
			s.retired.Add(-1)
			continue
		}
		kept = append(kept, r)
	}
	s.orphans = kept
}

// walk calls fn with the index and next link of each node after head, in
// list order, stopping at tail or when fn returns false. The walk is pinned
// so that it may run concurrently with handles, but it only reflects a
// consistent state when no handle is mid-operation. It fails if a link leaves
// the allocated part of the arena or the list is longer than the arena.
func (s *Set[K]) walk(fn func(idx uint32, next ref) bool) error {
	s.inspectMu.Lock()
	defer s.inspectMu.Unlock()
	if s.inspector == nil {
		s.inspector = s.epochs.register()
	}
	s.epochs.pin(s.inspector)
	defer s.epochs.unpin(s.inspector)

	limit := s.arena.allocated()
	idx := s.arena.node(headIndex).loadNext().index()
	for steps := uint32(0); idx != tailIndex; steps++ {
		if idx == nilIndex || idx == headIndex || idx > limit {
			return fmt.Errorf("%w: link to slot %d", ErrOrderViolation, idx)
		}
		if steps > limit {
			return fmt.Errorf("%w: cycle after %d nodes", ErrOrderViolation, steps)
		}
		r := s.arena.node(idx).loadNext()
		if !fn(idx, r) {
			return nil
		}
		idx = r.index()
	}
	return nil
}

// Range calls fn for each present key in increasing order until fn returns
// false.
func (s *Set[K]) Range(fn func(K) bool) {
	err := s.walk(func(idx uint32, next ref) bool {
		if next.marked() {
			return true
		}
		return fn(K(s.arena.node(idx).key.Load()))
	})
	if err != nil {
		panic(err)
	}
}

// Keys returns the present keys in increasing order.
func (s *Set[K]) Keys() []K {
	var keys []K
	s.Range(func(k K) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Len returns the number of present keys.
func (s *Set[K]) Len() int {
	n := 0
	s.Range(func(K) bool {
		n++
		return true
	})
	return n
}

// Check verifies the structure of the list: head reaches tail, keys strictly
// increase along next links and no link leaves the arena. It is meant for
// quiescent sets, such as after every worker of a benchmark has finished.
func (s *Set[K]) Check() error {
	var orderErr error
	prev := headIndex
	err := s.walk(func(idx uint32, _ ref) bool {
		if !s.ordered(prev, idx) {
			orderErr = fmt.Errorf("%w: key %d follows key %d", ErrOrderViolation,
				s.arena.node(idx).key.Load(), s.arena.node(prev).key.Load())
			return false
		}
		prev = idx
		return true
	})
	if err != nil {
		return err
	}
	if orderErr != nil {
		return orderErr
	}
	if r := s.arena.node(tailIndex).loadNext(); r != 0 {
		return fmt.Errorf("%w: tail links to slot %d", ErrOrderViolation, r.index())
	}
	return nil
}

// ArenaStats describes node usage of a Set.
type ArenaStats struct {
	// Capacity is the configured number of slots.
	Capacity uint32 `json:"capacity"`

	// Allocated is the number of slots ever handed out, sentinels included.
	Allocated uint32 `json:"allocated"`

	// Pooled is the number of slots in the shared pool.
	Pooled int64 `json:"pooled"`

	// Orphans is the number of retired slots awaiting their grace period
	// after their handle was cleaned up.
	Orphans int `json:"orphans"`

	// Retired is the number of slots, orphans included, awaiting their
	// grace period.
	Retired int64 `json:"retired"`

	// Epoch is the current reclamation epoch.
	Epoch uint64 `json:"epoch"`
}

// Stats returns a snapshot of arena usage.
func (s *Set[K]) Stats() ArenaStats {
	s.orphanMu.Lock()
	orphans := len(s.orphans)
	s.orphanMu.Unlock()
	return ArenaStats{
		Capacity:  s.arena.capacity,
		Allocated: s.arena.allocated(),
		Pooled:    s.arena.pooled.Load(),
		Orphans:   orphans,
		Retired:   s.retired.Load(),
		Epoch:     s.epochs.epoch.Load(),
	}
}
