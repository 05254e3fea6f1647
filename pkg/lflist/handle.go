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

package lflist

import (
	"golang.org/x/exp/constraints"

	"gvisor.dev/lflist/pkg/sync"
)

const (
	// collectEvery is the number of retirements between reclamation
	// attempts.
	collectEvery = 64

	// maxPrivateFree is the free list length above which collect releases
	// the private free list to the shared pool.
	maxPrivateFree = 2 * collectEvery

	// exhaustedEpochs is the number of epoch advances that alloc waits for
	// slots retired by other handles before it gives up.
	exhaustedEpochs = 3
)

// Handle is one goroutine's access point to a Set. It caches the position of
// the last lookup, keeps the slots it has retired until they may be reused,
// and counts what its operations did.
//
// A Handle must not be used by more than one goroutine at a time.
type Handle[K constraints.Signed] struct {
	_ sync.NoCopy

	set   *Set[K]
	arena *arena
	part  *participant

	// pred and curr are the result of the last traversal.
	pred hint
	curr hint

	// free is the head of the private free list, linked through node.free;
	// freeTail is its last element.
	free     uint32
	freeTail uint32
	nfree    int64

	// limbo holds retired slots in retirement order.
	limbo       []retired
	nextCollect int

	counters Counters
}

// Counters returns the counts accumulated since creation or the last
// ResetCounters.
func (h *Handle[K]) Counters() Counters {
	return h.counters
}

// ResetCounters zeroes the counters.
func (h *Handle[K]) ResetCounters() {
	h.counters = Counters{}
}

// Cleanup releases the handle's resources to its Set. Free slots go back to
// the shared pool and slots still in their grace period are handed to the
// Set, which frees them later. The handle must not be used afterwards;
// calling Cleanup again has no effect.
func (h *Handle[K]) Cleanup() {
	s := h.set
	if s == nil {
		return
	}
	h.releaseFree()
	s.adoptOrphans(h.limbo)
	h.limbo = nil
	s.epochs.unregister(h.part)
	h.part = nil
	h.set = nil
}

func (h *Handle[K]) checkLive() {
	if h.set == nil {
		panic("lflist: handle used after Cleanup")
	}
}

func (h *Handle[K]) enter() {
	h.checkLive()
	h.set.epochs.pin(h.part)
}

func (h *Handle[K]) exit() {
	h.set.epochs.unpin(h.part)
}

// alloc returns a fresh incarnation of a slot holding key. Slots come from
// the private free list, then the shared pool, then the unused arena. Once
// the arena is used up, alloc waits for retired slots to be reclaimed, so it
// must be called unpinned: a pinned caller holds back the epoch it waits on.
func (h *Handle[K]) alloc(key int64) uint32 {
	idx := h.reuse()
	if idx == nilIndex {
		idx = h.arena.alloc()
	}
	if idx == nilIndex {
		idx = h.awaitReclaim()
	}
	n := h.arena.node(idx)
	n.gen.Add(1)
	n.key.Store(key)
	n.prev.Store(0)
	n.next.Store(0)
	return idx
}

// reuse returns a previously used slot, or nilIndex if none is free.
func (h *Handle[K]) reuse() uint32 {
	if idx := h.popFree(); idx != nilIndex {
		return idx
	}
	if len(h.limbo) > 0 {
		h.collect()
		if idx := h.popFree(); idx != nilIndex {
			return idx
		}
	}
	return h.arena.pop()
}

// awaitReclaim spins until a retired slot becomes free. It keeps waiting as
// long as this handle's own limbo is non-empty; slots retired by other
// handles are waited for during exhaustedEpochs epoch advances only, since
// they reach the pool only when their owners collect. It panics with
// ErrArenaExhausted when nothing can be reclaimed.
func (h *Handle[K]) awaitReclaim() uint32 {
	s := h.set
	start := s.epochs.epoch.Load()
	idx := nilIndex
	sync.SpinWait(func() bool {
		if idx = h.reuse(); idx != nilIndex {
			return true
		}
		if len(h.limbo) > 0 {
			return false
		}
		if s.retired.Load() == 0 {
			return true
		}
		h.collect()
		return s.epochs.epoch.Load() >= start+exhaustedEpochs
	})
	if idx == nilIndex {
		idx = h.arena.pop()
	}
	if idx == nilIndex {
		panic(ErrArenaExhausted)
	}
	return idx
}

func (h *Handle[K]) pushFree(idx uint32) {
	h.arena.node(idx).free.Store(h.free)
	if h.free == nilIndex {
		h.freeTail = idx
	}
	h.free = idx
	h.nfree++
}

func (h *Handle[K]) popFree() uint32 {
	idx := h.free
	if idx == nilIndex {
		return nilIndex
	}
	h.free = h.arena.node(idx).free.Load()
	if h.free == nilIndex {
		h.freeTail = nilIndex
	}
	h.nfree--
	return idx
}

// releaseFree moves the private free list to the shared pool.
func (h *Handle[K]) releaseFree() {
	if h.free == nilIndex {
		return
	}
	h.arena.push(h.free, h.freeTail, h.nfree)
	h.free, h.freeTail, h.nfree = nilIndex, nilIndex, 0
}

// retire takes ownership of a slot that this handle unlinked. The slot is
// reused only after every operation that might hold it has finished.
func (h *Handle[K]) retire(idx uint32) {
	h.limbo = append(h.limbo, retired{idx: idx, epoch: h.set.epochs.epoch.Load()})
	h.set.retired.Add(1)
	if len(h.limbo) >= h.nextCollect {
		h.collect()
		h.nextCollect = len(h.limbo) + collectEvery
	}
}

// collect moves the slots whose grace period has ended from limbo to the
// free list. A free list grown past maxPrivateFree goes to the shared pool,
// where other handles can use it.
func (h *Handle[K]) collect() {
	g := h.set.epochs.tryAdvance()
	i := 0
	for ; i < len(h.limbo) && h.limbo[i].reclaimable(g); i++ {
		h.pushFree(h.limbo[i].idx)
	}
	if i > 0 {
		h.limbo = h.limbo[:copy(h.limbo, h.limbo[i:])]
		h.set.retired.Add(int64(-i))
	}
	if h.nfree > maxPrivateFree {
		h.releaseFree()
	}
	h.set.reapOrphans(g)
}
