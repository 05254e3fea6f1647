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
	"sync/atomic"

	"gvisor.dev/lflist/pkg/atomicbitops"
)

const (
	chunkShift = 10
	chunkSize  = 1 << chunkShift
	chunkMask  = chunkSize - 1
)

type chunk [chunkSize]node

// arena owns every node of a Set. Slots are addressed by index and are never
// released to the Go runtime, so a stale index always designates readable
// memory; whether it designates the same element is decided by generation.
//
// Slots come either from the pool, a lock-free stack of indices released by
// handles, or from the bump counter, which hands out never-used slots.
// Chunks of slots are allocated on first use.
type arena struct {
	capacity uint32

	// chunks has a fixed length; entries are published with CAS.
	chunks []atomic.Pointer[chunk]

	// bump is the next never-used index.
	bump atomicbitops.Uint32

	// pool is the head of the free stack, as version<<32 | index. The
	// version changes on every update so that a pop cannot succeed against
	// a head that was popped and pushed back in between.
	pool atomicbitops.Uint64

	// pooled approximates the number of slots in pool.
	pooled atomicbitops.Int64
}

func (a *arena) init(capacity uint32) {
	a.capacity = capacity
	a.chunks = make([]atomic.Pointer[chunk], (uint64(capacity)+chunkMask)>>chunkShift)
	a.bump.Store(headIndex)
}

// node returns the slot for idx. idx must have been handed out by alloc.
func (a *arena) node(idx uint32) *node {
	return &a.chunks[idx>>chunkShift].Load()[idx&chunkMask]
}

// alloc returns a slot from the pool or, failing that, a never-used one. It
// returns nilIndex when neither is available.
func (a *arena) alloc() uint32 {
	if idx := a.pop(); idx != nilIndex {
		return idx
	}
	idx := a.bump.Add(1) - 1
	if idx >= a.capacity || idx < headIndex {
		// Keep bump saturated so that later callers fail the same way.
		a.bump.Store(a.capacity)
		return nilIndex
	}
	c := &a.chunks[idx>>chunkShift]
	if c.Load() == nil {
		c.CompareAndSwap(nil, new(chunk))
	}
	return idx
}

// allocated returns the number of slots ever handed out by bump.
func (a *arena) allocated() uint32 {
	b := a.bump.Load()
	if b > a.capacity {
		b = a.capacity
	}
	return b - headIndex
}

// push releases the chain first..last, linked through free, to the pool.
func (a *arena) push(first, last uint32, n int64) {
	lastNode := a.node(last)
	for {
		old := a.pool.Load()
		lastNode.free.Store(uint32(old))
		if a.pool.CompareAndSwap(old, (old>>32+1)<<32|uint64(first)) {
			a.pooled.Add(n)
			return
		}
	}
}

func (a *arena) pop() uint32 {
	for {
		old := a.pool.Load()
		top := uint32(old)
		if top == nilIndex {
			return nilIndex
		}
		next := a.node(top).free.Load()
		if a.pool.CompareAndSwap(old, (old>>32+1)<<32|uint64(next)) {
			a.pooled.Add(-1)
			return top
		}
	}
}
