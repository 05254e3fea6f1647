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

// collector implements epoch-based reclamation.
//
// Every operation pins its participant to the current global epoch for its
// duration. The global epoch only advances when every pinned participant has
// observed it, so a slot retired at epoch e cannot be referenced by any
// operation once the global epoch reaches e+2.
type collector struct {
	epoch atomicbitops.Uint64

	// participants is a push-only list. Records are recycled through
	// participant.inUse rather than removed.
	participants atomic.Pointer[participant]
}

type participant struct {
	// state is epoch<<1 | 1 while pinned and 0 otherwise.
	state atomicbitops.Uint64

	inUse atomicbitops.Bool

	// next is immutable once the record is published.
	next *participant
}

// register returns an unused participant record, allocating one only when
// every existing record is taken.
func (c *collector) register() *participant {
	for p := c.participants.Load(); p != nil; p = p.next {
		if !p.inUse.Load() && p.inUse.CompareAndSwap(false, true) {
			return p
		}
	}
	p := &participant{}
	p.inUse.Store(true)
	for {
		head := c.participants.Load()
		p.next = head
		if c.participants.CompareAndSwap(head, p) {
			return p
		}
	}
}

func (c *collector) unregister(p *participant) {
	p.state.Store(0)
	p.inUse.Store(false)
}

// pin records that p is inside an operation at the current epoch.
func (c *collector) pin(p *participant) {
	e := c.epoch.Load()
	for {
		p.state.Store(e<<1 | 1)
		cur := c.epoch.Load()
		if cur == e {
			return
		}
		e = cur
	}
}

func (c *collector) unpin(p *participant) {
	p.state.Store(0)
}

// tryAdvance increments the global epoch if no pinned participant lags
// behind it, and returns the resulting epoch.
func (c *collector) tryAdvance() uint64 {
	e := c.epoch.Load()
	for p := c.participants.Load(); p != nil; p = p.next {
		if s := p.state.Load(); s&1 != 0 && s>>1 != e {
			return e
		}
	}
	if c.epoch.CompareAndSwap(e, e+1) {
		return e + 1
	}
	return c.epoch.Load()
}

// retired is a slot waiting for its grace period.
type retired struct {
	idx   uint32
	epoch uint64
}

// reclaimable reports whether no operation can still reference r when the
// global epoch is g.
func (r retired) reclaimable(g uint64) bool {
	return r.epoch+2 <= g
}
