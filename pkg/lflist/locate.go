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
	"fmt"
)

// validate returns the index and key of the node named by hn if it is still
// that incarnation and not removed.
//
// The generation is read after the fields: it changes before an
// incarnation's fields are rewritten, so an unchanged generation means the
// fields belong to the hinted incarnation.
func (h *Handle[K]) validate(hn hint) (idx uint32, key int64, ok bool) {
	idx = hn.index()
	if idx == nilIndex {
		return nilIndex, 0, false
	}
	n := h.arena.node(idx)
	next := n.loadNext()
	key = n.key.Load()
	if n.gen.Load() != hn.gen() || next.marked() {
		return nilIndex, 0, false
	}
	return idx, key, true
}

// rewind returns a node from which a traversal for key may begin: the hinted
// node if it is live and orders before key, or, when walking back is
// allowed, the nearest such node along prev hints. Any invalid hint yields
// head. With inclusive set, a node holding key itself qualifies.
func (h *Handle[K]) rewind(from hint, key int64, walk, inclusive bool) uint32 {
	var (
		bound   int64
		bounded bool
	)
	for {
		idx, k, ok := h.validate(from)
		if !ok || idx == headIndex {
			return headIndex
		}
		if idx != tailIndex {
			// prev hints lead to strictly smaller keys.
			if bounded && k >= bound {
				return headIndex
			}
			if k < key || inclusive && k == key {
				return idx
			}
			bound, bounded = k, true
		}
		if !walk {
			return headIndex
		}
		if countersEnabled {
			h.counters.Trav++
		}
		from = hint(h.arena.node(idx).prev.Load())
	}
}

// start returns the node a new traversal for key begins at.
func (h *Handle[K]) start(key int64) uint32 {
	if h.set.cfg.Cursor == CursorHead {
		return headIndex
	}
	return h.rewind(h.pred, key, h.set.cfg.Topology == Doubly, false)
}

// restart returns the node a traversal continues from after its predecessor
// pred was found removed.
func (h *Handle[K]) restart(pred uint32, key int64) uint32 {
	if countersEnabled {
		h.counters.Rtry++
	}
	cfg := &h.set.cfg
	if cfg.Restart == RestartHead {
		return headIndex
	}
	if cfg.Topology == Doubly {
		return h.rewind(h.set.hintOf(pred), key, true, false)
	}
	return h.start(key)
}

// locate finds adjacent nodes pred and curr such that pred orders before
// key and curr is the first live node that does not. Removed nodes met on
// the way are unlinked and retired. The result is also stored as the
// handle's cursor.
//
// The caller must be pinned.
func (h *Handle[K]) locate(key int64) (pred, curr uint32) {
	s := h.set
	doubly := s.cfg.Topology == Doubly
	pred = h.start(key)
retry:
	for {
		predNode := h.arena.node(pred)
		r := predNode.loadNext()
		if r.marked() {
			pred = h.restart(pred, key)
			continue
		}
		predHint := s.hintOf(pred)
		curr = r.index()
		if countersEnabled {
			h.counters.Trav++
		}
		for {
			currNode := h.arena.node(curr)
			succ := currNode.loadNext()
			for succ.marked() {
				succ = succ.unmarked()
				if predNode.next.CompareAndSwap(uint64(mkref(curr)), uint64(succ)) {
					h.retire(curr)
					if doubly {
						h.arena.node(succ.index()).prev.Store(uint64(predHint))
					}
				} else {
					if countersEnabled {
						h.counters.Fail++
					}
					if s.cfg.Restart == RestartHead {
						pred = h.restart(pred, key)
						continue retry
					}
					r := predNode.loadNext()
					if r.marked() {
						pred = h.restart(pred, key)
						continue retry
					}
					succ = r
				}
				curr = succ.index()
				currNode = h.arena.node(curr)
				succ = currNode.loadNext()
				if countersEnabled {
					h.counters.Trav++
				}
			}
			if doubly && hint(currNode.prev.Load()) != predHint {
				currNode.prev.Store(uint64(predHint))
			}
			if !s.below(curr, key) {
				if !s.ordered(pred, curr) {
					panic(fmt.Errorf("%w: slot %d precedes slot %d", ErrOrderViolation, pred, curr))
				}
				h.pred = predHint
				h.curr = s.hintOf(curr)
				return pred, curr
			}
			pred, predNode, predHint = curr, currNode, s.hintOf(curr)
			curr = succ.index()
			if countersEnabled {
				h.counters.Trav++
			}
		}
	}
}
