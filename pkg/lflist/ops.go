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

// Add inserts k and reports whether it was absent.
//
// Add panics with ErrArenaExhausted when the set has no free slot.
func (h *Handle[K]) Add(k K) bool {
	h.checkLive()
	key := int64(k)
	// alloc may wait for reclamation, which needs this handle unpinned.
	n := h.alloc(key)

	h.enter()
	defer h.exit()

	s := h.set
	for {
		pred, curr := h.locate(key)
		if s.holds(curr, key) {
			h.pushFree(n)
			return false
		}
		nn := h.arena.node(n)
		nn.next.Store(uint64(mkref(curr)))
		if s.cfg.Topology == Doubly {
			nn.prev.Store(uint64(h.pred))
		}
		if h.arena.node(pred).next.CompareAndSwap(uint64(mkref(curr)), uint64(mkref(n))) {
			if countersEnabled {
				h.counters.Adds++
			}
			if s.cfg.Topology == Doubly {
				h.arena.node(curr).prev.Store(uint64(s.hintOf(n)))
			}
			return true
		}
		if countersEnabled {
			h.counters.Fail++
		}
	}
}

// Remove deletes k and reports whether it was present. When several
// goroutines remove the same key concurrently, exactly one succeeds.
func (h *Handle[K]) Remove(k K) bool {
	h.enter()
	defer h.exit()

	key := int64(k)
	s := h.set
	for {
		pred, curr := h.locate(key)
		if !s.holds(curr, key) {
			return false
		}
		succ, won, again := h.mark(h.arena.node(curr))
		if again {
			continue
		}
		if !won {
			return false
		}
		// The node is now logically removed. Unlinking it here is an
		// optimization: if pred changed, a later traversal will do it.
		if h.arena.node(pred).next.CompareAndSwap(uint64(mkref(curr)), uint64(succ)) {
			h.retire(curr)
			if s.cfg.Topology == Doubly {
				h.arena.node(succ.index()).prev.Store(uint64(h.pred))
			}
		}
		if countersEnabled {
			h.counters.Rems++
		}
		return true
	}
}

// mark sets the mark bit of n using the configured strategy. It returns the
// unmarked successor of n and whether this call set the bit. again is set
// when the key has to be located anew.
func (h *Handle[K]) mark(n *node) (succ ref, won, again bool) {
	switch h.set.cfg.Mark {
	case MarkFetchOr:
		prev := ref(n.next.Or(uint64(markBit)))
		return prev, !prev.marked(), false

	case MarkSingleShot:
		succ = n.loadNext().unmarked()
		if n.next.CompareAndSwap(uint64(succ), uint64(succ|markBit)) {
			return succ, true, false
		}
		if countersEnabled {
			h.counters.Fail++
		}
		return 0, false, true

	default:
		prev, failed := n.next.OrLoop(uint64(markBit))
		if countersEnabled {
			h.counters.Fail += uint64(failed)
		}
		succ = ref(prev)
		return succ, !succ.marked(), false
	}
}

// Contains reports whether k is present. It never modifies the list.
func (h *Handle[K]) Contains(k K) bool {
	h.enter()
	defer h.exit()

	key := int64(k)
	s := h.set
	curr := headIndex
	if s.cfg.Cursor == CursorHint {
		curr = h.rewind(h.pred, key, s.cfg.Topology == Doubly, true)
	}
	for s.below(curr, key) {
		curr = h.arena.node(curr).loadNext().index()
		if countersEnabled {
			h.counters.Trav++
		}
	}
	found := s.holds(curr, key) && !h.arena.node(curr).loadNext().marked()
	if s.cfg.Cursor == CursorHint {
		h.pred = s.hintOf(curr)
	}
	if found && countersEnabled {
		h.counters.Cons++
	}
	return found
}
