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

// Package seqlist provides a sequential sorted linked-list set. It has the
// same operations and counters as package lflist and serves as the
// single-threaded baseline in benchmarks.
package seqlist

import (
	"golang.org/x/exp/constraints"

	"gvisor.dev/lflist/pkg/lflist"
)

type node[K constraints.Signed] struct {
	key  K
	next *node[K]
	prev *node[K]
	free *node[K]
}

// List is a sorted set of keys. It is not safe for concurrent use.
//
// Of the lflist switches only Topology and Cursor have an effect.
type List[K constraints.Signed] struct {
	cfg  lflist.Config
	head *node[K]
	tail *node[K]

	// pred is the predecessor found by the last lookup.
	pred *node[K]

	// free holds removed nodes for reuse by Add.
	free *node[K]

	counters lflist.Counters
}

// New returns an empty list.
func New[K constraints.Signed](cfg lflist.Config) (*List[K], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	head, tail := &node[K]{}, &node[K]{}
	head.next = tail
	tail.prev = head
	return &List[K]{
		cfg:  cfg,
		head: head,
		tail: tail,
		pred: head,
	}, nil
}

func (l *List[K]) below(n *node[K], key K) bool {
	return n == l.head || (n != l.tail && n.key < key)
}

func (l *List[K]) doubly() bool {
	return l.cfg.Topology == lflist.Doubly
}

func (l *List[K]) cursor() *node[K] {
	if l.cfg.Cursor == lflist.CursorHint && l.pred != nil {
		return l.pred
	}
	return l.head
}

// pos returns the last node before key and the node after it.
func (l *List[K]) pos(key K) (pred, curr *node[K]) {
	curr = l.head
	if l.doubly() {
		curr = l.cursor()
	}
	if !l.below(curr, key) {
		pred = curr.prev
		for !l.below(pred, key) {
			curr, pred = pred, pred.prev
			l.counters.Trav++
		}
	} else {
		for {
			pred, curr = curr, curr.next
			l.counters.Trav++
			if !l.below(curr, key) {
				break
			}
		}
	}
	l.pred = pred
	return pred, curr
}

func (l *List[K]) holds(n *node[K], key K) bool {
	return n != l.head && n != l.tail && n.key == key
}

// Add inserts key and reports whether it was absent.
func (l *List[K]) Add(key K) bool {
	pred, curr := l.pos(key)
	if l.holds(curr, key) {
		return false
	}
	l.counters.Adds++

	n := l.free
	if n != nil {
		l.free = n.free
		*n = node[K]{}
	} else {
		n = &node[K]{}
	}
	n.key = key
	n.next = curr
	pred.next = n
	if l.doubly() {
		n.prev = pred
		curr.prev = n
	}
	return true
}

// Remove deletes key and reports whether it was present.
func (l *List[K]) Remove(key K) bool {
	pred, n := l.pos(key)
	if !l.holds(n, key) {
		return false
	}
	l.counters.Rems++

	pred.next = n.next
	if l.doubly() {
		n.next.prev = pred
	}
	n.free = l.free
	l.free = n
	return true
}

// Contains reports whether key is present.
func (l *List[K]) Contains(key K) bool {
	curr := l.head
	switch {
	case l.doubly():
		curr = l.cursor()
		for curr != l.head && (curr == l.tail || key < curr.key) {
			curr = curr.prev
			l.counters.Trav++
		}
	case l.cfg.Cursor == lflist.CursorHint:
		if c := l.cursor(); l.below(c, key) || l.holds(c, key) {
			curr = c
		}
	}
	for l.below(curr, key) {
		curr = curr.next
		l.counters.Trav++
	}
	if l.cfg.Cursor == lflist.CursorHint && curr != l.tail {
		l.pred = curr
	}
	found := l.holds(curr, key)
	if found {
		l.counters.Cons++
	}
	return found
}

// Counters returns the counts accumulated since creation or the last
// ResetCounters.
func (l *List[K]) Counters() lflist.Counters {
	return l.counters
}

// ResetCounters zeroes the counters.
func (l *List[K]) ResetCounters() {
	l.counters = lflist.Counters{}
}

// Cleanup drops the free list.
func (l *List[K]) Cleanup() {
	l.free = nil
}

// Keys returns the keys in increasing order.
func (l *List[K]) Keys() []K {
	var keys []K
	for n := l.head.next; n != l.tail; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}
