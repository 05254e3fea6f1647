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
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/btree"
	"github.com/google/go-cmp/cmp"
)

// forEachVariant runs fn for every preset and for a few switch combinations
// not covered by a preset.
func forEachVariant(t *testing.T, fn func(t *testing.T, cfg Config)) {
	names := append(Variants(),
		"singly/hint/head/acqrel/cas",
		"doubly/head/head/seqcst/single",
		"doubly/hint/reread/acqrel/cas",
	)
	for _, name := range names {
		cfg, err := ParseVariant(name)
		if err != nil {
			t.Fatalf("ParseVariant(%q): %v", name, err)
		}
		t.Run(name, func(t *testing.T) {
			fn(t, cfg)
		})
	}
}

func newTestSet[K int8 | int | int64](t testing.TB, cfg Config) *Set[K] {
	t.Helper()
	s, err := New[K](cfg)
	if err != nil {
		t.Fatalf("New(%+v): %v", cfg, err)
	}
	return s
}

func TestEmpty(t *testing.T) {
	forEachVariant(t, func(t *testing.T, cfg Config) {
		s := newTestSet[int](t, cfg)
		h := s.NewHandle()
		defer h.Cleanup()
		if h.Contains(0) {
			t.Errorf("Contains(0) on empty set = true")
		}
		if h.Remove(0) {
			t.Errorf("Remove(0) on empty set = true")
		}
		if n := s.Len(); n != 0 {
			t.Errorf("Len() = %d, want 0", n)
		}
		if err := s.Check(); err != nil {
			t.Errorf("Check(): %v", err)
		}
	})
}

func TestBasicOperations(t *testing.T) {
	forEachVariant(t, func(t *testing.T, cfg Config) {
		s := newTestSet[int](t, cfg)
		h := s.NewHandle()
		defer h.Cleanup()

		if !h.Add(5) {
			t.Fatalf("Add(5) = false, want true")
		}
		if h.Add(5) {
			t.Errorf("second Add(5) = true, want false")
		}
		if !h.Contains(5) {
			t.Errorf("Contains(5) = false, want true")
		}
		if h.Contains(4) || h.Contains(6) {
			t.Errorf("Contains reports neighbours of 5")
		}
		if !h.Remove(5) {
			t.Errorf("Remove(5) = false, want true")
		}
		if h.Remove(5) {
			t.Errorf("second Remove(5) = true, want false")
		}
		if h.Contains(5) {
			t.Errorf("Contains(5) after Remove = true")
		}
		if !h.Add(5) {
			t.Errorf("Add(5) after Remove = false, want true")
		}
	})
}

// TestAgainstOracle applies a random sequence of operations to a set and to
// a btree and compares every result.
func TestAgainstOracle(t *testing.T) {
	forEachVariant(t, func(t *testing.T, cfg Config) {
		s := newTestSet[int64](t, cfg)
		h := s.NewHandle()
		defer h.Cleanup()
		oracle := btree.NewOrderedG[int64](8)
		rng := rand.New(rand.NewPCG(1, 2))

		ops := 20000
		if testing.Short() {
			ops = 2000
		}
		for i := 0; i < ops; i++ {
			k := rng.Int64N(256) - 128
			switch op := rng.IntN(3); op {
			case 0:
				_, had := oracle.ReplaceOrInsert(k)
				if got := h.Add(k); got != !had {
					t.Fatalf("op %d: Add(%d) = %t, want %t", i, k, got, !had)
				}
			case 1:
				_, had := oracle.Delete(k)
				if got := h.Remove(k); got != had {
					t.Fatalf("op %d: Remove(%d) = %t, want %t", i, k, got, had)
				}
			default:
				if got, want := h.Contains(k), oracle.Has(k); got != want {
					t.Fatalf("op %d: Contains(%d) = %t, want %t", i, k, got, want)
				}
			}
		}

		var want []int64
		oracle.Ascend(func(k int64) bool {
			want = append(want, k)
			return true
		})
		if diff := cmp.Diff(want, s.Keys()); diff != "" {
			t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
		}
		if err := s.Check(); err != nil {
			t.Errorf("Check(): %v", err)
		}
	})
}

// TestExtremeKeys uses every value of a small key type, including the
// minimum and maximum.
func TestExtremeKeys(t *testing.T) {
	forEachVariant(t, func(t *testing.T, cfg Config) {
		s := newTestSet[int8](t, cfg)
		h := s.NewHandle()
		defer h.Cleanup()

		var want []int8
		for k := math.MinInt8; k <= math.MaxInt8; k++ {
			want = append(want, int8(k))
		}
		rng := rand.New(rand.NewPCG(3, 4))
		order := append([]int8(nil), want...)
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, k := range order {
			if !h.Add(k) {
				t.Fatalf("Add(%d) = false", k)
			}
		}
		if diff := cmp.Diff(want, s.Keys()); diff != "" {
			t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
		}
		for _, k := range []int8{math.MinInt8, math.MaxInt8} {
			if !h.Contains(k) {
				t.Errorf("Contains(%d) = false", k)
			}
			if !h.Remove(k) {
				t.Errorf("Remove(%d) = false", k)
			}
			if h.Contains(k) {
				t.Errorf("Contains(%d) after Remove = true", k)
			}
		}
		if got, want := s.Len(), len(want)-2; got != want {
			t.Errorf("Len() = %d, want %d", got, want)
		}
	})
}

func TestRangeStops(t *testing.T) {
	s := newTestSet[int](t, Config{})
	h := s.NewHandle()
	defer h.Cleanup()
	for k := 0; k < 10; k++ {
		h.Add(k)
	}
	var got []int
	s.Range(func(k int) bool {
		got = append(got, k)
		return k < 3
	})
	if diff := cmp.Diff([]int{0, 1, 2, 3}, got); diff != "" {
		t.Errorf("Range mismatch (-want +got):\n%s", diff)
	}
}

func TestCounters(t *testing.T) {
	if !Enabled() {
		t.Skip("counters compiled out")
	}
	forEachVariant(t, func(t *testing.T, cfg Config) {
		s := newTestSet[int](t, cfg)
		h := s.NewHandle()
		defer h.Cleanup()

		for k := 0; k < 10; k++ {
			h.Add(k)
		}
		h.Add(3)
		for k := 0; k < 20; k++ {
			h.Contains(k)
		}
		h.Remove(4)
		h.Remove(4)
		h.Remove(42)

		c := h.Counters()
		want := Counters{Adds: 10, Rems: 1, Cons: 10, Trav: c.Trav}
		if diff := cmp.Diff(want, c); diff != "" {
			t.Errorf("Counters mismatch (-want +got):\n%s", diff)
		}
		if c.Trav == 0 {
			t.Errorf("Trav = 0, want traversal steps counted")
		}

		h.ResetCounters()
		if c := h.Counters(); c != (Counters{}) {
			t.Errorf("Counters after reset = %+v, want zero", c)
		}
	})
}

func TestCursorShortensTraversal(t *testing.T) {
	if !Enabled() {
		t.Skip("counters compiled out")
	}
	trav := func(name string) uint64 {
		cfg, err := ParseVariant(name)
		if err != nil {
			t.Fatalf("ParseVariant(%q): %v", name, err)
		}
		s := newTestSet[int](t, cfg)
		h := s.NewHandle()
		defer h.Cleanup()
		for k := 1; k <= 100; k++ {
			h.Add(k)
		}
		h.ResetCounters()
		if !h.Contains(99) {
			t.Fatalf("%s: Contains(99) = false", name)
		}
		return h.Counters().Trav
	}
	head, cursor := trav("doubly"), trav("doubly_cursor")
	if cursor >= head {
		t.Errorf("cursor traversal took %d steps, head traversal %d; want fewer with cursor", cursor, head)
	}
}

func TestUseAfterCleanup(t *testing.T) {
	s := newTestSet[int](t, Config{})
	h := s.NewHandle()
	h.Add(1)
	h.Cleanup()
	h.Cleanup()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Add after Cleanup did not panic")
		}
	}()
	h.Add(2)
}

// TestMarkOnce checks that each mark strategy sets the mark bit once and
// reports the unmarked successor to the winner only.
func TestMarkOnce(t *testing.T) {
	for _, m := range []MarkStrategy{MarkCASLoop, MarkFetchOr, MarkSingleShot} {
		t.Run(m.String(), func(t *testing.T) {
			s := newTestSet[int](t, Config{Mark: m})
			h := s.NewHandle()
			defer h.Cleanup()
			h.Add(1)
			h.Add(2)

			h.enter()
			defer h.exit()
			_, curr := h.locate(1)
			n := h.arena.node(curr)
			succ, won, again := h.mark(n)
			if !won || again || succ.marked() || !s.holds(succ.index(), 2) {
				t.Fatalf("first mark() = (%v, %t, %t), want unmarked successor 2 and a win", succ, won, again)
			}
			if !n.loadNext().marked() {
				t.Errorf("mark() won without setting the mark bit")
			}
			if _, won, _ := h.mark(n); won {
				t.Errorf("second mark() won on a marked node")
			}
		})
	}
}

func TestCounterReduction(t *testing.T) {
	var total Counters
	total.Add(Counters{Adds: 1, Rems: 2, Cons: 3, Trav: 4, Fail: 5, Rtry: 6})
	total.Add(Counters{Adds: 10, Rems: 20, Cons: 30, Trav: 40, Fail: 50, Rtry: 60})
	want := Counters{Adds: 11, Rems: 22, Cons: 33, Trav: 44, Fail: 55, Rtry: 66}
	if total != want {
		t.Errorf("reduced counters = %+v, want %+v", total, want)
	}
}

func TestCheckDetectsDisorder(t *testing.T) {
	s := newTestSet[int](t, Config{})
	h := s.NewHandle()
	defer h.Cleanup()
	for _, k := range []int{1, 2, 3} {
		h.Add(k)
	}
	// Corrupt the key of the middle element.
	first := s.arena.node(headIndex).loadNext().index()
	second := s.arena.node(first).loadNext().index()
	s.arena.node(second).key.Store(0)
	if err := s.Check(); !errors.Is(err, ErrOrderViolation) {
		t.Errorf("Check() = %v, want %v", err, ErrOrderViolation)
	}
}
