// Copyright 2018 The gVisor Authors.
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

package atomicbitops

import (
	"runtime"
	"testing"

	"gvisor.dev/lflist/pkg/sync"
)

const iterations = 100

func detectRaces64(val, target uint64, fn func(*Uint64, uint64)) bool {
	runtime.GOMAXPROCS(100)
	for n := 0; n < iterations; n++ {
		var x Uint64
		x.Store(val)
		var wg sync.WaitGroup
		for i := uint64(0); i < 64; i++ {
			wg.Add(1)
			go func(a *Uint64, i uint64) {
				defer wg.Done()
				fn(a, uint64(1<<i))
			}(&x, i)
		}
		wg.Wait()
		if x.Load() != target {
			return true
		}
	}
	return false
}

func TestOrUint64(t *testing.T) {
	if detectRaces64(0x0, 0xffffffffffffffff, func(a *Uint64, b uint64) { a.Or(b) }) {
		t.Error("Data race detected!")
	}
}

func TestOrLoopUint64(t *testing.T) {
	if detectRaces64(0x0, 0xffffffffffffffff, func(a *Uint64, b uint64) { a.OrLoop(b) }) {
		t.Error("Data race detected!")
	}
}

func TestOrReturnsPrevious(t *testing.T) {
	var x Uint64
	x.Store(0b100)
	if prev := x.Or(1); prev != 0b100 {
		t.Errorf("first Or returned %#b, want %#b", prev, 0b100)
	}
	if prev := x.Or(1); prev != 0b101 {
		t.Errorf("second Or returned %#b, want %#b", prev, 0b101)
	}
	if prev, failed := x.OrLoop(0b10); prev != 0b101 || failed != 0 {
		t.Errorf("OrLoop returned (%#b, %d), want (%#b, 0)", prev, failed, 0b101)
	}
	if got := x.Load(); got != 0b111 {
		t.Errorf("Load() after OrLoop = %#b, want %#b", got, 0b111)
	}
}

// TestOrLoopStopsOnSetBit checks that OrLoop leaves the value alone when a
// bit it would set is already set.
func TestOrLoopStopsOnSetBit(t *testing.T) {
	var x Uint64
	x.Store(0b01)
	if prev, failed := x.OrLoop(0b11); prev != 0b01 || failed != 0 {
		t.Errorf("OrLoop(0b11) returned (%#b, %d), want (%#b, 0)", prev, failed, 0b01)
	}
	if got := x.Load(); got != 0b01 {
		t.Errorf("Load() after OrLoop on a set bit = %#b, want %#b", got, 0b01)
	}
}

// TestOrLoopSingleWinner races goroutines setting the same bit; exactly one
// of them must observe it clear.
func TestOrLoopSingleWinner(t *testing.T) {
	runtime.GOMAXPROCS(100)
	for n := 0; n < iterations; n++ {
		var (
			x       Uint64
			winners Int64
			wg      sync.WaitGroup
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if prev, _ := x.OrLoop(1); prev&1 == 0 {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()
		if w := winners.Load(); w != 1 {
			t.Fatalf("%d goroutines set the bit, want 1", w)
		}
	}
}

func TestBool(t *testing.T) {
	var b Bool
	if b.Load() {
		t.Fatalf("zero Bool is true")
	}
	if !b.CompareAndSwap(false, true) {
		t.Fatalf("CompareAndSwap(false, true) failed on a false Bool")
	}
	if b.CompareAndSwap(false, true) {
		t.Fatalf("CompareAndSwap(false, true) succeeded on a true Bool")
	}
	b.Store(false)
	if b.Load() {
		t.Fatalf("Store(false) did not take effect")
	}
}
