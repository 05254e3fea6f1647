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
	"math/rand/v2"
	"testing"
)

func benchmarkOpHelper(b *testing.B, fill int, op func(*Handle[int64], int64)) {
	for _, name := range Variants() {
		b.Run(name, func(b *testing.B) {
			cfg, _ := ParseVariant(name)
			s := newTestSet[int64](b, cfg)
			h := s.NewHandle()
			defer h.Cleanup()

			rng := rand.New(rand.NewPCG(0, 0))
			entries := make([]int64, fill)
			for i := range entries {
				entries[i] = rng.Int64N(int64(fill) * 10)
				h.Add(entries[i])
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				op(h, entries[i%fill])
			}
		})
	}
}

func BenchmarkOpAddRemove1KEntries(b *testing.B) {
	benchmarkOpHelper(b, 1000, func(h *Handle[int64], k int64) {
		// Use a different key; may or may not exist.
		h.Add(k + 1)
		h.Remove(k + 1)
	})
}

func BenchmarkOpContains1KEntries(b *testing.B) {
	benchmarkOpHelper(b, 1000, func(h *Handle[int64], k int64) {
		h.Contains(k)
	})
}

func BenchmarkOpContains10Entries(b *testing.B) {
	benchmarkOpHelper(b, 10, func(h *Handle[int64], k int64) {
		h.Contains(k)
	})
}

// BenchmarkParallelMix runs a 10% add, 10% remove, 80% contains mix with one
// handle per goroutine.
func BenchmarkParallelMix(b *testing.B) {
	const universe = 2000
	for _, name := range Variants() {
		b.Run(name, func(b *testing.B) {
			cfg, _ := ParseVariant(name)
			s := newTestSet[int64](b, cfg)
			h := s.NewHandle()
			for k := int64(0); k < universe; k += 2 {
				h.Add(k)
			}
			h.Cleanup()

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				h := s.NewHandle()
				defer h.Cleanup()
				rng := rand.New(rand.NewPCG(rand.Uint64(), 0))
				for pb.Next() {
					k := rng.Int64N(universe)
					switch r := rng.IntN(100); {
					case r < 10:
						h.Add(k)
					case r < 20:
						h.Remove(k)
					default:
						h.Contains(k)
					}
				}
			})
		})
	}
}
