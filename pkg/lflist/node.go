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
	"gvisor.dev/lflist/pkg/atomicbitops"
)

// nodeFields is the shared state of one list element. All fields are atomic
// words so that any goroutine may read a node at any time; the arena never
// returns memory to the runtime.
type nodeFields struct {
	// next is a ref to the successor. Its mark bit means this node is
	// logically removed; once set it stays set for the incarnation.
	next atomicbitops.Uint64

	// prev is a hint for the predecessor. Only maintained by Doubly sets.
	prev atomicbitops.Uint64

	// key is immutable for an incarnation.
	key atomicbitops.Int64

	// gen is incremented each time the slot is handed out.
	gen atomicbitops.Uint32

	// free links retired slots in a handle free list or the arena pool.
	free atomicbitops.Uint32
}

// node is a nodeFields padded to a whole number of cache lines so that
// neighbouring slots of a chunk never share a line.
type node struct {
	nodeFields
	_ [nodePad]byte
}

func (n *node) loadNext() ref {
	return ref(n.next.Load())
}
