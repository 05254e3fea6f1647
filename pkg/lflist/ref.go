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

// ref is the content of a next link: the successor's arena index shifted
// left by one, with the low bit marking the owning node as removed.
type ref uint64

const markBit ref = 1

// Reserved arena indices.
const (
	nilIndex  uint32 = 0
	headIndex uint32 = 1
	tailIndex uint32 = 2
)

func mkref(idx uint32) ref {
	return ref(idx) << 1
}

func (r ref) index() uint32 {
	return uint32(r >> 1)
}

func (r ref) marked() bool {
	return r&markBit != 0
}

func (r ref) unmarked() ref {
	return r &^ markBit
}

// hint names a specific incarnation of a node: generation in the high half,
// index in the low half. A hint is only followed after validate confirms the
// node still carries that generation.
type hint uint64

func mkhint(gen, idx uint32) hint {
	return hint(gen)<<32 | hint(idx)
}

func (h hint) index() uint32 {
	return uint32(h)
}

func (h hint) gen() uint32 {
	return uint32(h >> 32)
}
