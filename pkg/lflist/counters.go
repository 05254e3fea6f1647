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

// Counters are per-handle diagnostic counts. They are plain fields owned by
// the handle's goroutine; reduce them with Add once the goroutines are done.
//
// Counting is compiled out when building with the lflist_nocounters tag, in
// which case every field stays zero.
type Counters struct {
	// Adds is the number of successful insertions.
	Adds uint64 `json:"adds"`

	// Rems is the number of successful removals.
	Rems uint64 `json:"rems"`

	// Cons is the number of Contains calls that found their key.
	Cons uint64 `json:"cons"`

	// Trav is the number of nodes visited by all traversals.
	Trav uint64 `json:"trav"`

	// Fail is the number of failed compare-and-swap attempts.
	Fail uint64 `json:"fail"`

	// Rtry is the number of traversals restarted because the predecessor
	// was removed under them.
	Rtry uint64 `json:"rtry"`
}

// Add accumulates o into c.
func (c *Counters) Add(o Counters) {
	c.Adds += o.Adds
	c.Rems += o.Rems
	c.Cons += o.Cons
	c.Trav += o.Trav
	c.Fail += o.Fail
	c.Rtry += o.Rtry
}

// Enabled reports whether this build maintains counters.
func Enabled() bool {
	return countersEnabled
}
