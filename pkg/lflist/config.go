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
	"sort"
	"strings"
)

// Topology selects whether nodes carry a back reference.
type Topology int

const (
	// Singly links nodes through next only.
	Singly Topology = iota

	// Doubly additionally maintains a prev hint on every node, which lets
	// traversals rewind instead of restarting from head.
	Doubly
)

// String implements fmt.Stringer.
func (t Topology) String() string {
	switch t {
	case Singly:
		return "singly"
	case Doubly:
		return "doubly"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

// Set implements flag.Value.
func (t *Topology) Set(v string) error {
	switch v {
	case "singly":
		*t = Singly
	case "doubly":
		*t = Doubly
	default:
		return fmt.Errorf("invalid topology %q", v)
	}
	return nil
}

// CursorMode selects where operations begin their traversal.
type CursorMode int

const (
	// CursorHead starts every operation from the head sentinel.
	CursorHead CursorMode = iota

	// CursorHint starts from the handle's cached position when it is still
	// valid for the key being looked up.
	CursorHint
)

// String implements fmt.Stringer.
func (c CursorMode) String() string {
	switch c {
	case CursorHead:
		return "head"
	case CursorHint:
		return "hint"
	default:
		return fmt.Sprintf("CursorMode(%d)", int(c))
	}
}

// Set implements flag.Value.
func (c *CursorMode) Set(v string) error {
	switch v {
	case "head":
		*c = CursorHead
	case "hint":
		*c = CursorHint
	default:
		return fmt.Errorf("invalid cursor mode %q", v)
	}
	return nil
}

// RestartPolicy selects what a traversal does after losing an unlink race.
type RestartPolicy int

const (
	// RestartHead restarts the traversal from head after any failed unlink.
	RestartHead RestartPolicy = iota

	// RestartReread re-reads the predecessor's link and continues from it;
	// the traversal only restarts when the predecessor itself was removed.
	RestartReread
)

// String implements fmt.Stringer.
func (r RestartPolicy) String() string {
	switch r {
	case RestartHead:
		return "head"
	case RestartReread:
		return "reread"
	default:
		return fmt.Sprintf("RestartPolicy(%d)", int(r))
	}
}

// Set implements flag.Value.
func (r *RestartPolicy) Set(v string) error {
	switch v {
	case "head":
		*r = RestartHead
	case "reread":
		*r = RestartReread
	default:
		return fmt.Errorf("invalid restart policy %q", v)
	}
	return nil
}

// MemoryOrder records the ordering strength requested for link accesses.
//
// Go's sync/atomic operations are sequentially consistent, so both values
// produce identical code; the setting is carried so that benchmark output
// stays comparable across variants.
type MemoryOrder int

const (
	// AcquireRelease requests acquire loads and release stores.
	AcquireRelease MemoryOrder = iota

	// SequentiallyConsistent requests a single total order.
	SequentiallyConsistent
)

// String implements fmt.Stringer.
func (m MemoryOrder) String() string {
	switch m {
	case AcquireRelease:
		return "acqrel"
	case SequentiallyConsistent:
		return "seqcst"
	default:
		return fmt.Sprintf("MemoryOrder(%d)", int(m))
	}
}

// Set implements flag.Value.
func (m *MemoryOrder) Set(v string) error {
	switch v {
	case "acqrel":
		*m = AcquireRelease
	case "seqcst":
		*m = SequentiallyConsistent
	default:
		return fmt.Errorf("invalid memory order %q", v)
	}
	return nil
}

// MarkStrategy selects how Remove sets the mark bit.
type MarkStrategy int

const (
	// MarkCASLoop retries a compare-and-swap until the bit is set, giving up
	// if another remover set it first.
	MarkCASLoop MarkStrategy = iota

	// MarkFetchOr sets the bit with a single atomic fetch-or; the returned
	// previous value tells which remover won.
	MarkFetchOr

	// MarkSingleShot attempts one compare-and-swap and re-locates the key
	// when it fails.
	MarkSingleShot
)

// String implements fmt.Stringer.
func (m MarkStrategy) String() string {
	switch m {
	case MarkCASLoop:
		return "cas"
	case MarkFetchOr:
		return "fetchor"
	case MarkSingleShot:
		return "single"
	default:
		return fmt.Sprintf("MarkStrategy(%d)", int(m))
	}
}

// Set implements flag.Value.
func (m *MarkStrategy) Set(v string) error {
	switch v {
	case "cas":
		*m = MarkCASLoop
	case "fetchor":
		*m = MarkFetchOr
	case "single":
		*m = MarkSingleShot
	default:
		return fmt.Errorf("invalid mark strategy %q", v)
	}
	return nil
}

const (
	// DefaultCapacity is the arena size used when Config.Capacity is zero.
	DefaultCapacity = 1 << 24

	// MaxCapacity is the largest arena a Set may use. Node indices must fit
	// in the low half of a hint word.
	MaxCapacity = 1 << 31

	// minCapacity covers the two sentinels and one element.
	minCapacity = 3
)

// Config holds the algorithm switches of a Set. The zero value is the
// textbook variant with a default-sized arena.
type Config struct {
	Topology    Topology
	Cursor      CursorMode
	Restart     RestartPolicy
	MemoryOrder MemoryOrder
	Mark        MarkStrategy

	// Capacity is the maximum number of nodes, sentinels included. Zero
	// selects DefaultCapacity.
	Capacity uint32
}

// Validate checks that every switch holds a known value.
func (c *Config) Validate() error {
	if c.Topology != Singly && c.Topology != Doubly {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, c.Topology)
	}
	if c.Cursor != CursorHead && c.Cursor != CursorHint {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, c.Cursor)
	}
	if c.Restart != RestartHead && c.Restart != RestartReread {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, c.Restart)
	}
	if c.MemoryOrder != AcquireRelease && c.MemoryOrder != SequentiallyConsistent {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, c.MemoryOrder)
	}
	switch c.Mark {
	case MarkCASLoop, MarkFetchOr, MarkSingleShot:
	default:
		return fmt.Errorf("%w: %v", ErrInvalidConfig, c.Mark)
	}
	if c.Capacity != 0 && (c.Capacity < minCapacity || c.Capacity > MaxCapacity) {
		return fmt.Errorf("%w: capacity %d not in [%d, %d]", ErrInvalidConfig, c.Capacity, minCapacity, MaxCapacity)
	}
	return nil
}

func (c *Config) capacity() uint32 {
	if c.Capacity == 0 {
		return DefaultCapacity
	}
	return c.Capacity
}

// Name returns the preset name matching c, ignoring Capacity, or
// c.Switches() when c matches no preset.
func (c Config) Name() string {
	c.Capacity = 0
	for name, p := range presets {
		if p == c {
			return name
		}
	}
	return c.Switches()
}

// Switches returns the switch values of c as
// topology/cursor/restart/order/mark, which ParseVariant accepts.
func (c Config) Switches() string {
	return fmt.Sprintf("%v/%v/%v/%v/%v", c.Topology, c.Cursor, c.Restart, c.MemoryOrder, c.Mark)
}

var presets = map[string]Config{
	"draconic": {
		Topology:    Singly,
		Cursor:      CursorHead,
		Restart:     RestartHead,
		MemoryOrder: SequentiallyConsistent,
		Mark:        MarkSingleShot,
	},
	"singly": {
		Topology: Singly,
		Cursor:   CursorHead,
		Restart:  RestartReread,
		Mark:     MarkFetchOr,
	},
	"singly_cursor": {
		Topology: Singly,
		Cursor:   CursorHint,
		Restart:  RestartReread,
		Mark:     MarkFetchOr,
	},
	"doubly": {
		Topology: Doubly,
		Cursor:   CursorHead,
		Restart:  RestartReread,
		Mark:     MarkFetchOr,
	},
	"doubly_cursor": {
		Topology: Doubly,
		Cursor:   CursorHint,
		Restart:  RestartReread,
		Mark:     MarkFetchOr,
	},
}

// Variants returns the preset names in sorted order.
func Variants() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseVariant returns the preset called name. Switch lists of the form
// produced by Config.Name are accepted as well.
func ParseVariant(name string) (Config, error) {
	if c, ok := presets[name]; ok {
		return c, nil
	}
	parts := strings.Split(name, "/")
	if len(parts) != 5 {
		return Config{}, fmt.Errorf("%w: unknown variant %q, want one of %s", ErrInvalidConfig, name, strings.Join(Variants(), ", "))
	}
	var c Config
	setters := []interface{ Set(string) error }{&c.Topology, &c.Cursor, &c.Restart, &c.MemoryOrder, &c.Mark}
	for i, s := range setters {
		if err := s.Set(parts[i]); err != nil {
			return Config{}, fmt.Errorf("%w: variant %q: %v", ErrInvalidConfig, name, err)
		}
	}
	return c, nil
}
