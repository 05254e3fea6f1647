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
	"testing"
)

func TestVariantsRoundTrip(t *testing.T) {
	for _, name := range Variants() {
		t.Run(name, func(t *testing.T) {
			c, err := ParseVariant(name)
			if err != nil {
				t.Fatalf("ParseVariant(%q): %v", name, err)
			}
			if err := c.Validate(); err != nil {
				t.Errorf("Validate(): %v", err)
			}
			if got := c.Name(); got != name {
				t.Errorf("Name() = %q, want %q", got, name)
			}
			// The switch list of a preset denotes the same variant.
			sw := c.Switches()
			if sw == name {
				t.Errorf("Switches() = preset name %q", sw)
			}
			back, err := ParseVariant(sw)
			if err != nil {
				t.Fatalf("ParseVariant(%q): %v", sw, err)
			}
			if back != c {
				t.Errorf("ParseVariant(%q) = %+v, want %+v", sw, back, c)
			}
		})
	}
}

func TestVariantSwitchList(t *testing.T) {
	c, err := ParseVariant("doubly/hint/head/seqcst/cas")
	if err != nil {
		t.Fatalf("ParseVariant: %v", err)
	}
	want := Config{
		Topology:    Doubly,
		Cursor:      CursorHint,
		Restart:     RestartHead,
		MemoryOrder: SequentiallyConsistent,
		Mark:        MarkCASLoop,
	}
	if c != want {
		t.Errorf("ParseVariant = %+v, want %+v", c, want)
	}
	if got, want := c.Name(), "doubly/hint/head/seqcst/cas"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}

	if got := c.Switches(); got != c.Name() {
		t.Errorf("Switches() = %q, want Name() %q for a non-preset", got, c.Name())
	}
	c, _ = ParseVariant("draconic")
	if got, want := c.Switches(), "singly/head/head/seqcst/single"; got != want {
		t.Errorf("draconic Switches() = %q, want %q", got, want)
	}

	// Capacity does not take part in naming.
	c, _ = ParseVariant("doubly_cursor")
	c.Capacity = 1024
	if got := c.Name(); got != "doubly_cursor" {
		t.Errorf("Name() with capacity = %q, want doubly_cursor", got)
	}
}

func TestInvalidConfig(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  Config
	}{
		{name: "topology", cfg: Config{Topology: 7}},
		{name: "cursor", cfg: Config{Cursor: -1}},
		{name: "restart", cfg: Config{Restart: 2}},
		{name: "order", cfg: Config{MemoryOrder: 3}},
		{name: "mark", cfg: Config{Mark: 9}},
		{name: "tiny", cfg: Config{Capacity: 2}},
		{name: "huge", cfg: Config{Capacity: MaxCapacity + 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want %v", err, ErrInvalidConfig)
			}
			if _, err := New[int](tc.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() = %v, want %v", err, ErrInvalidConfig)
			}
		})
	}
}

func TestParseVariantErrors(t *testing.T) {
	for _, name := range []string{"", "triply", "singly/head", "singly/head/head/acqrel/nope"} {
		if _, err := ParseVariant(name); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ParseVariant(%q) = %v, want %v", name, err, ErrInvalidConfig)
		}
	}
}
