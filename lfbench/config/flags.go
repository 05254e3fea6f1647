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

package config

import (
	"flag"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"gvisor.dev/lflist/pkg/lflist"
	"gvisor.dev/lflist/pkg/listbench"
)

// DefaultTargets are benchmarked when --targets is not given.
var DefaultTargets = lflist.Variants()

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	// Logging flags.
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr. %COMMAND% and %TIMESTAMP% are expanded.")
	flagSet.String("log-format", LogFormatText, "log format: text (default), json, logrus, or logrus-json.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.Bool("alsologtostderr", false, "send log messages to stderr in addition to --log.")

	// Flags that select what is measured.
	targets := listbench.TargetList(append([]string(nil), DefaultTargets...))
	flagSet.Var(&targets, "targets", fmt.Sprintf("comma-separated list of set implementations: %s.", strings.Join(listbench.Targets(), ", ")))
	flagSet.Uint("capacity", 0, "slot capacity of each lock-free list, 0 for the library default.")
	flagSet.Int("threads", 0, "number of workers, 0 for GOMAXPROCS.")
	flagSet.Bool("private", false, "give every worker its own set instead of sharing one.")
	flagSet.Bool("pin", false, "bind every worker to its own CPU.")

	// Deterministic benchmark flags.
	flagSet.Int("elements", 10000, "number of keys per worker in the deterministic benchmark.")
	flagSet.Int("add-stride", 0, "key stride of the insertion phase, 0 for the thread count.")
	flagSet.Int("add-offset", 0, "per-thread key offset of the insertion phase.")
	flagSet.Int("rem-stride", 0, "key stride of the removal phases, 0 for the thread count.")
	flagSet.Int("rem-offset", 0, "per-thread key offset of the removal phases.")

	// Steady benchmark flags.
	flagSet.Int("ops", 10000, "number of operations per worker in the steady benchmark.")
	flagSet.Int("prefill", 10000, "number of random insertions per worker before the steady benchmark.")
	flagSet.Int("universe", 0, "keys are drawn from [0, universe), 0 for ten times --prefill.")
	flagSet.Int("add-percent", 10, "percentage of insertions in the steady benchmark.")
	flagSet.Int("rem-percent", 10, "percentage of removals in the steady benchmark.")
	flagSet.Uint64("seed", 0, "worker t seeds its generator with seed+t.")

	// Reporting flags.
	format := listbench.FormatText
	flagSet.Var(&format, "format", "report format: text (default), latex, csv, json, or prometheus.")
	flagSet.Bool("verbose", false, "report per-thread results.")
}

// NewFromFlags creates a new Config with values coming from command line flags.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}

	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		obj.Field(i).Set(reflect.ValueOf(get(fl.Value)))
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ToFlags returns a slice of flags that correspond to the given Config.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		val := getVal(obj.Field(i))

		flag := flagSet.Lookup(name)
		if flag == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		if val == flag.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", flag.Name, val))
	}
	return rv
}

// Override writes a new value to a flag.
func (c *Config) Override(flagSet *flag.FlagSet, name string, value string) error {
	if err := c.set(flagSet, name, value); err != nil {
		return err
	}
	// Validates the config again to ensure it's left in a consistent state.
	return c.validate()
}

// set assigns value to the field tagged name without validating c.
func (c *Config) set(flagSet *flag.FlagSet, name string, value string) error {
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		fieldName, ok := f.Tag.Lookup("flag")
		if !ok || fieldName != name {
			// Not a flag field, or flag name doesn't match.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			// Flag must exist if there is a field match above.
			panic(fmt.Sprintf("Flag %q not found", name))
		}

		// Use flag to convert the string value to the underlying flag type, using
		// the same rules as the command-line for consistency.
		if err := fl.Value.Set(value); err != nil {
			return fmt.Errorf("error setting flag %s=%q: %w", name, value, err)
		}
		obj.Field(i).Set(reflect.ValueOf(get(fl.Value)))
		return nil
	}
	return fmt.Errorf("flag %q not found. Cannot set it to %q", name, value)
}

// get returns the value held by a flag registered with RegisterFlags.
func get(v flag.Value) any {
	return v.(flag.Getter).Get()
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
