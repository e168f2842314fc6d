//  Copyright (c) 2023 Uber Technologies, Inc.
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

// Package constraint implements the constraint graph of a nilability inference run: one cell per
// type position holding a lattice value and the causes that put it there, plus the equality and
// subtype edges between positions. The graph is built additively, then sealed and handed to the
// solver.
package constraint

import (
	"fmt"
	"strings"
)

// Value is an element of the nilability lattice:
//
//	        Conflict
//	       /        \
//	Nullable        NotNull
//	       \        /
//	        Unknown
type Value uint8

const (
	// Unknown is the bottom of the lattice: no evidence yet.
	Unknown Value = iota
	// Nullable marks a position that may hold nil.
	Nullable
	// NotNull marks a position that never holds nil.
	NotNull
	// Conflict is the top of the lattice, reached by a position with both Nullable and NotNull
	// evidence. It is absorbing.
	Conflict
)

// Join returns the least upper bound of v and w.
func (v Value) Join(w Value) Value {
	switch {
	case v == w, w == Unknown:
		return v
	case v == Unknown:
		return w
	default:
		return Conflict
	}
}

// AdmitsNil returns true iff a position with this value is finalized as nilable.
func (v Value) AdmitsNil() bool { return v == Nullable || v == Conflict }

func (v Value) String() string {
	switch v {
	case Unknown:
		return "unknown"
	case Nullable:
		return "nilable"
	case NotNull:
		return "nonnil"
	case Conflict:
		return "conflict"
	default:
		return fmt.Sprintf("value(%d)", v)
	}
}

// ParseValue parses the spelling of a pin used in annotation bundles and comments. Both the Go
// spellings ("nilable", "nonnil") and the language neutral ones ("nullable", "notnull") are
// accepted; anything else is Unknown.
func ParseValue(s string) Value {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nilable", "nullable":
		return Nullable
	case "nonnil", "notnull", "non-null", "nonnull":
		return NotNull
	default:
		return Unknown
	}
}
