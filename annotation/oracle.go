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

// Package annotation implements the annotation oracles consulted by the evidence collector: the
// YAML annotation bundle describing library declarations, and the `// nilable(...)` /
// `// nonnil(...)` comments written in the analyzed source.
//
// All oracles identify a type position the same way: the declaration (a package path, optionally
// followed by "." and a type name for methods and fields), the member (function, method, field or
// variable name), and the slash separated path of the position below the member, e.g. "result0"
// or "param1/elem".
package annotation

import "go.uber.org/nilinfer/constraint"

// Oracle answers nilability questions about declarations. It returns Nullable or NotNull for
// annotated positions and Unknown otherwise. Oracles must be in-memory and side-effect free.
type Oracle interface {
	Lookup(decl, member, path string) constraint.Value
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(decl, member, path string) constraint.Value

// Lookup calls f.
func (f OracleFunc) Lookup(decl, member, path string) constraint.Value {
	return f(decl, member, path)
}

// Source is an oracle together with the kind of cause its answers are recorded with.
type Source struct {
	Oracle Oracle
	Cause  constraint.CauseKind
}

// Sources consults oracles in order; the first known answer wins.
type Sources []Source

// Lookup returns the first known answer and the cause kind of the oracle that gave it.
func (s Sources) Lookup(decl, member, path string) (constraint.Value, constraint.CauseKind) {
	for _, src := range s {
		if src.Oracle == nil {
			continue
		}
		if v := src.Oracle.Lookup(decl, member, path); v != constraint.Unknown {
			return v, src.Cause
		}
	}
	return constraint.Unknown, constraint.CauseDefault
}

// key returns the map key of a position used by the map based oracles.
func key(decl, member, path string) string {
	return decl + "|" + member + "|" + path
}
