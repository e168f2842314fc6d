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

// Package position implements the type-position enumerator. A position is one nil-bearing slot
// of a declared type: the type of a variable, parameter, result, struct field, or an explicit
// type in an expression, plus one child position per element, key, type argument, function
// parameter and function result slot of that type. Positions live in an arena (Table) and are
// referred to by their index, the ID; AST nodes and type-checker objects are only used as keys.
package position

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
)

// ID identifies a position within a Table. IDs are dense and start at 0.
type ID int

// NoID is the ID of a missing position.
const NoID ID = -1

// Kind is the kind of a position. Root kinds come first, followed by the child kinds.
type Kind uint8

const (
	// KindLocal is the type of a local variable.
	KindLocal Kind = iota
	// KindVar is the type of a package-level variable.
	KindVar
	// KindParameter is the type of a function parameter.
	KindParameter
	// KindReceiver is the type of a method receiver.
	KindReceiver
	// KindReturn is the type of a function result.
	KindReturn
	// KindField is the type of a struct field.
	KindField
	// KindExpr is an explicit type in an expression (composite literal, conversion, type
	// assertion) or a call result that needs its own slot.
	KindExpr
	// KindTypeArg is the i-th type argument of a generic type, or the key (0) and value (1) of a
	// map type.
	KindTypeArg
	// KindElem is the element of a pointer, slice, array or channel type.
	KindElem
	// KindFuncParam is the i-th parameter of a function type.
	KindFuncParam
	// KindFuncReturn is the i-th result of a function type.
	KindFuncReturn
)

var _kindNames = [...]string{
	KindLocal:      "local",
	KindVar:        "var",
	KindParameter:  "param",
	KindReceiver:   "recv",
	KindReturn:     "result",
	KindField:      "field",
	KindExpr:       "expr",
	KindTypeArg:    "arg",
	KindElem:       "elem",
	KindFuncParam:  "param",
	KindFuncReturn: "result",
}

func (k Kind) String() string {
	if int(k) < len(_kindNames) {
		return _kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// IsRoot returns true iff positions of this kind have no parent.
func (k Kind) IsRoot() bool { return k < KindTypeArg }

// Hint is the source hint of a position.
type Hint uint8

const (
	// HintNone marks an ordinary inferable position.
	HintNone Hint = iota
	// HintPrimitive marks a position whose type can never hold nil (basic types, arrays,
	// structs). It is pinned nonnil.
	HintPrimitive
	// HintOpaque marks a position whose type constructor is not understood by the enumerator
	// (unsafe.Pointer, invalid types). It is pinned nonnil, never inferred, and reported.
	HintOpaque
)

func (h Hint) String() string {
	switch h {
	case HintNone:
		return "none"
	case HintPrimitive:
		return "primitive"
	case HintOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("hint(%d)", h)
	}
}

// Position is a single nil-bearing slot of a declared type.
type Position struct {
	ID     ID
	Kind   Kind
	Index  int
	Parent ID
	Root   ID
	// Children lists the child positions in enumeration order.
	Children []ID

	// Type is the type held by this slot.
	Type types.Type
	Hint Hint
	// External is set for positions of objects declared outside the analyzed package.
	External bool

	// Node is the AST node the position is derived from: the type syntax when there is one, or
	// the expression for KindExpr roots. It may be nil (inferred local types, external objects).
	Node ast.Node
	// Pos is the source position used for reporting.
	Pos token.Pos
	// Object is the declared object of a root position, nil for expressions and children.
	Object types.Object

	// Owner is the label of the enclosing declaration ("f", "T.M", "f$1", "T" for fields, or ""
	// at package scope).
	Owner string
	// Name is the name of a root: the object name, "#i" for unnamed parameters and results, or
	// "@line:col" for expressions.
	Name string
	// Decl and Member identify the declaration for oracle lookups: Decl is the package path
	// optionally followed by "." and the receiver or struct type name, Member the function,
	// method, field or variable name.
	Decl, Member string
}

// Inferable returns true iff the position takes part in inference.
func (p *Position) Inferable() bool { return p.Hint == HintNone }

// IsRoot returns true iff the position has no parent.
func (p *Position) IsRoot() bool { return p.Parent == NoID }

// segment returns the path segment of the position below its parent.
func (p *Position) segment() string {
	switch p.Kind {
	case KindParameter, KindReturn, KindTypeArg, KindFuncParam, KindFuncReturn:
		return fmt.Sprintf("%s%d", p.Kind, p.Index)
	default:
		return p.Kind.String()
	}
}
