//  Copyright (c) 2024 Uber Technologies, Inc.
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

// Package hook encodes knowledge about well-known standard or 3rd party functions that is better
// expressed as code than as entries of an annotation bundle: error constructors that never return
// nil, calls that never return, and assertion helpers that behave like nil checks (e.g.,
// `require.NotNil(t, x)` implies `x != nil` for the rest of the block).
package hook

import (
	"go/ast"
	"go/token"
	"go/types"
	"regexp"

	"go.uber.org/nilinfer/position"
	"golang.org/x/tools/go/types/typeutil"
)

// funcKind indicates the kind of the trusted function:
// (1) _method: it is a method of a struct;
// (2) _func: it is a top-level function of a package.
type funcKind uint8

const (
	_method funcKind = iota
	_func
)

// trustedFuncSig defines the signature of a function that we "trust" to have a certain effect on
// its arguments or results.
type trustedFuncSig struct {
	kind           funcKind
	enclosingRegex *regexp.Regexp
	funcNameRegex  *regexp.Regexp
}

// match checks if a called function matches with a trusted function's signature. Namely, it
// performs a match of the function name and of the enclosing "<pkg path>" (for functions) or
// "<pkg path>.<type name>" (for methods).
func (t *trustedFuncSig) match(info *types.Info, call *ast.CallExpr) bool {
	fn, ok := typeutil.Callee(info, call).(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}

	// Return early if the kind of `t` and `fn` don't match. Both should be functions (or
	// methods) for the match to be performed.
	isMethod := fn.Type().(*types.Signature).Recv() != nil
	if (t.kind == _func && isMethod) || (t.kind == _method && !isMethod) {
		return false
	}
	decl, member := position.Qualify(fn, nil)
	return t.matchName(decl, member)
}

// matchName matches the qualified name of a declaration as computed by position.Qualify.
func (t *trustedFuncSig) matchName(decl, member string) bool {
	return t.funcNameRegex.MatchString(member) && t.enclosingRegex.MatchString(decl)
}

// newNilBinaryExpr creates a new binary expression "expr op nil".
func newNilBinaryExpr(expr ast.Expr, op token.Token) *ast.BinaryExpr {
	return &ast.BinaryExpr{
		X:     expr,
		OpPos: expr.Pos(),
		Op:    op,
		Y: &ast.Ident{
			NamePos: expr.Pos(),
			Name:    "nil",
		},
	}
}
