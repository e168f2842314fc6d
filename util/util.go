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

// Package util implements small helpers over go/ast and go/types shared by the analyzers.
package util

import (
	"go/ast"
	"go/constant"
	"go/types"

	"golang.org/x/tools/go/types/typeutil"
)

// UnwrapPtr unwraps a pointer type and returns the element type. For all other types it returns
// the type unmodified.
func UnwrapPtr(t types.Type) types.Type {
	if ptr, ok := types.Unalias(t).(*types.Pointer); ok {
		return ptr.Elem()
	}
	return t
}

// NamedOf returns the origin of the named type of t, looking through one pointer and aliases.
// nilable(result 0)
func NamedOf(t types.Type) *types.Named {
	if t == nil {
		return nil
	}
	if n, ok := types.Unalias(UnwrapPtr(t)).(*types.Named); ok {
		return n.Origin()
	}
	return nil
}

// TypeBarsNilness returns false iff the type `t` is inhabited by nil.
func TypeBarsNilness(t types.Type) bool {
	switch t := types.Unalias(t).(type) {
	case *types.Slice, *types.Pointer, *types.Signature, *types.Map, *types.Chan, *types.Interface,
		*types.TypeParam:
		return false
	case *types.Named:
		return TypeBarsNilness(t.Underlying())
	case *types.Basic:
		// all basic types except UntypedNil and unsafe.Pointer are not inhabited by nil
		return t.Kind() != types.UntypedNil && t.Kind() != types.UnsafePointer
	default:
		return true
	}
}

// IsPointer returns true iff the underlying type of t is a pointer.
func IsPointer(t types.Type) bool {
	if t == nil {
		return false
	}
	_, ok := t.Underlying().(*types.Pointer)
	return ok
}

// IsNil returns true iff expr is the predeclared nil, possibly parenthesized.
func IsNil(info *types.Info, expr ast.Expr) bool {
	ident, ok := ast.Unparen(expr).(*ast.Ident)
	if !ok {
		return false
	}
	_, ok = info.Uses[ident].(*types.Nil)
	return ok
}

// IsEmptyExpr checks if an expression is the empty identifier
func IsEmptyExpr(expr ast.Expr) bool {
	if id, ok := expr.(*ast.Ident); ok {
		if id.Name == "_" {
			return true
		}
	}
	return false
}

// IsElvisCall returns true iff call is a call of cmp.Or, the Go counterpart of an elvis
// operator: the result is the first non-zero argument.
func IsElvisCall(info *types.Info, call *ast.CallExpr) bool {
	fn, ok := typeutil.Callee(info, call).(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Pkg().Path() == "cmp" && fn.Name() == "Or"
}

// IsBuiltin returns the name of the builtin called by call, or "" if call is not a call of a
// builtin function.
func IsBuiltin(info *types.Info, call *ast.CallExpr) string {
	if b, ok := typeutil.Callee(info, call).(*types.Builtin); ok {
		return b.Name()
	}
	return ""
}

// IsZero returns true iff expr is a constant expression evaluating to the integer zero, e.g. `0`,
// a zero constant or `1 - 1`. The string "0" is not zero.
func IsZero(info *types.Info, expr ast.Expr) bool {
	tv, ok := info.Types[expr]
	if !ok {
		return false
	}
	v, ok := constant.Val(tv.Value).(int64)
	return ok && v == 0
}
