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

package position

import (
	"fmt"
	"go/ast"
	"go/types"

	"go.uber.org/nilinfer/util"
)

// Qualify returns the declaration and member names of obj used by oracles and exported facts.
// Methods are qualified by their receiver type, fields by the given owner struct type, and
// everything else by its package path alone.
func Qualify(obj types.Object, owner *types.Named) (decl, member string) {
	if obj.Pkg() != nil {
		decl = obj.Pkg().Path()
	}
	if fn, ok := obj.(*types.Func); ok {
		if recv := fn.Type().(*types.Signature).Recv(); recv != nil {
			owner = util.NamedOf(recv.Type())
		}
	}
	if owner != nil {
		decl = owner.Obj().Pkg().Path() + "." + owner.Obj().Name()
	}
	return decl, obj.Name()
}

// FuncLabel returns the label of a function used as owner of its positions: the function name,
// or "T.M" for a method M of T or *T.
func FuncLabel(fn *types.Func) string {
	if recv := fn.Type().(*types.Signature).Recv(); recv != nil {
		if named := util.NamedOf(recv.Type()); named != nil {
			return named.Obj().Name() + "." + fn.Name()
		}
	}
	return fn.Name()
}

// FieldOwner returns the struct type declaring the field selected by sel, following the path of
// embedded fields.
// nilable(result 0)
func FieldOwner(sel *types.Selection) *types.Named {
	if sel.Kind() != types.FieldVal {
		return nil
	}
	typ := sel.Recv()
	index := sel.Index()
	for _, i := range index[:len(index)-1] {
		st, ok := util.UnwrapPtr(typ).Underlying().(*types.Struct)
		if !ok {
			return nil
		}
		typ = st.Field(i).Type()
	}
	return util.NamedOf(typ)
}

func varName(v *types.Var, i int) string {
	if v.Name() == "" || v.Name() == "_" {
		return fmt.Sprintf("#%d", i)
	}
	return v.Name()
}

// fieldTypes returns the type expression of every variable declared by the field list, one per
// name (or one per unnamed field).
func fieldTypes(list *ast.FieldList) []ast.Expr {
	if list == nil {
		return nil
	}
	var exprs []ast.Expr
	for _, field := range list.List {
		n := len(field.Names)
		if n == 0 {
			n = 1
		}
		for range n {
			exprs = append(exprs, field.Type)
		}
	}
	return exprs
}

// nilable(result 0)
func at(exprs []ast.Expr, i int) ast.Node {
	if i < len(exprs) {
		return exprs[i]
	}
	return nil
}

// childNode returns the sub-expression of the type syntax n that spells the given child slot.
// nilable(result 0)
func childNode(n ast.Node, kind Kind, index int) ast.Node {
	switch n := n.(type) {
	case *ast.ParenExpr:
		return childNode(n.X, kind, index)
	case *ast.CompositeLit:
		return childNode(n.Type, kind, index)
	case *ast.CallExpr:
		return childNode(n.Fun, kind, index)
	case *ast.TypeAssertExpr:
		return childNode(n.Type, kind, index)
	case *ast.StarExpr:
		if kind == KindElem {
			return n.X
		}
	case *ast.ArrayType:
		if kind == KindElem {
			return n.Elt
		}
	case *ast.Ellipsis:
		if kind == KindElem {
			return n.Elt
		}
	case *ast.ChanType:
		if kind == KindElem {
			return n.Value
		}
	case *ast.MapType:
		if kind == KindTypeArg && index == 0 {
			return n.Key
		}
		if kind == KindTypeArg && index == 1 {
			return n.Value
		}
	case *ast.FuncType:
		if kind == KindFuncParam {
			return at(fieldTypes(n.Params), index)
		}
		if kind == KindFuncReturn {
			return at(fieldTypes(n.Results), index)
		}
	case *ast.IndexExpr:
		if kind == KindTypeArg && index == 0 {
			return n.Index
		}
	case *ast.IndexListExpr:
		if kind == KindTypeArg && index < len(n.Indices) {
			return n.Indices[index]
		}
	}
	return nil
}

// embeddedIdent returns the identifier naming an embedded field.
// nilable(result 0)
func embeddedIdent(expr ast.Expr) *ast.Ident {
	switch e := expr.(type) {
	case *ast.Ident:
		return e
	case *ast.StarExpr:
		return embeddedIdent(e.X)
	case *ast.SelectorExpr:
		return e.Sel
	case *ast.IndexExpr:
		return embeddedIdent(e.X)
	case *ast.IndexListExpr:
		return embeddedIdent(e.X)
	}
	return nil
}
