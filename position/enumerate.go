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
	"go/token"
	"go/types"

	"go.uber.org/nilinfer/util"
)

// enumerator walks the files of one package and fills a Table.
type enumerator struct {
	fset  *token.FileSet
	pkg   *types.Package
	info  *types.Info
	table *Table
	// lits counts the function literals per enclosing declaration label.
	lits map[string]int
	// funcs records the external functions whose signatures are already enumerated.
	funcs map[*types.Func]bool
}

// Enumerate assigns positions to every type slot of the given files. Files are visited in order
// and each file in a pre-order traversal, so identical inputs produce identical IDs. Objects of
// other packages get positions on their first reference, marked External.
//
// Enumeration does not fail: type constructors it does not understand produce opaque positions.
func Enumerate(fset *token.FileSet, pkg *types.Package, info *types.Info, files []*ast.File) *Table {
	e := &enumerator{
		fset:  fset,
		pkg:   pkg,
		info:  info,
		table: NewTable(),
		lits:  make(map[string]int),
		funcs: make(map[*types.Func]bool),
	}
	for _, file := range files {
		for _, decl := range file.Decls {
			switch decl := decl.(type) {
			case *ast.FuncDecl:
				e.funcDecl(decl)
			case *ast.GenDecl:
				e.genDecl(decl)
			}
		}
	}
	return e.table
}

func (e *enumerator) funcDecl(decl *ast.FuncDecl) {
	fn, ok := e.info.Defs[decl.Name].(*types.Func)
	if !ok {
		return
	}
	owner := FuncLabel(fn)
	d, m := Qualify(fn, nil)
	e.signature(fn.Type().(*types.Signature), decl.Recv, decl.Type, &Position{Owner: owner, Decl: d, Member: m})
	if decl.Body != nil {
		e.walk(decl.Body, owner)
	}
}

func (e *enumerator) genDecl(decl *ast.GenDecl) {
	for _, spec := range decl.Specs {
		switch spec := spec.(type) {
		case *ast.ValueSpec:
			if decl.Tok != token.VAR {
				continue
			}
			for _, name := range spec.Names {
				if v, ok := e.info.Defs[name].(*types.Var); ok {
					d, m := Qualify(v, nil)
					e.root(v, &Position{Kind: KindVar, Node: spec.Type, Name: v.Name(), Decl: d, Member: m})
				}
			}
			owner := spec.Names[0].Name
			for _, value := range spec.Values {
				e.walk(value, owner)
			}
		case *ast.TypeSpec:
			e.typeSpec(spec)
		}
	}
}

func (e *enumerator) typeSpec(spec *ast.TypeSpec) {
	tn, ok := e.info.Defs[spec.Name].(*types.TypeName)
	if !ok {
		return
	}
	named, _ := tn.Type().(*types.Named)
	switch typ := spec.Type.(type) {
	case *ast.StructType:
		for _, field := range typ.Fields.List {
			names := field.Names
			if len(names) == 0 {
				// Embedded fields are defined by the identifier of their type name.
				if ident := embeddedIdent(field.Type); ident != nil {
					names = []*ast.Ident{ident}
				}
			}
			for _, name := range names {
				v, ok := e.info.Defs[name].(*types.Var)
				if !ok {
					continue
				}
				d, m := Qualify(v, named)
				e.root(v, &Position{Kind: KindField, Node: field.Type, Owner: tn.Name(), Name: v.Name(), Decl: d, Member: m})
			}
		}
	case *ast.InterfaceType:
		for _, method := range typ.Methods.List {
			ftype, ok := method.Type.(*ast.FuncType)
			if !ok || len(method.Names) == 0 {
				continue
			}
			fn, ok := e.info.Defs[method.Names[0]].(*types.Func)
			if !ok {
				continue
			}
			d, m := Qualify(fn, nil)
			e.signature(fn.Type().(*types.Signature), nil, ftype, &Position{Owner: tn.Name() + "." + fn.Name(), Decl: d, Member: m})
		}
	}
}

// signature enumerates the receiver, parameters and results of sig as roots. The template
// carries the owner and the declaration identity shared by all of them. Interface methods have
// no receiver position: their receiver is the interface value itself, which has no type syntax.
func (e *enumerator) signature(sig *types.Signature, recv *ast.FieldList, ftype *ast.FuncType, template *Position) {
	if r := sig.Recv(); r != nil && !types.IsInterface(r.Type()) {
		p := *template
		p.Kind, p.Name, p.Node = KindReceiver, varName(r, 0), at(fieldTypes(recv), 0)
		e.root(r, &p)
	}
	var params, results []ast.Expr
	if ftype != nil {
		params, results = fieldTypes(ftype.Params), fieldTypes(ftype.Results)
	}
	for i := 0; i < sig.Params().Len(); i++ {
		v := sig.Params().At(i)
		p := *template
		p.Kind, p.Index, p.Name, p.Node = KindParameter, i, varName(v, i), at(params, i)
		e.root(v, &p)
	}
	for i := 0; i < sig.Results().Len(); i++ {
		v := sig.Results().At(i)
		p := *template
		p.Kind, p.Index, p.Name, p.Node = KindReturn, i, varName(v, i), at(results, i)
		e.root(v, &p)
	}
}

// walk enumerates the locals and the expression positions below root in pre-order.
func (e *enumerator) walk(root ast.Node, owner string) {
	ast.Inspect(root, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			e.funcLit(n, owner)
			return false
		case *ast.ValueSpec:
			for _, name := range n.Names {
				e.local(name, n.Type, owner)
			}
		case *ast.AssignStmt:
			if n.Tok == token.DEFINE {
				for _, lhs := range n.Lhs {
					if ident, ok := lhs.(*ast.Ident); ok {
						e.local(ident, nil, owner)
					}
				}
			}
		case *ast.RangeStmt:
			if n.Tok == token.DEFINE {
				for _, x := range [...]ast.Expr{n.Key, n.Value} {
					if ident, ok := x.(*ast.Ident); ok {
						e.local(ident, nil, owner)
					}
				}
			}
		case *ast.TypeSpec:
			e.typeSpec(n)
		case *ast.CaseClause:
			// The symbolic variable of a type switch has one implicit object per clause.
			if v, ok := e.info.Implicits[n].(*types.Var); ok {
				e.root(v, &Position{Kind: KindLocal, Owner: owner, Name: v.Name()})
			}
		case *ast.CompositeLit:
			if n.Type != nil {
				e.expr(n, e.info.TypeOf(n), owner)
			}
			e.literalKeys(n)
		case *ast.TypeAssertExpr:
			if n.Type != nil {
				e.expr(n, e.info.TypeOf(n.Type), owner)
			}
		case *ast.CallExpr:
			if tv, ok := e.info.Types[n.Fun]; ok && tv.IsType() {
				e.expr(n, tv.Type, owner)
			} else if util.IsElvisCall(e.info, n) {
				e.expr(n, e.info.TypeOf(n), owner)
			}
		case *ast.SelectorExpr:
			e.selector(n)
		case *ast.Ident:
			e.use(n)
		}
		return true
	})
}

func (e *enumerator) funcLit(lit *ast.FuncLit, owner string) {
	e.lits[owner]++
	label := fmt.Sprintf("%s$%d", owner, e.lits[owner])
	if sig, ok := e.info.TypeOf(lit).(*types.Signature); ok {
		e.signature(sig, nil, lit.Type, &Position{Owner: label})
	}
	e.walk(lit.Body, label)
}

func (e *enumerator) local(ident *ast.Ident, typ ast.Expr, owner string) {
	// Blank variables are never read.
	if util.IsEmptyExpr(ident) {
		return
	}
	if v, ok := e.info.Defs[ident].(*types.Var); ok {
		e.root(v, &Position{Kind: KindLocal, Node: typ, Owner: owner, Name: v.Name()})
	}
}

// expr enumerates an expression root keyed by the expression itself. Expressions whose type has
// no inferable slot are skipped.
func (e *enumerator) expr(n ast.Expr, typ types.Type, owner string) {
	if typ == nil || !hasInferable(typ) {
		return
	}
	if _, ok := e.table.nodes[n]; ok {
		return
	}
	pos := e.fset.Position(n.Pos())
	e.table.nodes[n] = e.add(&Position{
		Kind:   KindExpr,
		Parent: NoID,
		Type:   typ,
		Node:   n,
		Pos:    n.Pos(),
		Owner:  owner,
		Name:   fmt.Sprintf("@%d:%d", pos.Line, pos.Column),
	})
}

// selector enumerates external fields and methods selected by n.
func (e *enumerator) selector(n *ast.SelectorExpr) {
	sel, ok := e.info.Selections[n]
	if !ok || !e.isExternal(sel.Obj()) {
		return
	}
	switch obj := sel.Obj().(type) {
	case *types.Var:
		e.externalField(obj.Origin(), FieldOwner(sel))
	case *types.Func:
		e.externalFunc(obj.Origin())
	}
}

// use enumerates external functions and package-level variables referenced by ident.
func (e *enumerator) use(ident *ast.Ident) {
	obj := e.info.Uses[ident]
	if obj == nil || !e.isExternal(obj) {
		return
	}
	switch obj := obj.(type) {
	case *types.Func:
		e.externalFunc(obj.Origin())
	case *types.Var:
		if !obj.IsField() {
			d, m := Qualify(obj, nil)
			e.root(obj.Origin(), &Position{Kind: KindVar, External: true, Owner: d, Name: obj.Name(), Decl: d, Member: m})
		}
	}
}

// literalKeys enumerates the external fields named as keys of a struct literal.
func (e *enumerator) literalKeys(lit *ast.CompositeLit) {
	owner := util.NamedOf(e.info.TypeOf(lit))
	if owner == nil {
		return
	}
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		ident, ok := kv.Key.(*ast.Ident)
		if !ok {
			continue
		}
		if v, ok := e.info.Uses[ident].(*types.Var); ok && v.IsField() && e.isExternal(v) {
			e.externalField(v.Origin(), owner)
		}
	}
}

func (e *enumerator) externalFunc(fn *types.Func) {
	if e.funcs[fn] {
		return
	}
	e.funcs[fn] = true
	d, m := Qualify(fn, nil)
	e.signature(fn.Type().(*types.Signature), nil, nil, &Position{External: true, Owner: d + "." + m, Decl: d, Member: m})
}

func (e *enumerator) externalField(v *types.Var, owner *types.Named) {
	if owner == nil {
		return
	}
	d, m := Qualify(v, owner)
	e.root(v, &Position{Kind: KindField, External: true, Owner: d, Name: v.Name(), Decl: d, Member: m})
}

func (e *enumerator) isExternal(obj types.Object) bool {
	return obj.Pkg() != nil && obj.Pkg() != e.pkg
}

// root enumerates the tree of a declared object unless it already has one.
func (e *enumerator) root(obj types.Object, p *Position) {
	if _, ok := e.table.objects[obj]; ok {
		return
	}
	p.Parent = NoID
	p.Object = obj
	p.Type = obj.Type()
	p.Pos = obj.Pos()
	if p.Node != nil {
		p.Pos = p.Node.Pos()
	}
	e.table.objects[obj] = e.add(p)
}

// add appends p and, recursively, its children to the table, in pre-order.
func (e *enumerator) add(p *Position) ID {
	p.Hint = classify(p.Type)
	id := e.table.add(p)
	if p.Hint == HintOpaque {
		return id
	}
	switch t := types.Unalias(p.Type).(type) {
	case *types.Pointer:
		e.child(p, KindElem, 0, t.Elem())
	case *types.Slice:
		e.child(p, KindElem, 0, t.Elem())
	case *types.Array:
		e.child(p, KindElem, 0, t.Elem())
	case *types.Chan:
		e.child(p, KindElem, 0, t.Elem())
	case *types.Map:
		e.child(p, KindTypeArg, 0, t.Key())
		e.child(p, KindTypeArg, 1, t.Elem())
	case *types.Signature:
		for i := 0; i < t.Params().Len(); i++ {
			e.child(p, KindFuncParam, i, t.Params().At(i).Type())
		}
		for i := 0; i < t.Results().Len(); i++ {
			e.child(p, KindFuncReturn, i, t.Results().At(i).Type())
		}
	case *types.Named:
		for i := 0; i < t.TypeArgs().Len(); i++ {
			e.child(p, KindTypeArg, i, t.TypeArgs().At(i))
		}
	}
	return id
}

func (e *enumerator) child(parent *Position, kind Kind, index int, typ types.Type) {
	c := &Position{
		Kind:     kind,
		Index:    index,
		Parent:   parent.ID,
		Root:     parent.Root,
		Type:     typ,
		External: parent.External,
		Node:     childNode(parent.Node, kind, index),
		Pos:      parent.Pos,
		Owner:    parent.Owner,
		Decl:     parent.Decl,
		Member:   parent.Member,
	}
	if c.Node != nil {
		c.Pos = c.Node.Pos()
	}
	id := e.add(c)
	parent.Children = append(parent.Children, id)
	e.table.children[childKey{parent: parent.ID, kind: kind, index: index}] = id
}

// classify returns the hint of a type constructor.
func classify(t types.Type) Hint {
	switch t := types.Unalias(t).(type) {
	case *types.Basic:
		if t.Kind() == types.UnsafePointer || t.Kind() == types.Invalid {
			return HintOpaque
		}
		return HintPrimitive
	case *types.Pointer, *types.Slice, *types.Map, *types.Chan, *types.Signature, *types.Interface,
		*types.TypeParam, *types.Array, *types.Struct:
		if util.TypeBarsNilness(t) {
			return HintPrimitive
		}
		return HintNone
	case *types.Named:
		return classify(t.Underlying())
	}
	return HintOpaque
}

// hasInferable returns true iff a position tree of type t would contain an inferable position.
func hasInferable(t types.Type) bool {
	if classify(t) == HintNone {
		return true
	}
	switch t := types.Unalias(t).(type) {
	case *types.Array:
		return hasInferable(t.Elem())
	case *types.Named:
		for i := 0; i < t.TypeArgs().Len(); i++ {
			if hasInferable(t.TypeArgs().At(i)) {
				return true
			}
		}
	}
	return false
}
