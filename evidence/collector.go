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

// Package evidence implements the evidence collector. It walks the type-checked syntax of a
// package once and emits evidence tokens about the positions of a table: a position must admit
// nil (a nil literal flows into it, it is compared to nil), a position must not hold nil (it is
// dereferenced without a dominating nil check), or two positions are related because values
// flow from one into the other.
//
// Every token carries a cause: what happened, where, and the source text involved. Tokens are
// emitted in source order, so identical inputs produce identical token lists.
package evidence

import (
	"go/ast"
	"go/token"
	"go/types"

	"go.uber.org/nilinfer/annotation"
	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/position"
	"go.uber.org/nilinfer/util"
	"go.uber.org/nilinfer/util/typeshelper"
)

// Options configures a collection run.
type Options struct {
	// Sources are the annotation oracles consulted for every declared position.
	Sources annotation.Sources
	// Guards returns the guard oracle of a function declaration or literal. When nil, no
	// dereference is considered guarded.
	Guards func(fn ast.Node) GuardOracle
	// PinsOnly restricts the collection to the pins of the positions: hints and annotations.
	PinsOnly bool
}

// function is the context of the function body being walked.
type function struct {
	results []position.ID
	guards  GuardOracle
}

type collector struct {
	fset  *token.FileSet
	pkg   *types.Package
	info  *types.Info
	table *position.Table
	opts  Options

	tokens []Token
	fn     *function
}

// Collect returns the evidence tokens of the given files about the positions of table.
func Collect(fset *token.FileSet, pkg *types.Package, info *types.Info, files []*ast.File, table *position.Table, opts Options) []Token {
	c := &collector{fset: fset, pkg: pkg, info: info, table: table, opts: opts}
	c.pins()
	if opts.PinsOnly {
		return c.tokens
	}
	c.superMethods()
	for _, file := range files {
		for _, decl := range file.Decls {
			switch decl := decl.(type) {
			case *ast.FuncDecl:
				if decl.Body != nil {
					c.funcDecl(decl)
				}
			case *ast.GenDecl:
				c.genDecl(decl)
			}
		}
	}
	return c.tokens
}

// pins emits the tokens of the positions that are decided without looking at any expression:
// primitive and opaque slots, and the answers of the annotation oracles.
func (c *collector) pins() {
	qualifier := types.RelativeTo(c.pkg)
	for _, p := range c.table.All() {
		switch p.Hint {
		case position.HintPrimitive:
			c.emit(Token{Kind: MustBeNotNull, P: p.ID, Q: position.NoID,
				Cause: constraint.NewCause(constraint.CausePrimitive, p.Pos, types.TypeString(p.Type, qualifier))})
		case position.HintOpaque:
			c.emit(Token{Kind: MustBeNotNull, P: p.ID, Q: position.NoID,
				Cause: constraint.NewCause(constraint.CauseOpaque, p.Pos, types.TypeString(p.Type, qualifier))})
		}
		if p.Decl == "" && p.Member == "" {
			continue
		}
		path := c.table.Path(p.ID)
		v, kind := c.opts.Sources.Lookup(p.Decl, p.Member, path)
		if v == constraint.Unknown {
			continue
		}
		tk := MustBeNotNull
		if v == constraint.Nullable {
			tk = MustBeNullable
		}
		c.emit(Token{Kind: tk, P: p.ID, Q: position.NoID,
			Cause: constraint.NewCause(kind, p.Pos, p.Decl+"."+p.Member+" "+path)})
	}
}

// superMethods equates the parameters and results of the methods of the package's named types
// with the methods of the package's interfaces they implement.
func (c *collector) superMethods() {
	var ifaces, concretes []*types.Named
	scope := c.pkg.Scope()
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || tn.IsAlias() {
			continue
		}
		named, ok := tn.Type().(*types.Named)
		if !ok || named.TypeParams().Len() > 0 {
			continue
		}
		if types.IsInterface(named) {
			ifaces = append(ifaces, named)
		} else {
			concretes = append(concretes, named)
		}
	}

	for _, concrete := range concretes {
		for _, iface := range ifaces {
			it := iface.Underlying().(*types.Interface)
			if it.NumMethods() == 0 {
				continue
			}
			var impl types.Type = concrete
			if !types.Implements(impl, it) {
				impl = types.NewPointer(concrete)
				if !types.Implements(impl, it) {
					continue
				}
			}
			for i := 0; i < it.NumMethods(); i++ {
				m := it.Method(i)
				obj, _, _ := types.LookupFieldOrMethod(impl, false, c.pkg, m.Name())
				cm, ok := obj.(*types.Func)
				if !ok || cm.Pkg() != c.pkg {
					continue
				}
				c.overrides(cm, m)
			}
		}
	}
}

func (c *collector) overrides(concrete, abstract *types.Func) {
	csig := concrete.Type().(*types.Signature)
	asig := abstract.Type().(*types.Signature)
	if csig.Params().Len() != asig.Params().Len() || csig.Results().Len() != asig.Results().Len() {
		return
	}
	cause := constraint.NewCause(constraint.CauseSuperMethod, concrete.Pos(), concrete.Name())
	pairs := func(a, b *types.Tuple) {
		for i := 0; i < a.Len(); i++ {
			p, ok1 := c.table.OfObject(a.At(i))
			q, ok2 := c.table.OfObject(b.At(i))
			if ok1 && ok2 {
				c.equal(p, q, cause)
			}
		}
	}
	pairs(csig.Params(), asig.Params())
	pairs(csig.Results(), asig.Results())
}

func (c *collector) funcDecl(decl *ast.FuncDecl) {
	fn, ok := c.info.Defs[decl.Name].(*types.Func)
	if !ok {
		return
	}
	c.body(decl, decl.Body, c.resultsOf(fn.Type().(*types.Signature)))
}

// resultsOf returns the positions of the results of a declared signature.
func (c *collector) resultsOf(sig *types.Signature) []position.ID {
	ids := make([]position.ID, sig.Results().Len())
	for i := range ids {
		ids[i] = c.objectID(sig.Results().At(i))
	}
	return ids
}

func (c *collector) paramsOf(sig *types.Signature) []position.ID {
	ids := make([]position.ID, sig.Params().Len())
	for i := range ids {
		ids[i] = c.objectID(sig.Params().At(i))
	}
	return ids
}

func (c *collector) objectID(obj types.Object) position.ID {
	if obj == nil {
		return position.NoID
	}
	if id, ok := c.table.OfObject(obj); ok {
		return id
	}
	return position.NoID
}

// body walks a function body within its own function context.
func (c *collector) body(node ast.Node, body *ast.BlockStmt, results []position.ID) {
	outer := c.fn
	c.fn = &function{results: results}
	if c.opts.Guards != nil {
		c.fn.guards = c.opts.Guards(node)
	}
	c.stmt(body)
	c.fn = outer
}

func (c *collector) genDecl(decl *ast.GenDecl) {
	if decl.Tok != token.VAR {
		return
	}
	for _, spec := range decl.Specs {
		c.valueSpec(spec.(*ast.ValueSpec))
	}
}

func (c *collector) valueSpec(spec *ast.ValueSpec) {
	targets := make([]position.ID, len(spec.Names))
	for i, name := range spec.Names {
		targets[i] = c.objectID(c.info.Defs[name])
	}
	if len(spec.Values) == 0 {
		for i, name := range spec.Names {
			c.zero(targets[i], c.cause(constraint.CauseNullLiteral, name))
		}
		return
	}
	c.assign(targets, spec.Values, constraint.CauseAssign)
}

// zero records that the position holds the zero value of its type: nil for a nilable type, and
// an array of zero values for an array type. Struct fields are declared positions of their own
// and are left alone.
func (c *collector) zero(id position.ID, cause constraint.Cause) {
	p := c.table.At(id)
	if p == nil {
		return
	}
	if p.Inferable() {
		c.nullable(id, cause)
		return
	}
	if _, ok := p.Type.Underlying().(*types.Array); ok {
		c.zero(c.child(id, position.KindElem, 0), cause)
	}
}

// assign flows values into targets. A single call or comma-ok expression may produce several
// values.
func (c *collector) assign(targets []position.ID, values []ast.Expr, kind constraint.CauseKind) {
	if len(values) == 0 {
		return
	}
	if len(values) == len(targets) {
		for i, v := range values {
			c.flowInto(v, targets[i], kind)
		}
		return
	}
	if len(values) != 1 {
		for _, v := range values {
			c.eval(v)
		}
		return
	}
	value := values[0]
	switch v := ast.Unparen(value).(type) {
	case *ast.CallExpr:
		for i, r := range c.call(v) {
			if i < len(targets) {
				c.flow(r, targets[i], c.cause(kind, value))
			}
		}
	case *ast.TypeAssertExpr:
		// v, ok := x.(T)
		c.eval(v.X)
		if id, ok := c.table.OfNode(v); ok {
			c.nullable(id, c.cause(constraint.CauseCheckedCast, v))
			c.flow(valueAt(id), targets[0], c.cause(kind, value))
		}
	default:
		// v, ok := m[k] and v, ok := <-ch.
		c.flow(c.eval(value), targets[0], c.cause(kind, value))
	}
}

func (c *collector) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case nil:
	case *ast.BlockStmt:
		for _, st := range s.List {
			c.stmt(st)
		}
	case *ast.ExprStmt:
		c.eval(s.X)
	case *ast.AssignStmt:
		c.assignStmt(s)
	case *ast.DeclStmt:
		if decl, ok := s.Decl.(*ast.GenDecl); ok {
			c.genDecl(decl)
		}
	case *ast.ReturnStmt:
		c.returnStmt(s)
	case *ast.IfStmt:
		c.stmt(s.Init)
		c.eval(s.Cond)
		c.stmt(s.Body)
		c.stmt(s.Else)
	case *ast.ForStmt:
		c.stmt(s.Init)
		if s.Cond != nil {
			c.eval(s.Cond)
		}
		c.stmt(s.Post)
		c.stmt(s.Body)
	case *ast.RangeStmt:
		c.rangeStmt(s)
	case *ast.SwitchStmt:
		c.switchStmt(s)
	case *ast.TypeSwitchStmt:
		c.typeSwitchStmt(s)
	case *ast.SelectStmt:
		for _, clause := range s.Body.List {
			cc := clause.(*ast.CommClause)
			c.stmt(cc.Comm)
			for _, st := range cc.Body {
				c.stmt(st)
			}
		}
	case *ast.SendStmt:
		ch := c.eval(s.Chan)
		c.flowInto(s.Value, c.child(ch.id, position.KindElem, 0), constraint.CauseContainerElem)
	case *ast.IncDecStmt:
		c.eval(s.X)
	case *ast.GoStmt:
		c.eval(s.Call)
	case *ast.DeferStmt:
		c.eval(s.Call)
	case *ast.LabeledStmt:
		c.stmt(s.Stmt)
	}
}

func (c *collector) assignStmt(s *ast.AssignStmt) {
	if s.Tok != token.ASSIGN && s.Tok != token.DEFINE {
		// Compound assignments operate on numbers and strings.
		for _, lhs := range s.Lhs {
			c.eval(lhs)
		}
		for _, rhs := range s.Rhs {
			c.eval(rhs)
		}
		return
	}
	targets := make([]position.ID, len(s.Lhs))
	for i, lhs := range s.Lhs {
		targets[i] = c.target(lhs)
	}
	c.assign(targets, s.Rhs, constraint.CauseAssign)
}

// target returns the position written by an assignment to lhs, emitting the evidence of the
// access itself.
func (c *collector) target(lhs ast.Expr) position.ID {
	switch e := ast.Unparen(lhs).(type) {
	case *ast.Ident:
		if e.Name == "_" {
			return position.NoID
		}
		return c.objectID(c.info.ObjectOf(e))
	case *ast.IndexExpr:
		if _, ok := c.info.TypeOf(e.X).Underlying().(*types.Map); ok {
			m := c.eval(e.X)
			// Writing to a nil map panics.
			c.deref(m, e.X)
			c.flowInto(e.Index, c.child(m.id, position.KindTypeArg, 0), constraint.CauseContainerElem)
			return c.child(m.id, position.KindTypeArg, 1)
		}
	}
	return c.eval(lhs).id
}

func (c *collector) returnStmt(s *ast.ReturnStmt) {
	if c.fn == nil || len(s.Results) == 0 {
		return
	}
	c.assign(c.fn.results, s.Results, constraint.CauseReturn)
}

func (c *collector) rangeStmt(s *ast.RangeStmt) {
	x := c.eval(s.X)
	key, val := position.NoID, position.NoID
	if s.Key != nil {
		key = c.target(s.Key)
	}
	if s.Value != nil {
		val = c.target(s.Value)
	}
	cause := c.cause(constraint.CauseLoopVar, s.X)

	t := c.info.TypeOf(s.X)
	switch u := t.Underlying().(type) {
	case *types.Slice, *types.Array:
		c.equal(val, c.child(x.id, position.KindElem, 0), cause)
	case *types.Pointer:
		// Ranging over a pointer to an array reads the array.
		c.deref(x, s.X)
		c.equal(val, c.child(c.child(x.id, position.KindElem, 0), position.KindElem, 0), cause)
	case *types.Map:
		c.equal(key, c.child(x.id, position.KindTypeArg, 0), cause)
		c.equal(val, c.child(x.id, position.KindTypeArg, 1), cause)
	case *types.Chan:
		c.equal(key, c.child(x.id, position.KindElem, 0), cause)
	case *types.Signature:
		c.rangeFunc(s, x, t, u, key, val, cause)
	}
	c.stmt(s.Body)
}

// rangeFunc binds the loop variables of a range over an iterator function to the parameters of
// its yield function.
func (c *collector) rangeFunc(s *ast.RangeStmt, x operand, t types.Type, sig *types.Signature, key, val position.ID, cause constraint.Cause) {
	if x.sig == nil {
		// Calling a nil iterator panics.
		c.deref(x, s.X)
	}
	if typeshelper.IsStdIterType(t) {
		c.equal(key, c.child(x.id, position.KindTypeArg, 0), cause)
		c.equal(val, c.child(x.id, position.KindTypeArg, 1), cause)
		return
	}
	if !typeshelper.IsIterType(t) {
		return
	}
	var yield position.ID
	if x.sig != nil {
		if len(x.sig.params) == 0 {
			return
		}
		yield = x.sig.params[0]
	} else {
		yield = c.child(x.id, position.KindFuncParam, 0)
	}
	c.equal(key, c.child(yield, position.KindFuncParam, 0), cause)
	c.equal(val, c.child(yield, position.KindFuncParam, 1), cause)
}

func (c *collector) switchStmt(s *ast.SwitchStmt) {
	c.stmt(s.Init)
	tag := _noOperand
	if s.Tag != nil {
		tag = c.eval(s.Tag)
	}
	for _, clause := range s.Body.List {
		cc := clause.(*ast.CaseClause)
		for _, expr := range cc.List {
			if s.Tag != nil && util.IsNil(c.info, expr) {
				c.nullable(tag.id, c.cause(constraint.CauseComparedToNull, s.Tag))
				continue
			}
			c.eval(expr)
		}
		for _, st := range cc.Body {
			c.stmt(st)
		}
	}
}

func (c *collector) typeSwitchStmt(s *ast.TypeSwitchStmt) {
	c.stmt(s.Init)
	var assert *ast.TypeAssertExpr
	switch a := s.Assign.(type) {
	case *ast.AssignStmt:
		assert, _ = a.Rhs[0].(*ast.TypeAssertExpr)
	case *ast.ExprStmt:
		assert, _ = a.X.(*ast.TypeAssertExpr)
	}
	x := _noOperand
	if assert != nil {
		x = c.eval(assert.X)
	}
	for _, clause := range s.Body.List {
		cc := clause.(*ast.CaseClause)
		single := len(cc.List) == 1 && !util.IsNil(c.info, cc.List[0])
		for _, expr := range cc.List {
			if util.IsNil(c.info, expr) && assert != nil {
				c.nullable(x.id, c.cause(constraint.CauseComparedToNull, assert.X))
			}
		}
		// The symbolic variable of a clause listing a single type holds a value of that type;
		// otherwise it holds the switched value itself.
		if v, ok := c.info.Implicits[cc].(*types.Var); ok && !single && assert != nil {
			c.flow(x, c.objectID(v), c.cause(constraint.CauseAssign, assert.X))
		}
		for _, st := range cc.Body {
			c.stmt(st)
		}
	}
}
