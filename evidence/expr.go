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

package evidence

import (
	"go/ast"
	"go/token"
	"go/types"

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/position"
	"go.uber.org/nilinfer/util"
)

// eval walks an expression, emitting the evidence of its subexpressions, and returns its value.
func (c *collector) eval(e ast.Expr) operand {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return c.eval(e.X)
	case *ast.Ident:
		return c.ident(e)
	case *ast.CompositeLit:
		return c.compositeLit(e, position.NoID)
	case *ast.FuncLit:
		return c.funcLit(e)
	case *ast.SelectorExpr:
		return c.selector(e)
	case *ast.IndexExpr:
		return c.index(e, e.X, e.Index)
	case *ast.IndexListExpr:
		// Instantiation of a generic function.
		return c.eval(e.X)
	case *ast.SliceExpr:
		x := c.eval(e.X)
		for _, idx := range [...]ast.Expr{e.Low, e.High, e.Max} {
			if idx != nil {
				c.eval(idx)
			}
		}
		if util.IsPointer(c.info.TypeOf(e.X)) {
			// Slicing a pointer to an array reads the array.
			c.deref(x, e.X)
			return valueAt(c.child(x.id, position.KindElem, 0))
		}
		return x
	case *ast.TypeAssertExpr:
		x := c.eval(e.X)
		if e.Type == nil {
			return x
		}
		id, ok := c.table.OfNode(e)
		if !ok {
			return _noOperand
		}
		// A single-value assertion panics instead of producing nil.
		c.emit(Token{Kind: MustBeNotNull, P: id, Q: position.NoID, Cause: c.cause(constraint.CauseCast, e)})
		return valueAt(id)
	case *ast.CallExpr:
		results := c.call(e)
		if len(results) == 1 {
			return results[0]
		}
		return _noOperand
	case *ast.StarExpr:
		x := c.eval(e.X)
		c.deref(x, e.X)
		return valueAt(c.child(x.id, position.KindElem, 0))
	case *ast.UnaryExpr:
		switch e.Op {
		case token.AND:
			if lit, ok := ast.Unparen(e.X).(*ast.CompositeLit); ok {
				return operand{id: position.NoID, addrOf: c.compositeLit(lit, position.NoID).id}
			}
			x := c.eval(e.X)
			return operand{id: position.NoID, addrOf: x.id}
		case token.ARROW:
			// Receiving from a nil channel blocks; it does not panic.
			x := c.eval(e.X)
			return valueAt(c.child(x.id, position.KindElem, 0))
		default:
			c.eval(e.X)
			return _noOperand
		}
	case *ast.BinaryExpr:
		if e.Op == token.EQL || e.Op == token.NEQ {
			switch {
			case util.IsNil(c.info, e.Y):
				c.compared(c.eval(e.X), e.X)
				return _noOperand
			case util.IsNil(c.info, e.X):
				c.compared(c.eval(e.Y), e.Y)
				return _noOperand
			}
		}
		c.eval(e.X)
		c.eval(e.Y)
		return _noOperand
	case *ast.KeyValueExpr:
		c.eval(e.Key)
		c.eval(e.Value)
		return _noOperand
	}
	return _noOperand
}

// compared records that the value of expr is compared to nil.
func (c *collector) compared(x operand, expr ast.Expr) {
	c.nullable(x.id, c.cause(constraint.CauseComparedToNull, expr))
}

func (c *collector) ident(e *ast.Ident) operand {
	switch obj := c.info.ObjectOf(e).(type) {
	case *types.Nil:
		return nilOperand("nil")
	case *types.Var:
		return valueAt(c.objectID(obj))
	case *types.Func:
		return c.funcRef(obj)
	}
	return _noOperand
}

// funcRef returns the value of a reference to a declared function or method.
func (c *collector) funcRef(fn *types.Func) operand {
	sig := fn.Origin().Type().(*types.Signature)
	return operand{
		id:     position.NoID,
		addrOf: position.NoID,
		sig:    &signature{params: c.paramsOf(sig), results: c.resultsOf(sig)},
	}
}

func (c *collector) funcLit(lit *ast.FuncLit) operand {
	sig, ok := c.info.TypeOf(lit).(*types.Signature)
	if !ok {
		return _noOperand
	}
	results := c.resultsOf(sig)
	c.body(lit, lit.Body, results)
	return operand{
		id:     position.NoID,
		addrOf: position.NoID,
		sig:    &signature{params: c.paramsOf(sig), results: results},
	}
}

func (c *collector) selector(e *ast.SelectorExpr) operand {
	sel, ok := c.info.Selections[e]
	if !ok {
		// Qualified identifier.
		return c.ident(e.Sel)
	}
	switch sel.Kind() {
	case types.FieldVal:
		x := c.eval(e.X)
		if util.IsPointer(c.info.TypeOf(e.X)) {
			c.deref(x, e.X)
		}
		field, ok := sel.Obj().(*types.Var)
		if !ok {
			return _noOperand
		}
		id := c.objectID(field)
		if len(sel.Index()) == 1 {
			c.typeArgLink(id, field.Origin().Type(), x, c.info.TypeOf(e.X), e)
		}
		return valueAt(id)
	case types.MethodVal:
		fn, ok := sel.Obj().(*types.Func)
		if !ok {
			return _noOperand
		}
		c.receiver(e, sel, fn)
		return c.funcRef(fn)
	}
	return _noOperand
}

// typeArgLink equates a member of a generic type whose type is a bare type parameter of that type
// with the matching type argument slot of the value it is selected from.
func (c *collector) typeArgLink(member position.ID, memberType types.Type, x operand, xType types.Type, at ast.Expr) {
	tp, ok := types.Unalias(memberType).(*types.TypeParam)
	if !ok || member == position.NoID || x.id == position.NoID {
		return
	}
	named, ok := types.Unalias(util.UnwrapPtr(xType)).(*types.Named)
	if !ok || tp.Index() >= named.TypeArgs().Len() || named.Origin().TypeParams().At(tp.Index()) != tp {
		return
	}
	holder := x.id
	if util.IsPointer(xType) {
		holder = c.child(holder, position.KindElem, 0)
	}
	c.equal(member, c.child(holder, position.KindTypeArg, tp.Index()), c.cause(constraint.CauseTypeArg, at))
}

// index evaluates `x[i]`.
func (c *collector) index(e, xe, ie ast.Expr) operand {
	if _, ok := c.info.TypeOf(e).(*types.Signature); ok {
		if _, isFunc := c.info.TypeOf(xe).(*types.Signature); isFunc {
			// Instantiation of a generic function.
			return c.eval(xe)
		}
	}
	x := c.eval(xe)
	c.eval(ie)
	switch u := c.info.TypeOf(xe).Underlying().(type) {
	case *types.Slice:
		c.deref(x, xe)
		return valueAt(c.child(x.id, position.KindElem, 0))
	case *types.Array:
		return valueAt(c.child(x.id, position.KindElem, 0))
	case *types.Pointer:
		if _, ok := u.Elem().Underlying().(*types.Array); ok {
			c.deref(x, xe)
			return valueAt(c.child(c.child(x.id, position.KindElem, 0), position.KindElem, 0))
		}
	case *types.Map:
		// Reading from a nil map yields the zero value.
		return valueAt(c.child(x.id, position.KindTypeArg, 1))
	}
	return _noOperand
}

// compositeLit evaluates a composite literal. The literal has its own expression position unless
// its type is elided, in which case its slots are those of target.
func (c *collector) compositeLit(lit *ast.CompositeLit, target position.ID) operand {
	r := target
	if lit.Type != nil {
		r = position.NoID
		if id, ok := c.table.OfNode(lit); ok {
			r = id
		}
	}
	t := c.info.TypeOf(lit)
	if ptr, ok := types.Unalias(t).(*types.Pointer); ok && lit.Type == nil {
		// Elided `&T{...}` element of a composite literal.
		r = c.child(r, position.KindElem, 0)
		t = ptr.Elem()
	}

	switch u := t.Underlying().(type) {
	case *types.Slice, *types.Array:
		elem := c.child(r, position.KindElem, 0)
		for _, elt := range lit.Elts {
			if kv, ok := elt.(*ast.KeyValueExpr); ok {
				c.eval(kv.Key)
				elt = kv.Value
			}
			c.flowInto(elt, elem, constraint.CauseContainerElem)
		}
	case *types.Map:
		key, val := c.child(r, position.KindTypeArg, 0), c.child(r, position.KindTypeArg, 1)
		for _, elt := range lit.Elts {
			if kv, ok := elt.(*ast.KeyValueExpr); ok {
				c.flowInto(kv.Key, key, constraint.CauseContainerElem)
				c.flowInto(kv.Value, val, constraint.CauseContainerElem)
			}
		}
	case *types.Struct:
		for i, elt := range lit.Elts {
			var field *types.Var
			value := elt
			if kv, ok := elt.(*ast.KeyValueExpr); ok {
				ident, _ := kv.Key.(*ast.Ident)
				if ident != nil {
					field, _ = c.info.ObjectOf(ident).(*types.Var)
				}
				value = kv.Value
			} else if i < u.NumFields() {
				field = u.Field(i)
			}
			if field == nil {
				c.eval(value)
				continue
			}
			id := c.objectID(field)
			c.typeArgLink(id, field.Origin().Type(), valueAt(r), t, lit)
			c.flowInto(value, id, constraint.CauseAssign)
		}
	default:
		for _, elt := range lit.Elts {
			c.eval(elt)
		}
	}
	if lit.Type == nil {
		return _noOperand
	}
	return valueAt(r)
}

// receiver emits the evidence of the receiver of a method call or method value.
func (c *collector) receiver(e *ast.SelectorExpr, sel *types.Selection, fn *types.Func) {
	x := c.eval(e.X)
	xType := c.info.TypeOf(e.X)
	if len(sel.Index()) > 1 {
		// Promoted method: the receiver is an embedded field reached through x.
		if util.IsPointer(xType) {
			c.deref(x, e.X)
		}
		return
	}
	recv := fn.Origin().Type().(*types.Signature).Recv()
	if recv == nil {
		return
	}
	recvType := recv.Type()
	switch {
	case types.IsInterface(recvType) || types.IsInterface(xType):
		c.deref(x, e.X)
	case util.IsPointer(recvType):
		if !util.IsPointer(xType) {
			// Addressable value: the receiver is its address.
			return
		}
		id := c.objectID(recv)
		if p := c.table.At(id); p != nil && p.External {
			// Library methods are assumed to dereference their receiver unless annotated.
			if v, _ := c.opts.Sources.Lookup(p.Decl, p.Member, c.table.Path(id)); v != constraint.Nullable {
				c.deref(x, e.X)
				return
			}
		}
		c.flow(x, id, c.cause(constraint.CauseSafeCall, e.X))
	default:
		if util.IsPointer(xType) {
			// The value receiver is copied out of *x.
			c.deref(x, e.X)
			return
		}
		c.flow(x, c.objectID(recv), c.cause(constraint.CauseArg, e.X))
	}
	c.receiverTypeArgs(fn, x, xType, e)
}

// receiverTypeArgs links the parameters and results of a method of a generic type whose type is a
// bare type parameter to the type argument slots of the receiver value.
func (c *collector) receiverTypeArgs(fn *types.Func, x operand, xType types.Type, at ast.Expr) {
	sig := fn.Origin().Type().(*types.Signature)
	if sig.RecvTypeParams().Len() == 0 {
		return
	}
	named, ok := types.Unalias(util.UnwrapPtr(xType)).(*types.Named)
	if !ok {
		return
	}
	holder := x.id
	if util.IsPointer(xType) {
		holder = c.child(holder, position.KindElem, 0)
	}
	link := func(v *types.Var) {
		tp, ok := types.Unalias(v.Type()).(*types.TypeParam)
		if !ok || tp.Index() >= named.TypeArgs().Len() || sig.RecvTypeParams().At(tp.Index()) != tp {
			return
		}
		c.equal(c.objectID(v), c.child(holder, position.KindTypeArg, tp.Index()), c.cause(constraint.CauseTypeArg, at))
	}
	for i := 0; i < sig.Params().Len(); i++ {
		link(sig.Params().At(i))
	}
	for i := 0; i < sig.Results().Len(); i++ {
		link(sig.Results().At(i))
	}
}
