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

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/position"
	"go.uber.org/nilinfer/util"
	"go.uber.org/nilinfer/util/asthelper"
)

// operand describes the value of an evaluated expression.
type operand struct {
	// id is the position holding the value, NoID when there is none.
	id position.ID
	// nilLit marks values that are nil: the predeclared nil, or the result of recover().
	nilLit bool
	detail string
	// sig is set for function literals and references to declared functions.
	sig *signature
	// addrOf is the position whose address is taken (`&x`, `&T{}`), NoID otherwise.
	addrOf position.ID
}

// signature is the positions of the parameters and results of a function.
type signature struct {
	params, results []position.ID
}

var _noOperand = operand{id: position.NoID, addrOf: position.NoID}

func valueAt(id position.ID) operand {
	return operand{id: id, addrOf: position.NoID}
}

func nilOperand(detail string) operand {
	return operand{id: position.NoID, addrOf: position.NoID, nilLit: true, detail: detail}
}

func (c *collector) cause(kind constraint.CauseKind, node ast.Node) constraint.Cause {
	detail := ""
	if e, ok := node.(ast.Expr); ok {
		detail = asthelper.PrintExpr(e, c.fset, true)
	}
	return constraint.NewCause(kind, node.Pos(), detail)
}

func (c *collector) inferable(id position.ID) bool {
	p := c.table.At(id)
	return p != nil && p.Inferable()
}

func (c *collector) child(id position.ID, kind position.Kind, index int) position.ID {
	return c.table.Child(id, kind, index)
}

func (c *collector) emit(t Token) {
	c.tokens = append(c.tokens, t)
}

// nullable requires the position to admit nil.
func (c *collector) nullable(id position.ID, cause constraint.Cause) {
	if !c.inferable(id) {
		return
	}
	c.emit(Token{Kind: MustBeNullable, P: id, Q: position.NoID, Cause: cause})
}

// deref records that the value of expr is dereferenced, unless a nil check guards it.
func (c *collector) deref(x operand, expr ast.Expr) {
	if !c.inferable(x.id) {
		return
	}
	if c.fn != nil && c.fn.guards != nil && c.fn.guards.IsGuarded(expr) {
		return
	}
	c.emit(Token{Kind: MustBeNotNull, P: x.id, Q: position.NoID, Cause: c.cause(constraint.CauseDeref, expr)})
}

// flowInto records that the value of e flows into position p.
func (c *collector) flowInto(e ast.Expr, p position.ID, kind constraint.CauseKind) {
	e = ast.Unparen(e)
	if lit, ok := e.(*ast.CompositeLit); ok && lit.Type == nil {
		c.compositeLit(lit, p)
		return
	}
	if util.IsNil(c.info, e) {
		c.nullable(p, c.cause(constraint.CauseNullLiteral, e))
		return
	}
	c.flow(c.eval(e), p, c.cause(kind, e))
}

// flow records that the value x flows into position p.
func (c *collector) flow(x operand, p position.ID, cause constraint.Cause) {
	switch {
	case p == position.NoID:
	case x.nilLit:
		cause.Kind = constraint.CauseNullLiteral
		if x.detail != "" {
			cause.Detail = x.detail
		}
		c.nullable(p, cause)
	case x.sig != nil:
		for i, param := range x.sig.params {
			c.equal(c.child(p, position.KindFuncParam, i), param, cause)
		}
		for i, result := range x.sig.results {
			c.subtype(result, c.child(p, position.KindFuncReturn, i), cause)
		}
	case x.addrOf != position.NoID:
		c.equal(c.child(p, position.KindElem, 0), x.addrOf, cause)
	case x.id != position.NoID:
		c.subtype(x.id, p, cause)
	}
}

// subtype records that values of sub flow into sup. The slots below both positions are matched
// by kind and index: function results are covariant, everything else is invariant.
func (c *collector) subtype(sub, sup position.ID, cause constraint.Cause) {
	if sub == position.NoID || sup == position.NoID || sub == sup {
		return
	}
	if c.inferable(sub) && c.inferable(sup) {
		c.emit(Token{Kind: Subtype, P: sub, Q: sup, Cause: cause})
	}
	for _, sc := range c.table.At(sup).Children {
		p := c.table.At(sc)
		d := c.child(sub, p.Kind, p.Index)
		if p.Kind == position.KindFuncReturn {
			c.subtype(d, sc, cause)
		} else {
			c.equal(d, sc, cause)
		}
	}
}

// equal records that two positions have the same nilability, and so do the slots below them.
func (c *collector) equal(a, b position.ID, cause constraint.Cause) {
	if a == position.NoID || b == position.NoID || a == b {
		return
	}
	if c.inferable(a) && c.inferable(b) {
		c.emit(Token{Kind: Equal, P: a, Q: b, Cause: cause})
	}
	for _, bc := range c.table.At(b).Children {
		p := c.table.At(bc)
		c.equal(c.child(a, p.Kind, p.Index), bc, cause)
	}
}
