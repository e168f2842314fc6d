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
	"go/types"

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/position"
	"go.uber.org/nilinfer/util"
	"golang.org/x/tools/go/types/typeutil"
)

// call evaluates a call expression and returns the values of its results.
func (c *collector) call(e *ast.CallExpr) []operand {
	if tv, ok := c.info.Types[e.Fun]; ok && tv.IsType() {
		return []operand{c.conversion(e)}
	}
	if name := util.IsBuiltin(c.info, e); name != "" {
		return c.builtin(name, e)
	}
	if util.IsElvisCall(c.info, e) {
		return []operand{c.elvis(e)}
	}

	var sig *types.Signature
	if t := c.info.TypeOf(e.Fun); t != nil {
		sig, _ = t.Underlying().(*types.Signature)
	}
	if sig == nil {
		for _, arg := range e.Args {
			c.eval(arg)
		}
		return nil
	}

	var params, results []position.ID
	switch fn := typeutil.Callee(c.info, e).(type) {
	case *types.Func:
		declared := fn.Origin().Type().(*types.Signature)
		params, results = c.paramsOf(declared), c.resultsOf(declared)
		fun := ast.Unparen(e.Fun)
		if ix, ok := fun.(*ast.IndexExpr); ok {
			fun = ast.Unparen(ix.X)
		} else if ix, ok := fun.(*ast.IndexListExpr); ok {
			fun = ast.Unparen(ix.X)
		}
		if se, ok := fun.(*ast.SelectorExpr); ok {
			if s, ok := c.info.Selections[se]; ok {
				switch s.Kind() {
				case types.MethodVal:
					c.receiver(se, s, fn)
				case types.MethodExpr:
					// T.M(x, args...): the receiver is the first argument.
					c.eval(se.X)
					if len(e.Args) > 0 {
						c.flowInto(e.Args[0], c.objectID(declared.Recv()), constraint.CauseArg)
						c.args(e.Args[1:], e, declared, params)
					}
					return c.results(results)
				}
			}
		}
	default:
		// A call of a function value: a variable, a field, a literal or any other expression.
		f := c.eval(e.Fun)
		if f.sig != nil {
			params, results = f.sig.params, f.sig.results
		} else {
			c.deref(f, e.Fun)
			params = make([]position.ID, sig.Params().Len())
			for i := range params {
				params[i] = c.child(f.id, position.KindFuncParam, i)
			}
			results = make([]position.ID, sig.Results().Len())
			for i := range results {
				results[i] = c.child(f.id, position.KindFuncReturn, i)
			}
		}
	}
	c.args(e.Args, e, sig, params)
	return c.results(results)
}

func (c *collector) results(ids []position.ID) []operand {
	ops := make([]operand, len(ids))
	for i, id := range ids {
		ops[i] = valueAt(id)
	}
	return ops
}

// args flows the arguments of a call into the parameter positions.
func (c *collector) args(args []ast.Expr, call *ast.CallExpr, sig *types.Signature, params []position.ID) {
	param := func(i int) position.ID {
		if i < len(params) {
			return params[i]
		}
		return position.NoID
	}

	// f(g()) where g returns several values.
	if len(args) == 1 {
		if inner, ok := ast.Unparen(args[0]).(*ast.CallExpr); ok {
			if _, isTuple := c.info.TypeOf(inner).(*types.Tuple); isTuple {
				for i, r := range c.call(inner) {
					target := param(i)
					if sig.Variadic() && i >= len(params)-1 {
						target = c.child(param(len(params)-1), position.KindElem, 0)
					}
					c.flow(r, target, c.cause(constraint.CauseArg, inner))
				}
				return
			}
		}
	}

	n := len(params)
	for i, arg := range args {
		switch {
		case sig.Variadic() && i == n-1 && call.Ellipsis.IsValid():
			c.flowInto(arg, param(i), constraint.CauseSpread)
		case sig.Variadic() && i >= n-1:
			c.flowInto(arg, c.child(param(n-1), position.KindElem, 0), constraint.CauseArg)
		default:
			c.flowInto(arg, param(i), constraint.CauseArg)
		}
	}
}

// conversion evaluates `T(x)`. The converted value keeps the nilability of x.
func (c *collector) conversion(e *ast.CallExpr) operand {
	if len(e.Args) != 1 {
		return _noOperand
	}
	id, ok := c.table.OfNode(e)
	if !ok {
		return c.eval(e.Args[0])
	}
	c.flowInto(e.Args[0], id, constraint.CauseAssign)
	return valueAt(id)
}

// elvis evaluates cmp.Or(a, b, ..., z): the result is the first non-zero argument, so it is nil
// only when the last argument is.
func (c *collector) elvis(e *ast.CallExpr) operand {
	id, ok := c.table.OfNode(e)
	if !ok {
		for _, arg := range e.Args {
			c.eval(arg)
		}
		return _noOperand
	}
	for i, arg := range e.Args {
		if i == len(e.Args)-1 {
			c.flowInto(arg, id, constraint.CauseElvis)
			continue
		}
		x := c.eval(arg)
		if x.id == position.NoID {
			continue
		}
		// Non-zero arguments are returned as they are, so the slots below them flow into the
		// result; only the root is known to be non-nil.
		cause := c.cause(constraint.CauseElvis, arg)
		for _, child := range c.table.At(id).Children {
			p := c.table.At(child)
			c.equal(c.child(x.id, p.Kind, p.Index), child, cause)
		}
	}
	return valueAt(id)
}

func (c *collector) builtin(name string, e *ast.CallExpr) []operand {
	switch name {
	case "new", "make":
		for i, arg := range e.Args {
			if i > 0 {
				c.eval(arg)
			}
		}
		return []operand{_noOperand}
	case "recover":
		return []operand{nilOperand("recover()")}
	case "append":
		if len(e.Args) == 0 {
			return []operand{_noOperand}
		}
		s := c.eval(e.Args[0])
		elem := c.child(s.id, position.KindElem, 0)
		if e.Ellipsis.IsValid() && len(e.Args) == 2 {
			x := c.eval(e.Args[1])
			c.equal(c.child(x.id, position.KindElem, 0), elem, c.cause(constraint.CauseSpread, e.Args[1]))
			return []operand{s}
		}
		for _, arg := range e.Args[1:] {
			c.flowInto(arg, elem, constraint.CauseContainerElem)
		}
		return []operand{s}
	case "close":
		for _, arg := range e.Args {
			c.deref(c.eval(arg), arg)
		}
		return nil
	case "copy":
		if len(e.Args) == 2 {
			dst, src := c.eval(e.Args[0]), c.eval(e.Args[1])
			c.equal(c.child(src.id, position.KindElem, 0), c.child(dst.id, position.KindElem, 0), c.cause(constraint.CauseContainerElem, e.Args[1]))
		}
		return []operand{_noOperand}
	default:
		for _, arg := range e.Args {
			c.eval(arg)
		}
		if name == "min" || name == "max" || name == "len" || name == "cap" || name == "complex" ||
			name == "real" || name == "imag" {
			return []operand{_noOperand}
		}
		return nil
	}
}
