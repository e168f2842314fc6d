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
	"strings"

	"go.uber.org/nilinfer/hook"
	"go.uber.org/nilinfer/util"
	"golang.org/x/tools/go/cfg"
)

// GuardOracle answers whether a dereferenced expression is protected by a dominating nil check.
type GuardOracle interface {
	IsGuarded(expr ast.Expr) bool
}

// accessKey identifies the value a nil check is about: a variable, optionally followed by a
// chain of field selections (".f.g").
type accessKey struct {
	root types.Object
	path string
}

type keyedCheck struct {
	key   accessKey
	check ast.Expr
}

// location is a node of a control flow graph: the index of its block and its index within the
// block.
type location struct {
	block int32
	node  int
}

type regionKind uint8

const (
	// regionDominated covers the blocks dominated by the head block.
	regionDominated regionKind = iota
	// regionSplit covers the nodes after the head node in its block and the blocks strictly
	// dominated by the head block.
	regionSplit
	// regionSpan covers a source range: the right operand of a short-circuit operator.
	regionSpan
)

// fact states that the value of key is not nil within a region.
type fact struct {
	keyedCheck
	kind     regionKind
	head     location
	from, to token.Pos
}

type span struct {
	loc      location
	pos, end token.Pos
}

type assignment struct {
	path string
	loc  location
}

// Guards is the guard oracle of one function body. It is built from the control flow graph of
// the body: a nil check `v != nil` guards the expressions in the blocks dominated by the branch
// taken when the check holds, as long as that branch can only be entered from the check and v is
// not reassigned on the way. Expressions inside function literals are not covered: each function
// literal has its own oracle.
type Guards struct {
	info  *types.Info
	graph *cfg.CFG

	preds [][]int32
	idom  []int32
	order []int32
	spans []span

	facts    []fact
	assigns  map[types.Object][]assignment
	escaped  map[types.Object]bool
	okVars   map[types.Object]accessKey
	caseTags map[ast.Expr]ast.Expr
	// addrArgs are the `&target` arguments of calls that act as nil checks, e.g. errors.As.
	addrArgs map[*ast.UnaryExpr]bool
}

// NewGuards builds the guard oracle of a function body from its control flow graph.
func NewGuards(info *types.Info, body *ast.BlockStmt, graph *cfg.CFG) *Guards {
	gd := &Guards{
		info:     info,
		graph:    graph,
		assigns:  make(map[types.Object][]assignment),
		escaped:  make(map[types.Object]bool),
		okVars:   make(map[types.Object]accessKey),
		caseTags: make(map[ast.Expr]ast.Expr),
		addrArgs: make(map[*ast.UnaryExpr]bool),
	}
	gd.dominators()
	gd.index()
	if body != nil {
		gd.scan(body)
	}
	gd.conditionFacts()
	gd.splitFacts()
	return gd
}

// IsGuarded implements GuardOracle.
func (gd *Guards) IsGuarded(expr ast.Expr) bool {
	return gd.guarded(nil, expr)
}

// IsGuardedBy returns true iff expr is guarded by the given nil check.
func (gd *Guards) IsGuardedBy(check, expr ast.Expr) bool {
	return gd.guarded(check, expr)
}

func (gd *Guards) guarded(check, expr ast.Expr) bool {
	k, ok := gd.key(expr)
	if !ok {
		return false
	}
	for i := range gd.facts {
		f := &gd.facts[i]
		if f.key != k || (check != nil && f.check != check) {
			continue
		}
		if gd.holds(f, expr) {
			return true
		}
	}
	return false
}

// dominators computes the immediate dominators of the live blocks with the iterative algorithm
// of Cooper, Harvey and Kennedy.
func (gd *Guards) dominators() {
	n := len(gd.graph.Blocks)
	gd.preds = make([][]int32, n)
	gd.idom = make([]int32, n)
	gd.order = make([]int32, n)
	for i := range gd.idom {
		gd.idom[i], gd.order[i] = -1, -1
	}
	if n == 0 {
		return
	}

	visited := make([]bool, n)
	var post []int32
	var visit func(b *cfg.Block)
	visit = func(b *cfg.Block) {
		visited[b.Index] = true
		for _, s := range b.Succs {
			gd.preds[s.Index] = append(gd.preds[s.Index], b.Index)
			if !visited[s.Index] {
				visit(s)
			}
		}
		post = append(post, b.Index)
	}
	entry := gd.graph.Blocks[0]
	visit(entry)
	for i, b := range post {
		gd.order[b] = int32(i)
	}

	gd.idom[entry.Index] = entry.Index
	for changed := true; changed; {
		changed = false
		// Reverse postorder, skipping the entry which finishes last.
		for i := len(post) - 2; i >= 0; i-- {
			b := post[i]
			idom := int32(-1)
			for _, p := range gd.preds[b] {
				if gd.idom[p] == -1 {
					continue
				}
				if idom == -1 {
					idom = p
				} else {
					idom = gd.intersect(p, idom)
				}
			}
			if idom != gd.idom[b] {
				gd.idom[b] = idom
				changed = true
			}
		}
	}
}

func (gd *Guards) intersect(a, b int32) int32 {
	for a != b {
		for gd.order[a] < gd.order[b] {
			a = gd.idom[a]
		}
		for gd.order[b] < gd.order[a] {
			b = gd.idom[b]
		}
	}
	return a
}

// dominates returns true iff block a dominates block b. Dead blocks are dominated by nothing.
func (gd *Guards) dominates(a, b int32) bool {
	if gd.idom[b] == -1 {
		return false
	}
	for {
		if a == b {
			return true
		}
		next := gd.idom[b]
		if next == b {
			return false
		}
		b = next
	}
}

// index records the source range of every node of the live blocks.
func (gd *Guards) index() {
	for _, b := range gd.graph.Blocks {
		if gd.idom[b.Index] == -1 {
			continue
		}
		for i, n := range b.Nodes {
			gd.spans = append(gd.spans, span{loc: location{block: b.Index, node: i}, pos: n.Pos(), end: n.End()})
		}
	}
}

// locate returns the innermost node enclosing pos.
func (gd *Guards) locate(pos token.Pos) (location, bool) {
	best := -1
	for i, s := range gd.spans {
		if s.pos > pos || pos >= s.end {
			continue
		}
		if best == -1 || s.end-s.pos < gd.spans[best].end-gd.spans[best].pos {
			best = i
		}
	}
	if best == -1 {
		return location{}, false
	}
	return gd.spans[best].loc, true
}

// scan records the assignments, the escaping variables, the comma-ok variables of type
// assertions, the cases of tag switches, and the facts of short-circuit operators.
func (gd *Guards) scan(body *ast.BlockStmt) {
	ast.Inspect(body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			gd.scanClosure(n.Body)
			return false
		case *ast.AssignStmt:
			for _, lhs := range n.Lhs {
				gd.assigned(lhs, n)
			}
			gd.commaOk(n)
		case *ast.RangeStmt:
			for _, x := range [...]ast.Expr{n.Key, n.Value} {
				if x != nil {
					gd.assigned(x, n)
				}
			}
		case *ast.IncDecStmt:
			gd.assigned(n.X, n)
		case *ast.CallExpr:
			if hook.ReplaceConditional(gd.info, n) != nil {
				for _, arg := range n.Args {
					if u, ok := arg.(*ast.UnaryExpr); ok && u.Op == token.AND {
						gd.addrArgs[u] = true
					}
				}
			}
		case *ast.UnaryExpr:
			if n.Op == token.AND && !gd.addrArgs[n] {
				if k, ok := gd.key(n.X); ok {
					gd.escaped[k.root] = true
				}
			}
		case *ast.BinaryExpr:
			var checks []keyedCheck
			switch n.Op {
			case token.LAND:
				checks, _ = gd.implied(n.X)
			case token.LOR:
				_, checks = gd.implied(n.X)
			}
			for _, c := range checks {
				gd.facts = append(gd.facts, fact{keyedCheck: c, kind: regionSpan, from: n.Y.Pos(), to: n.Y.End()})
			}
		case *ast.SwitchStmt:
			if n.Tag != nil {
				for _, clause := range n.Body.List {
					for _, expr := range clause.(*ast.CaseClause).List {
						gd.caseTags[expr] = n.Tag
					}
				}
			}
		}
		return true
	})
}

// scanClosure marks the variables assigned or address-taken in a function literal as escaped:
// the literal may run at any point.
func (gd *Guards) scanClosure(body *ast.BlockStmt) {
	ast.Inspect(body, func(n ast.Node) bool {
		var targets []ast.Expr
		switch n := n.(type) {
		case *ast.AssignStmt:
			targets = n.Lhs
		case *ast.RangeStmt:
			targets = []ast.Expr{n.Key, n.Value}
		case *ast.IncDecStmt:
			targets = []ast.Expr{n.X}
		case *ast.UnaryExpr:
			if n.Op == token.AND {
				targets = []ast.Expr{n.X}
			}
		}
		for _, t := range targets {
			if t == nil {
				continue
			}
			if k, ok := gd.key(t); ok {
				gd.escaped[k.root] = true
			}
		}
		return true
	})
}

func (gd *Guards) assigned(lhs ast.Expr, stmt ast.Stmt) {
	k, ok := gd.key(lhs)
	if !ok {
		return
	}
	loc, ok := gd.locate(stmt.Pos())
	if !ok {
		return
	}
	gd.assigns[k.root] = append(gd.assigns[k.root], assignment{path: k.path, loc: loc})
}

// commaOk records `v, ok := x.(*T)`: ok implies v is not nil.
func (gd *Guards) commaOk(n *ast.AssignStmt) {
	if len(n.Lhs) != 2 || len(n.Rhs) != 1 {
		return
	}
	assert, isAssert := ast.Unparen(n.Rhs[0]).(*ast.TypeAssertExpr)
	if !isAssert || assert.Type == nil {
		return
	}
	ident, ok := n.Lhs[1].(*ast.Ident)
	if !ok {
		return
	}
	obj := gd.info.ObjectOf(ident)
	if obj == nil {
		return
	}
	if k, ok := gd.key(n.Lhs[0]); ok {
		gd.okVars[obj] = k
	}
}

// conditionFacts derives the facts of the blocks ending in a condition.
func (gd *Guards) conditionFacts() {
	for _, b := range gd.graph.Blocks {
		if gd.idom[b.Index] == -1 || len(b.Succs) != 2 || len(b.Nodes) == 0 {
			continue
		}
		cond, ok := b.Nodes[len(b.Nodes)-1].(ast.Expr)
		if !ok {
			continue
		}
		var onTrue, onFalse []keyedCheck
		if tag, ok := gd.caseTags[cond]; ok {
			// `case nil:` of a tag switch.
			if gd.isNil(cond) {
				if k, ok := gd.key(tag); ok {
					onFalse = []keyedCheck{{key: k, check: cond}}
				}
			}
		} else {
			onTrue, onFalse = gd.implied(cond)
		}
		gd.branch(b, b.Succs[0], onTrue)
		gd.branch(b, b.Succs[1], onFalse)
	}
}

// splitFacts derives the facts of assertion calls like `require.NotNil(t, x)`.
func (gd *Guards) splitFacts() {
	for _, b := range gd.graph.Blocks {
		if gd.idom[b.Index] == -1 {
			continue
		}
		for i, n := range b.Nodes {
			stmt, ok := n.(*ast.ExprStmt)
			if !ok {
				continue
			}
			call, ok := ast.Unparen(stmt.X).(*ast.CallExpr)
			if !ok {
				continue
			}
			check := hook.SplitBlockOn(gd.info, call)
			if check == nil {
				continue
			}
			onTrue, _ := gd.implied(check)
			for _, c := range onTrue {
				gd.facts = append(gd.facts, fact{keyedCheck: c, kind: regionSplit, head: location{block: b.Index, node: i}})
			}
		}
	}
}

// branch records the checks holding on the edge from a condition block to a successor.
func (gd *Guards) branch(from, to *cfg.Block, checks []keyedCheck) {
	if len(checks) == 0 || from.Succs[0] == from.Succs[1] {
		return
	}
	for _, p := range gd.preds[to.Index] {
		if p != from.Index && !gd.noReturn(gd.graph.Blocks[p]) {
			return
		}
	}
	for _, c := range checks {
		gd.facts = append(gd.facts, fact{keyedCheck: c, kind: regionDominated, head: location{block: to.Index, node: -1}})
	}
}

// noReturn returns true iff the block ends in a call that never returns but is not known as such
// to the control flow graph.
func (gd *Guards) noReturn(b *cfg.Block) bool {
	if len(b.Nodes) == 0 {
		return false
	}
	stmt, ok := b.Nodes[len(b.Nodes)-1].(*ast.ExprStmt)
	if !ok {
		return false
	}
	call, ok := ast.Unparen(stmt.X).(*ast.CallExpr)
	return ok && hook.IsNoReturnCall(gd.info, call)
}

// implied returns the non-nil values implied by a condition being true and being false.
func (gd *Guards) implied(e ast.Expr) (onTrue, onFalse []keyedCheck) {
	switch e := ast.Unparen(e).(type) {
	case *ast.BinaryExpr:
		switch e.Op {
		case token.EQL, token.NEQ:
			var x ast.Expr
			switch {
			case gd.isNil(e.Y):
				x = e.X
			case gd.isNil(e.X):
				x = e.Y
			}
			k, ok := gd.key(x)
			if x == nil {
				// len(x) != 0 and len(x) == 0.
				if k, ok = gd.lenOperand(e.X, e.Y); !ok {
					k, ok = gd.lenOperand(e.Y, e.X)
				}
			}
			if !ok {
				return nil, nil
			}
			if e.Op == token.NEQ {
				return []keyedCheck{{key: k, check: e}}, nil
			}
			return nil, []keyedCheck{{key: k, check: e}}
		case token.GTR, token.LSS:
			// len(x) > 0 and 0 < len(x).
			x, ok := gd.lenOperand(e.X, e.Y)
			if e.Op == token.LSS {
				x, ok = gd.lenOperand(e.Y, e.X)
			}
			if !ok {
				return nil, nil
			}
			return []keyedCheck{{key: x, check: e}}, nil
		case token.LAND:
			t1, f1 := gd.implied(e.X)
			t2, f2 := gd.implied(e.Y)
			return append(t1, t2...), intersect(f1, f2)
		case token.LOR:
			t1, f1 := gd.implied(e.X)
			t2, f2 := gd.implied(e.Y)
			return intersect(t1, t2), append(f1, f2...)
		}
	case *ast.UnaryExpr:
		if e.Op == token.NOT {
			t, f := gd.implied(e.X)
			return f, t
		}
	case *ast.CallExpr:
		if check := hook.ReplaceConditional(gd.info, e); check != nil {
			return gd.implied(check)
		}
	case *ast.Ident:
		if k, ok := gd.okVars[gd.info.ObjectOf(e)]; ok {
			return []keyedCheck{{key: k, check: e}}, nil
		}
	}
	return nil, nil
}

// lenOperand returns the key of x when call is `len(x)` for a slice, map or channel x and zero
// is the constant 0: a nil value of those types has length 0.
func (gd *Guards) lenOperand(call, zero ast.Expr) (accessKey, bool) {
	c, ok := ast.Unparen(call).(*ast.CallExpr)
	if !ok || len(c.Args) != 1 || util.IsBuiltin(gd.info, c) != "len" || !util.IsZero(gd.info, zero) {
		return accessKey{}, false
	}
	switch gd.info.TypeOf(c.Args[0]).Underlying().(type) {
	case *types.Slice, *types.Map, *types.Chan:
		return gd.key(c.Args[0])
	}
	return accessKey{}, false
}

func intersect(a, b []keyedCheck) []keyedCheck {
	var result []keyedCheck
	for _, x := range a {
		for _, y := range b {
			if x.key == y.key {
				result = append(result, x)
				break
			}
		}
	}
	return result
}

// isNil returns true for the predeclared nil, including the identifiers synthesized by hooks.
func (gd *Guards) isNil(e ast.Expr) bool {
	if util.IsNil(gd.info, e) {
		return true
	}
	id, ok := ast.Unparen(e).(*ast.Ident)
	return ok && id.Name == "nil" && gd.info.Uses[id] == nil && gd.info.Defs[id] == nil
}

// key returns the access key of a variable or a chain of field selections on a variable.
func (gd *Guards) key(e ast.Expr) (accessKey, bool) {
	switch e := ast.Unparen(e).(type) {
	case *ast.Ident:
		v, ok := gd.info.ObjectOf(e).(*types.Var)
		if !ok || v.IsField() {
			return accessKey{}, false
		}
		return accessKey{root: v}, true
	case *ast.SelectorExpr:
		if sel, ok := gd.info.Selections[e]; ok {
			if sel.Kind() != types.FieldVal {
				return accessKey{}, false
			}
			base, ok := gd.key(e.X)
			if !ok {
				return accessKey{}, false
			}
			return accessKey{root: base.root, path: base.path + "." + e.Sel.Name}, true
		}
		// Qualified identifier.
		if v, ok := gd.info.Uses[e.Sel].(*types.Var); ok {
			return accessKey{root: v}, true
		}
	}
	return accessKey{}, false
}

// holds returns true iff the fact holds at expr.
func (gd *Guards) holds(f *fact, expr ast.Expr) bool {
	if gd.escaped[f.key.root] {
		return false
	}
	if f.kind == regionSpan {
		return f.from <= expr.Pos() && expr.End() <= f.to
	}
	loc, ok := gd.locate(expr.Pos())
	if !ok || !gd.inRegion(f, loc) {
		return false
	}
	for _, a := range gd.assigns[f.key.root] {
		if a.path != f.key.path && !strings.HasPrefix(f.key.path, a.path+".") {
			continue
		}
		if gd.inRegion(f, a.loc) && gd.reaches(f, a.loc, loc) {
			return false
		}
	}
	return true
}

func (gd *Guards) inRegion(f *fact, loc location) bool {
	if f.kind == regionSplit && loc.block == f.head.block {
		return loc.node > f.head.node
	}
	return gd.dominates(f.head.block, loc.block)
}

// reaches returns true iff there is a path from one location to another that stays within the
// region of the fact. Paths entering the region anew pass the check again and are not followed.
func (gd *Guards) reaches(f *fact, from, to location) bool {
	if from.block == to.block && from.node < to.node {
		return true
	}
	within := func(b int32) bool {
		if f.kind == regionSplit && b == f.head.block {
			return false
		}
		return gd.dominates(f.head.block, b)
	}
	seen := make(map[int32]bool)
	queue := []int32{from.block}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, s := range gd.graph.Blocks[b].Succs {
			if seen[s.Index] || !within(s.Index) {
				continue
			}
			if s.Index == to.block {
				return true
			}
			seen[s.Index] = true
			queue = append(queue, s.Index)
		}
	}
	return false
}
