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
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/cfg"
)

// derefs returns the guard oracle of the named function and the operands of its selector
// expressions, in source order.
func (f *fixture) derefs(t *testing.T, name string) (*Guards, []ast.Expr) {
	t.Helper()

	for _, decl := range f.file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Name.Name != name {
			continue
		}
		var xs []ast.Expr
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			if _, ok := n.(*ast.FuncLit); ok {
				return false
			}
			if sel, ok := n.(*ast.SelectorExpr); ok {
				xs = append(xs, sel.X)
			}
			return true
		})
		return NewGuards(f.info, fn.Body, cfg.New(fn.Body, mayReturn)), xs
	}
	t.Fatalf("function %s not found", name)
	return nil, nil
}

func TestGuards(t *testing.T) {
	t.Parallel()

	f := load(t, `package p

type T struct {
	next *T
	v    int
}

func loop(t *T) {
	for t != nil {
		_ = t.v
		t = t.next
	}
}

func loopAfter(t *T) {
	for t != nil {
		t = t.next
		_ = t.v
	}
}

func fields(t *T) {
	if t != nil && t.next != nil {
		_ = t.next.v
	}
}

func escaped(t *T) {
	p := &t
	_ = p
	if t != nil {
		_ = t.v
	}
}

func closure(t *T) {
	reset := func() { t = nil }
	if t != nil {
		reset()
		_ = t.v
	}
}

func commaOk(x any) {
	if t, ok := x.(*T); ok {
		_ = t.v
	}
}

func tagSwitch(t *T) {
	switch t {
	case nil:
		return
	default:
		_ = t.v
	}
}

func noCheck(t *T) {
	if t.v > 0 {
		_ = t.v
	}
}

func merged(t *T, b bool) {
	if b || t != nil {
		_ = t.v
	}
}

func panics(t *T) {
	if t == nil {
		panic("nil")
	}
	_ = t.v
}
`)
	tests := []struct {
		name string
		want []bool
	}{
		// t.v, t.next
		{name: "loop", want: []bool{true, true}},
		// t.next, t.v
		{name: "loopAfter", want: []bool{true, false}},
		// t in the condition, then t.next and t in t.next.v
		{name: "fields", want: []bool{true, true, true}},
		{name: "escaped", want: []bool{false}},
		{name: "closure", want: []bool{false}},
		{name: "commaOk", want: []bool{true}},
		{name: "tagSwitch", want: []bool{true}},
		{name: "noCheck", want: []bool{false, false}},
		{name: "merged", want: []bool{false}},
		{name: "panics", want: []bool{true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g, xs := f.derefs(t, tt.name)
			got := make([]bool, len(xs))
			for i, x := range xs {
				got[i] = g.IsGuarded(x)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestGuards_IsGuardedBy(t *testing.T) {
	t.Parallel()

	f := load(t, `package p

type T struct{ v int }

func f(a, b *T) {
	if a != nil {
		if b != nil {
			_ = a.v + b.v
		}
	}
}
`)
	g, xs := f.derefs(t, "f")
	require.Len(t, xs, 2)

	var checks []ast.Expr
	ast.Inspect(f.file, func(n ast.Node) bool {
		if ifStmt, ok := n.(*ast.IfStmt); ok {
			checks = append(checks, ifStmt.Cond)
		}
		return true
	})
	require.Len(t, checks, 2)

	require.True(t, g.IsGuardedBy(checks[0], xs[0]))
	require.False(t, g.IsGuardedBy(checks[1], xs[0]))
	require.True(t, g.IsGuardedBy(checks[1], xs[1]))
	require.False(t, g.IsGuardedBy(checks[0], xs[1]))
}

func TestGuards_Len(t *testing.T) {
	t.Parallel()

	f := load(t, `package p

func f(s []int, m map[string]int, str string) {
	if len(s) > 0 {
		_ = s[0]
	}
	if 0 != len(s) {
		_ = s[0]
	}
	if len(s) == 0 {
		return
	}
	_ = s[0]
	if len(s) > 1 {
		m["k"] = s[0]
	}
}
`)
	var fn *ast.FuncDecl
	for _, decl := range f.file.Decls {
		if d, ok := decl.(*ast.FuncDecl); ok {
			fn = d
		}
	}
	require.NotNil(t, fn)
	g := NewGuards(f.info, fn.Body, cfg.New(fn.Body, mayReturn))

	var got []bool
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if ix, ok := n.(*ast.IndexExpr); ok {
			got = append(got, g.IsGuarded(ix.X))
		}
		return true
	})
	// The last index of s is guarded by the early return, len(s) > 1 proves nothing about m.
	require.Equal(t, []bool{true, true, true, false, true}, got)
}
