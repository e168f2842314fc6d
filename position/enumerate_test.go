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
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type mapImporter map[string]*types.Package

func (m mapImporter) Import(path string) (*types.Package, error) {
	if path == "unsafe" {
		return types.Unsafe, nil
	}
	if pkg, ok := m[path]; ok {
		return pkg, nil
	}
	return nil, fmt.Errorf("package %q not found", path)
}

type checked struct {
	fset  *token.FileSet
	pkg   *types.Package
	info  *types.Info
	files []*ast.File
}

func check(t *testing.T, fset *token.FileSet, path, src string, imp types.Importer) *checked {
	t.Helper()
	file, err := parser.ParseFile(fset, path+".go", src, parser.ParseComments)
	require.NoError(t, err)
	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
		Instances:  make(map[*ast.Ident]types.Instance),
	}
	conf := types.Config{Importer: imp}
	pkg, err := conf.Check(path, fset, []*ast.File{file}, info)
	require.NoError(t, err)
	return &checked{fset: fset, pkg: pkg, info: info, files: []*ast.File{file}}
}

func enumerate(t *testing.T, src string) (*checked, *Table) {
	t.Helper()
	c := check(t, token.NewFileSet(), "p", src, mapImporter{})
	return c, Enumerate(c.fset, c.pkg, c.info, c.files)
}

// describe renders every position as "owner|root name|path|hint".
func describe(table *Table) []string {
	lines := make([]string, 0, table.Len())
	for _, p := range table.All() {
		lines = append(lines, fmt.Sprintf("%s|%s|%s|%s", p.Owner, table.At(p.Root).Name, table.Path(p.ID), p.Hint))
	}
	return lines
}

func TestEnumerate_Order(t *testing.T) {
	t.Parallel()

	src := `package p

var G *int

type T struct {
	F []*int
	n int
}

func (t *T) M(x map[string]*T) (error, func(*int) *int) {
	var l *int
	_ = l
	return nil, nil
}
`
	_, table := enumerate(t, src)
	want := []string{
		"|G|var|none",
		"|G|var/elem|primitive",
		"T|F|field|none",
		"T|F|field/elem|none",
		"T|F|field/elem/elem|primitive",
		"T|n|field|primitive",
		"T.M|t|recv|none",
		"T.M|t|recv/elem|primitive",
		"T.M|x|param0|none",
		"T.M|x|param0/arg0|primitive",
		"T.M|x|param0/arg1|none",
		"T.M|x|param0/arg1/elem|primitive",
		"T.M|#0|result0|none",
		"T.M|#1|result1|none",
		"T.M|#1|result1/param0|none",
		"T.M|#1|result1/param0/elem|primitive",
		"T.M|#1|result1/result0|none",
		"T.M|#1|result1/result0/elem|primitive",
		"T.M|l|local|none",
		"T.M|l|local/elem|primitive",
	}
	if diff := cmp.Diff(want, describe(table)); diff != "" {
		t.Errorf("unexpected positions (-want +got):\n%s", diff)
	}

	x := table.At(8)
	require.Equal(t, KindParameter, x.Kind)
	require.Equal(t, "p.T", x.Decl)
	require.Equal(t, "M", x.Member)
	require.True(t, x.IsRoot())
	require.Equal(t, ID(10), table.Child(8, KindTypeArg, 1))
	require.Equal(t, NoID, table.Child(8, KindElem, 0))
	require.Equal(t, NoID, table.Child(NoID, KindElem, 0))
	require.Equal(t, []ID{8, 9, 10, 11}, table.Descendants(8))
	require.Equal(t, []ID{9, 10}, x.Children)

	f := table.At(2)
	require.Equal(t, "p.T", f.Decl)
	require.Equal(t, "F", f.Member)
	require.Equal(t, "p", table.At(0).Decl)

	// Children keep pointing at the type syntax they are spelled by.
	star, ok := table.At(14).Node.(*ast.StarExpr)
	require.True(t, ok)
	require.Equal(t, table.At(14).Pos, star.Pos())
	require.False(t, table.At(14).IsRoot())
	require.Equal(t, ID(13), table.At(14).Root)
	require.Equal(t, ID(13), table.At(17).Root)

	require.Nil(t, table.At(NoID))
	require.Nil(t, table.At(ID(table.Len())))
}

func TestEnumerate_Deterministic(t *testing.T) {
	t.Parallel()

	src := `package p

type List[T any] struct {
	next *List[T]
	v    T
}

func f(xs []map[string][]*int, g func(func() error) []error) {
	for k, v := range xs {
		_, _ = k, v
	}
}
`
	c, first := enumerate(t, src)
	for i := 0; i < 5; i++ {
		again := Enumerate(c.fset, c.pkg, c.info, c.files)
		require.Equal(t, describe(first), describe(again))
	}
}

func TestEnumerate_External(t *testing.T) {
	t.Parallel()

	fset := token.NewFileSet()
	q := check(t, fset, "q", `package q

func Get() *int { return nil }

type S struct{ P *int }
`, mapImporter{})
	c := check(t, fset, "p", `package p

import "q"

func f(s q.S) *int {
	_ = q.Get()
	return s.P
}
`, mapImporter{"q": q.pkg})
	table := Enumerate(c.fset, c.pkg, c.info, c.files)

	want := []string{
		"f|s|param0|primitive",
		"f|#0|result0|none",
		"f|#0|result0/elem|primitive",
		"q.Get|#0|result0|none",
		"q.Get|#0|result0/elem|primitive",
		"q.S|P|field|none",
		"q.S|P|field/elem|primitive",
	}
	if diff := cmp.Diff(want, describe(table)); diff != "" {
		t.Errorf("unexpected positions (-want +got):\n%s", diff)
	}
	for id := ID(0); id < 3; id++ {
		require.False(t, table.At(id).External)
	}
	for id := ID(3); id < ID(table.Len()); id++ {
		require.True(t, table.At(id).External)
	}
	require.Equal(t, "q", table.At(3).Decl)
	require.Equal(t, "Get", table.At(3).Member)
	require.Equal(t, "q.S", table.At(5).Decl)
	require.Equal(t, "P", table.At(5).Member)

	get := q.pkg.Scope().Lookup("Get").(*types.Func)
	id, ok := table.OfObject(get.Type().(*types.Signature).Results().At(0))
	require.True(t, ok)
	require.Equal(t, ID(3), id)
}

func TestEnumerate_InterfaceMethods(t *testing.T) {
	t.Parallel()

	fset := token.NewFileSet()
	q := check(t, fset, "q", `package q

type R interface {
	Read(p []byte) (int, error)
}

type F struct{}

func (f *F) Close() error { return nil }
`, mapImporter{})
	c := check(t, fset, "p", `package p

import "q"

type I interface {
	M(x *int) error
}

func f(r q.R, fl *q.F) {
	_, _ = r.Read(nil)
	_ = fl.Close()
}
`, mapImporter{"q": q.pkg})
	table := Enumerate(c.fset, c.pkg, c.info, c.files)

	// Only the concrete method keeps a receiver position.
	want := []string{
		"I.M|x|param0|none",
		"I.M|x|param0/elem|primitive",
		"I.M|#0|result0|none",
		"f|r|param0|none",
		"f|fl|param1|none",
		"f|fl|param1/elem|primitive",
		"q.R.Read|p|param0|none",
		"q.R.Read|p|param0/elem|primitive",
		"q.R.Read|#0|result0|primitive",
		"q.R.Read|#1|result1|none",
		"q.F.Close|f|recv|none",
		"q.F.Close|f|recv/elem|primitive",
		"q.F.Close|#0|result0|none",
	}
	if diff := cmp.Diff(want, describe(table)); diff != "" {
		t.Errorf("unexpected positions (-want +got):\n%s", diff)
	}
}

func TestEnumerate_Expressions(t *testing.T) {
	t.Parallel()

	src := `package p

func f(x any) {
	_ = []*int{nil}
	_ = x.(*int)
	_ = x.(int)
	_ = []*int(nil)
}
`
	c, table := enumerate(t, src)
	want := []string{
		"f|x|param0|none",
		"f|@4:6|expr|none",
		"f|@4:6|expr/elem|none",
		"f|@4:6|expr/elem/elem|primitive",
		"f|@5:6|expr|none",
		"f|@5:6|expr/elem|primitive",
		"f|@7:6|expr|none",
		"f|@7:6|expr/elem|none",
		"f|@7:6|expr/elem/elem|primitive",
	}
	if diff := cmp.Diff(want, describe(table)); diff != "" {
		t.Errorf("unexpected positions (-want +got):\n%s", diff)
	}

	var lit *ast.CompositeLit
	ast.Inspect(c.files[0], func(n ast.Node) bool {
		if l, ok := n.(*ast.CompositeLit); ok {
			lit = l
		}
		return lit == nil
	})
	require.NotNil(t, lit)
	id, ok := table.OfNode(lit)
	require.True(t, ok)
	require.Equal(t, ID(1), id)
	require.Equal(t, KindExpr, table.At(id).Kind)
	require.Nil(t, table.At(id).Object)

	// The element slot is spelled by the *int of the literal type.
	_, ok = table.At(2).Node.(*ast.StarExpr)
	require.True(t, ok)
}

func TestEnumerate_Hints(t *testing.T) {
	t.Parallel()

	src := `package p

import "unsafe"

type Box[T any] struct{ V T }

var U unsafe.Pointer

var F = func(p *int) {}

func g(b Box[*int], a [2]*int) {}
`
	_, table := enumerate(t, src)
	want := []string{
		"Box|V|field|none",
		"|U|var|opaque",
		"|F|var|none",
		"|F|var/param0|none",
		"|F|var/param0/elem|primitive",
		"F$1|p|param0|none",
		"F$1|p|param0/elem|primitive",
		"g|b|param0|primitive",
		"g|b|param0/arg0|none",
		"g|b|param0/arg0/elem|primitive",
		"g|a|param1|primitive",
		"g|a|param1/elem|none",
		"g|a|param1/elem/elem|primitive",
	}
	if diff := cmp.Diff(want, describe(table)); diff != "" {
		t.Errorf("unexpected positions (-want +got):\n%s", diff)
	}
	require.False(t, table.At(1).Inferable())
	require.Empty(t, table.At(1).Children)
	require.True(t, table.At(0).Inferable())
	require.False(t, table.At(7).Inferable())
}

func TestEnumerate_Blank(t *testing.T) {
	t.Parallel()

	src := `package p

func f(xs []*int, x any) {
	for _, v := range xs {
		_ = v
	}
	w, _ := x.(*int)
	_ = w
}
`
	_, table := enumerate(t, src)
	want := []string{
		"f|xs|param0|none",
		"f|xs|param0/elem|none",
		"f|xs|param0/elem/elem|primitive",
		"f|x|param1|none",
		"f|v|local|none",
		"f|v|local/elem|primitive",
		"f|w|local|none",
		"f|w|local/elem|primitive",
		"f|@7:10|expr|none",
		"f|@7:10|expr/elem|primitive",
	}
	if diff := cmp.Diff(want, describe(table)); diff != "" {
		t.Errorf("unexpected positions (-want +got):\n%s", diff)
	}
}

func TestKind(t *testing.T) {
	t.Parallel()

	for k := KindLocal; k <= KindExpr; k++ {
		require.True(t, k.IsRoot(), k.String())
	}
	for k := KindTypeArg; k <= KindFuncReturn; k++ {
		require.False(t, k.IsRoot(), k.String())
	}
	require.Equal(t, "kind(42)", Kind(42).String())
	require.Equal(t, "hint(7)", Hint(7).String())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
