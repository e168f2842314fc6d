//  Copyright (c) 2024 Uber Technologies, Inc.
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

package hook

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/nilinfer/constraint"
)

// _deps are minimal stand-ins of the packages whose functions are hooked.
var _deps = []struct{ path, src string }{
	{"errors", `package errors
func New(s string) error { return nil }
func As(err error, target any) bool { return false }
`},
	{"testing", `package testing
type T struct{}
func (t *T) Fatal(args ...any) {}
func (t *T) Log(args ...any) {}
`},
	{"github.com/stretchr/testify/require", `package require
type TestingT interface{ Errorf(format string, args ...any) }
func NotNil(t TestingT, object any, msgAndArgs ...any) {}
func Nil(t TestingT, object any, msgAndArgs ...any) {}
func Equal(t TestingT, expected, actual any, msgAndArgs ...any) {}
type Assertions struct{}
func (a *Assertions) NotNil(object any, msgAndArgs ...any) {}
`},
}

type mapImporter map[string]*types.Package

func (m mapImporter) Import(path string) (*types.Package, error) {
	if pkg, ok := m[path]; ok {
		return pkg, nil
	}
	return nil, fmt.Errorf("unknown package %q", path)
}

// calls type checks src against the stand-in packages and returns its call expressions in
// source order.
func calls(t *testing.T, src string) (*types.Info, []*ast.CallExpr) {
	t.Helper()

	fset := token.NewFileSet()
	imp := make(mapImporter)
	for _, dep := range _deps {
		file, err := parser.ParseFile(fset, dep.path+".go", dep.src, 0)
		require.NoError(t, err)
		pkg, err := (&types.Config{Importer: imp}).Check(dep.path, fset, []*ast.File{file}, nil)
		require.NoError(t, err)
		imp[dep.path] = pkg
	}

	file, err := parser.ParseFile(fset, "p.go", src, 0)
	require.NoError(t, err)
	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Uses:       make(map[*ast.Ident]types.Object),
		Defs:       make(map[*ast.Ident]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
	_, err = (&types.Config{Importer: imp}).Check("p", fset, []*ast.File{file}, info)
	require.NoError(t, err)

	var result []*ast.CallExpr
	ast.Inspect(file, func(n ast.Node) bool {
		if call, ok := n.(*ast.CallExpr); ok {
			result = append(result, call)
		}
		return true
	})
	return info, result
}

func render(e ast.Expr) string {
	b, ok := e.(*ast.BinaryExpr)
	if !ok {
		return fmt.Sprintf("%T", e)
	}
	return fmt.Sprintf("%s %s %s", b.X.(*ast.Ident).Name, b.Op, b.Y.(*ast.Ident).Name)
}

func TestSplitBlockOn(t *testing.T) {
	t.Parallel()

	info, cs := calls(t, `package p

import "github.com/stretchr/testify/require"

func f(t require.TestingT, a *require.Assertions, x, y, z *int) {
	require.NotNil(t, x)
	require.Nil(t, y)
	a.NotNil(z)
	require.Equal(t, x, y)
}
`)
	require.Len(t, cs, 4)
	require.Equal(t, "x != nil", render(SplitBlockOn(info, cs[0])))
	require.Equal(t, "y == nil", render(SplitBlockOn(info, cs[1])))
	require.Equal(t, "z != nil", render(SplitBlockOn(info, cs[2])))
	require.Nil(t, SplitBlockOn(info, cs[3]))
}

func TestReplaceConditional(t *testing.T) {
	t.Parallel()

	info, cs := calls(t, `package p

import "errors"

type E struct{}

func (*E) Error() string { return "" }

func f(err error) {
	var target *E
	_ = errors.As(err, &target)
	_ = errors.As(err, target)
	_ = errors.New("x")
}
`)
	require.Len(t, cs, 3)
	require.Equal(t, "target != nil", render(ReplaceConditional(info, cs[0])))
	require.Nil(t, ReplaceConditional(info, cs[1]), "the target must be passed by address")
	require.Nil(t, ReplaceConditional(info, cs[2]))
}

func TestIsNoReturnCall(t *testing.T) {
	t.Parallel()

	info, cs := calls(t, `package p

import "testing"

func f(t *testing.T) {
	t.Log("x")
	t.Fatal("x")
}
`)
	require.Len(t, cs, 2)
	require.False(t, IsNoReturnCall(info, cs[0]))
	require.True(t, IsNoReturnCall(info, cs[1]))
}

func TestAssumeReturn(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		decl, member, path string
		want               constraint.Value
	}{
		{"errors", "New", "result0", constraint.NotNull},
		{"errors", "New", "param0", constraint.Unknown},
		{"fmt", "Errorf", "result0", constraint.NotNull},
		{"context", "TODO", "result0", constraint.NotNull},
		{"github.com/pkg/errors", "Errorf", "result0", constraint.NotNull},
		{"stubs/github.com/pkg/errors", "New", "result0", constraint.NotNull},
		{"errors", "Unwrap", "result0", constraint.Unknown},
		{"example.com/errors", "New", "result0", constraint.Unknown},
	} {
		require.Equal(t, tt.want, AssumeReturn.Lookup(tt.decl, tt.member, tt.path), "%s.%s %s", tt.decl, tt.member, tt.path)
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
