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

package emit

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/nilinfer/accumulation"
	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/evidence"
	"go.uber.org/nilinfer/position"
)

const _src = `package p

type Box[T any] struct{ V T }

func Get() *int { return nil }

func Keep(x *int) *int { return x }

func Make() Box[*int] { return Box[*int]{V: nil} }

var Fs []func(*int) error

func Use(m map[string]*int, ch <-chan []*int) {
	m["k"] = nil
}
`

func infer(t *testing.T, src string) (*types.Package, *accumulation.Inference) {
	t.Helper()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	require.NoError(t, err)
	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
		Instances:  make(map[*ast.Ident]types.Instance),
	}
	pkg, err := (&types.Config{}).Check("example.com/p", fset, []*ast.File{file}, info)
	require.NoError(t, err)
	inf, err := accumulation.Infer(fset, pkg, info, []*ast.File{file}, evidence.Options{})
	require.NoError(t, err)
	return pkg, inf
}

func TestRender(t *testing.T) {
	t.Parallel()

	pkg, inf := infer(t, _src)
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(pkg, inf.Table, inf.Verdicts).Render(&buf))

	want := []string{
		"Box: field V ?T",
		"Get: result #0 ?*int",
		"Keep: param x *int",
		"Keep: result #0 *int",
		"Make: result #0 Box[?*int]",
		"p: var Fs ?[]func(*int) error",
		"Use: param m map[string]?*int",
		"Use: param ch <-chan []*int",
	}
	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected rendering (-want +got):\n%s", diff)
	}
}

func TestType(t *testing.T) {
	t.Parallel()

	pkg, inf := infer(t, _src)
	r := NewRenderer(pkg, inf.Table, inf.Verdicts)

	var get position.ID = position.NoID
	for _, p := range inf.Table.All() {
		if p.Owner == "Get" && p.Kind == position.KindReturn {
			get = p.ID
		}
	}
	require.NotEqual(t, position.NoID, get)

	typ, err := r.Type(get)
	require.NoError(t, err)
	require.Equal(t, "?*int", typ)

	// The slot below the pointer is an int, which is never marked.
	typ, err = r.Type(inf.Table.Child(get, position.KindElem, 0))
	require.NoError(t, err)
	require.Equal(t, "int", typ)

	_, err = r.Type(position.ID(inf.Table.Len()))
	require.ErrorIs(t, err, constraint.ErrUnknownPosition)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
