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

// Package nilinfertest implements the golden fixture driver: a fixture is a single Go file whose
// rendered verdicts (see package emit) are compared with a sibling golden file.
package nilinfertest

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/nilinfer/accumulation"
	"go.uber.org/nilinfer/annotation"
	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/emit"
	"go.uber.org/nilinfer/evidence"
	"go.uber.org/nilinfer/hook"
	"go.uber.org/nilinfer/position"
	"golang.org/x/tools/go/cfg"
)

// _update rewrites the golden files instead of comparing against them.
var _update = flag.Bool("update-golden", false, "rewrite the golden files of the fixtures")

const (
	_sourceExt = ".go"
	_goldenExt = ".golden"
)

// Fixture is a type-checked fixture file.
type Fixture struct {
	Name  string
	Fset  *token.FileSet
	Pkg   *types.Package
	Info  *types.Info
	Files []*ast.File
}

// Load parses and type-checks the fixture root/name/name.go.
func Load(root, name string) (*Fixture, error) {
	fset := token.NewFileSet()
	path := filepath.Join(root, name, name+_sourceExt)
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %q: %w", name, err)
	}
	files := []*ast.File{file}
	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
		Instances:  make(map[*ast.Ident]types.Instance),
		Scopes:     make(map[ast.Node]*types.Scope),
	}
	conf := &types.Config{Importer: importer.ForCompiler(fset, "source", nil)}
	pkg, err := conf.Check("fixtures/"+name, fset, files, info)
	if err != nil {
		return nil, fmt.Errorf("type-check fixture %q: %w", name, err)
	}
	return &Fixture{Name: name, Fset: fset, Pkg: pkg, Info: info, Files: files}, nil
}

// Infer runs inference over the fixture with the sources of annotations the analyzer uses for a
// package without dependencies: comments, the embedded bundle and the hooks.
func (f *Fixture) Infer() (*accumulation.Inference, error) {
	bundle, err := annotation.DefaultBundle()
	if err != nil {
		return nil, err
	}
	opts := evidence.Options{
		Sources: annotation.Sources{
			{Oracle: annotation.ParseComments(f.Info, f.Files), Cause: constraint.CauseInSourceAnnotation},
			{Oracle: bundle, Cause: constraint.CauseExternalAnnotation},
			{Oracle: hook.AssumeReturn, Cause: constraint.CauseExternalAnnotation},
		},
		Guards: f.guards,
	}
	return accumulation.Infer(f.Fset, f.Pkg, f.Info, f.Files, opts)
}

func (f *Fixture) guards(fn ast.Node) evidence.GuardOracle {
	switch fn := fn.(type) {
	case *ast.FuncDecl:
		if fn.Body != nil {
			return evidence.NewGuards(f.Info, fn.Body, cfg.New(fn.Body, mayReturn))
		}
	case *ast.FuncLit:
		return evidence.NewGuards(f.Info, fn.Body, cfg.New(fn.Body, mayReturn))
	}
	return nil
}

// mayReturn is the syntactic approximation of ctrlflow's no-return facts.
func mayReturn(call *ast.CallExpr) bool {
	id, ok := call.Fun.(*ast.Ident)
	return !ok || id.Name != "panic"
}

// Render returns the rendered verdicts of the fixture.
func (f *Fixture) Render(inf *accumulation.Inference) (string, error) {
	var buf bytes.Buffer
	if err := emit.NewRenderer(f.Pkg, inf.Table, inf.Verdicts).Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Diff returns the unified diff between the golden and the rendered verdicts, or "" if they are
// equal.
func Diff(name, want, got string) (string, error) {
	if want == got {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: name + _goldenExt,
		ToFile:   "rendered",
		Context:  2,
	})
}

// Run checks the fixture root/name against its golden file, and the inline expectations of its
// functions (see FindExpectedValues).
func Run(t testing.TB, root, name string) {
	t.Helper()

	f, err := Load(root, name)
	if err != nil {
		t.Fatal(err)
	}
	inf, err := f.Infer()
	if err != nil {
		t.Fatalf("infer fixture %q: %v", name, err)
	}
	got, err := f.Render(inf)
	if err != nil {
		t.Fatalf("render fixture %q: %v", name, err)
	}

	golden := filepath.Join(root, name, name+_goldenExt)
	if *_update {
		if err := os.WriteFile(golden, []byte(got), 0o644); err != nil {
			t.Fatalf("update golden of %q: %v", name, err)
		}
		return
	}
	want, err := os.ReadFile(golden)
	if err != nil {
		t.Fatalf("read golden of %q: %v", name, err)
	}
	diff, err := Diff(name, string(want), got)
	if err != nil {
		t.Fatalf("diff fixture %q: %v", name, err)
	}
	if diff != "" {
		t.Errorf("fixture %q does not match its golden file:\n%s", name, diff)
	}

	for label, want := range FindExpectedValues(f.Fset, f.Info, f.Files, _nilablePrefix) {
		got := NilableRoots(inf, label)
		if !slices.Equal(want, got) {
			t.Errorf("fixture %q: nilable positions of %s: want %v, got %v", name, label, want, got)
		}
	}
}

// NilableRoots returns the sorted names of the declared roots owned by label that are inferred
// nilable.
func NilableRoots(inf *accumulation.Inference, label string) []string {
	var names []string
	for _, p := range inf.Table.All() {
		if !p.IsRoot() || p.External || p.Owner != label || !p.Inferable() || p.Kind == position.KindExpr {
			continue
		}
		if v, err := inf.Verdicts.Verdict(p.ID); err == nil && v == constraint.Nullable {
			names = append(names, p.Name)
		}
	}
	slices.Sort(names)
	return names
}

// Fixtures returns the names of the fixture directories under root, sorted. A directory is a
// fixture iff it holds a source file of the same name.
func Fixtures(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	var errs error
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), e.Name()+_sourceExt)); err != nil {
			errs = errors.Join(errs, fmt.Errorf("fixture directory %q: %w", e.Name(), err))
			continue
		}
		names = append(names, e.Name())
	}
	return names, errs
}
