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

// Package accumulation coordinates the entire workflow: it reads the configuration, the nolint
// ranges, the annotations and the facts of the upstream packages, runs inference over the package
// and returns the verdicts together with the diagnostics for upper-level analyzers to report.
package accumulation

import (
	"errors"
	"fmt"
	"go/ast"
	"reflect"
	"runtime/debug"
	"sync"

	"go.uber.org/nilinfer/annotation"
	"go.uber.org/nilinfer/config"
	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/diagnostic"
	"go.uber.org/nilinfer/evidence"
	"go.uber.org/nilinfer/hook"
	"go.uber.org/nilinfer/inference"
	"go.uber.org/nilinfer/util/analysishelper"
	"go.uber.org/nilinfer/util/asthelper"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/ctrlflow"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

const _doc = "Read the configuration, the annotations of this package and the verdicts of upstream" +
	" packages as Facts, infer the nilability of every type position of this package, and return" +
	" the verdicts with the diagnostics a later analyzer will report"

// Analyzer here is the accumulator that runs inference over the package.
var Analyzer = &analysis.Analyzer{
	Name: "nilinfer_accumulation_analyzer",
	Doc:  _doc,
	Run:  run,
	FactTypes: []analysis.Fact{
		new(inference.Facts),
	},
	Requires: []*analysis.Analyzer{
		config.Analyzer, diagnostic.NoLintAnalyzer, ctrlflow.Analyzer, inspect.Analyzer,
	},
	ResultType: reflect.TypeOf((*Result)(nil)),
}

// Result is the result of the accumulation analyzer. Inference is nil for packages out of scope
// and for runs that failed; the failure is then reported through Diagnostics.
type Result struct {
	*Inference
	Diagnostics []analysis.Diagnostic
}

// run is the primary driver function for nilinfer's analysis.
//
// Sources of annotations are consulted in a fixed order, the first known answer winning:
// comments in the package itself, the annotation bundle, the built-in hooks for library functions
// and finally the verdicts exported by upstream packages.
//
// Lastly, we export the verdicts of the exported positions of this package for use by downstream
// packages.
func run(pass *analysis.Pass) (result any, _ error) {
	// As a last resort, we recover from a panic when running the analyzer, convert the panic to
	// a diagnostic and return.
	defer func() {
		if r := recover(); r != nil {
			// Diagnostics with invalid positions (<= 0) will be silently suppressed, so here we use 1.
			d := analysis.Diagnostic{Pos: 1, Message: fmt.Sprintf("INTERNAL PANIC: %s\n%s", r, string(debug.Stack()))}
			result = &Result{Diagnostics: []analysis.Diagnostic{d}}
		}
	}()

	conf := pass.ResultOf[config.Analyzer].(*config.Config)
	if !conf.IsPkgInScope(pass.Pkg) {
		return &Result{}, nil
	}

	noLint := pass.ResultOf[diagnostic.NoLintAnalyzer].(*analysishelper.Result[[]diagnostic.Range])
	bundle, bundleErr := loadBundle(conf.AnnotationsPath)

	// For now, if there are any errors in the sub-analyzers, we directly emit diagnostics on the
	// errors.
	if errs := errors.Join(noLint.Err, bundleErr); errs != nil {
		return &Result{Diagnostics: errorsToDiagnostics(errs)}, nil
	}

	var files []*ast.File
	for _, file := range pass.Files {
		if conf.IsFileInScope(file) {
			files = append(files, file)
		}
	}

	opts := evidence.Options{
		Sources: annotation.Sources{
			{Oracle: annotation.ParseComments(pass.TypesInfo, files), Cause: constraint.CauseInSourceAnnotation},
			{Oracle: bundle, Cause: constraint.CauseExternalAnnotation},
			{Oracle: hook.AssumeReturn, Cause: constraint.CauseExternalAnnotation},
			{Oracle: inference.ImportUpstream(pass), Cause: constraint.CauseUpstream},
		},
		PinsOnly: pinsOnly(files),
	}
	if conf.SmartCasts {
		opts.Guards = guards(pass, files)
	}

	inf, err := Infer(pass.Fset, pass.Pkg, pass.TypesInfo, files, opts)
	if err != nil {
		return &Result{Diagnostics: errorsToDiagnostics(err)}, nil
	}

	engine := diagnostic.NewEngine(pass.Fset, pass.Pkg, inf.Table, inf.Verdicts)
	if err := engine.Collect(); err != nil {
		return &Result{Diagnostics: errorsToDiagnostics(err)}, nil
	}

	// Export the verdicts of the exported positions via the Fact mechanism (which [uses gob
	// encoding under the hood]). Note that we should _never_ export nil maps / pointers due to
	// [gob encoding]: "Nil pointers are not permitted, as they have no value.".
	//
	// [uses gob encoding under the hood]: https://pkg.go.dev/golang.org/x/tools/go/analysis#hdr-Modular_analysis_with_Facts
	// [gob encoding]: https://pkg.go.dev/encoding/gob#hdr-Basics
	inference.NewFacts(pass.Pkg, inf.Table, inf.Verdicts).Export(pass)

	return &Result{
		Inference:   inf,
		Diagnostics: engine.Diagnostics(conf.GroupErrorMessages, noLint.Res),
	}, nil
}

// pinsOnly returns true iff the package doc of one of the files opts out of inference.
func pinsOnly(files []*ast.File) bool {
	for _, file := range files {
		if asthelper.DocContains(file.Doc, config.NilInferNoInferString) {
			return true
		}
	}
	return false
}

// guards builds the guard oracles of the function declarations and literals of the files from
// the control flow graphs computed by ctrlflow.
func guards(pass *analysis.Pass, files []*ast.File) func(ast.Node) evidence.GuardOracle {
	cfgs := pass.ResultOf[ctrlflow.Analyzer].(*ctrlflow.CFGs)
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	inScope := make(map[*ast.File]bool, len(files))
	for _, file := range files {
		inScope[file] = true
	}

	oracles := make(map[ast.Node]evidence.GuardOracle)
	nodeFilter := []ast.Node{(*ast.File)(nil), (*ast.FuncDecl)(nil), (*ast.FuncLit)(nil)}
	insp.Nodes(nodeFilter, func(n ast.Node, push bool) bool {
		if !push {
			return true
		}
		switch n := n.(type) {
		case *ast.File:
			return inScope[n]
		case *ast.FuncDecl:
			if n.Body != nil {
				if g := cfgs.FuncDecl(n); g != nil {
					oracles[n] = evidence.NewGuards(pass.TypesInfo, n.Body, g)
				}
			}
		case *ast.FuncLit:
			if g := cfgs.FuncLit(n); g != nil {
				oracles[n] = evidence.NewGuards(pass.TypesInfo, n.Body, g)
			}
		}
		return true
	})

	return func(fn ast.Node) evidence.GuardOracle {
		// A missing entry must stay an untyped nil interface.
		if g, ok := oracles[fn]; ok {
			return g
		}
		return nil
	}
}

var _bundles sync.Map // path -> bundleEntry

type bundleEntry struct {
	bundle *annotation.Bundle
	err    error
}

// loadBundle returns the embedded bundle merged with the one at path, if any. Bundles are read
// once per process.
func loadBundle(path string) (*annotation.Bundle, error) {
	if v, ok := _bundles.Load(path); ok {
		e := v.(bundleEntry)
		return e.bundle, e.err
	}

	bundle, err := annotation.DefaultBundle()
	if err == nil && path != "" {
		var user *annotation.Bundle
		if user, err = annotation.LoadBundle(path); err == nil {
			bundle = bundle.Merge(user)
		}
	}
	if err != nil {
		err = fmt.Errorf("loading annotations: %w", err)
	}
	v, _ := _bundles.LoadOrStore(path, bundleEntry{bundle: bundle, err: err})
	e := v.(bundleEntry)
	return e.bundle, e.err
}

// errorsToDiagnostics converts internal errors to diagnostics to be reported. Joined errors are
// reported one by one.
func errorsToDiagnostics(err error) []analysis.Diagnostic {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	diagnostics := make([]analysis.Diagnostic, len(errs))
	for i, err := range errs {
		// Diagnostics with invalid positions (<= 0) will be silently suppressed, so here we use 1.
		diagnostics[i] = analysis.Diagnostic{Pos: 1, Message: "INTERNAL ERROR: " + err.Error()}
	}
	return diagnostics
}
