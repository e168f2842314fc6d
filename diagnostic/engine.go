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

// Package diagnostic hosts the diagnostic engine, which turns the verdicts of a package into
// user-friendly diagnostics: nilable values reaching dereferences, annotations contradicting the
// inferred evidence, and types that are not inferred.
package diagnostic

import (
	"cmp"
	"fmt"
	"go/token"
	"go/types"
	"slices"

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/inference"
	"go.uber.org/nilinfer/position"
	"go.uber.org/nilinfer/util/tokenhelper"
	"golang.org/x/tools/go/analysis"
)

// Engine is the main engine for generating diagnostics from verdicts.
type Engine struct {
	fset      *token.FileSet
	pkg       *types.Package
	table     *position.Table
	verdicts  *inference.Verdicts
	conflicts []conflict
}

// NewEngine creates a new diagnostic engine.
func NewEngine(fset *token.FileSet, pkg *types.Package, table *position.Table, verdicts *inference.Verdicts) *Engine {
	return &Engine{fset: fset, pkg: pkg, table: table, verdicts: verdicts}
}

// Collect walks the positions in ID order and records one conflict per conflicting class and one
// per opaque position of the package.
func (e *Engine) Collect() error {
	seen := make(map[position.ID]bool)
	for _, p := range e.table.All() {
		opaque, err := e.verdicts.Opaque(p.ID)
		if err != nil {
			return err
		}
		if opaque && !p.External && p.Hint == position.HintOpaque {
			e.addOpaque(p)
		}

		rep, err := e.verdicts.Representative(p.ID)
		if err != nil {
			return err
		}
		if seen[rep] {
			continue
		}
		seen[rep] = true
		conflicted, err := e.verdicts.Conflicted(p.ID)
		if err != nil {
			return err
		}
		if !conflicted {
			continue
		}
		if err := e.addConflict(p); err != nil {
			return fmt.Errorf("class of %s: %w", e.describe(p.ID), err)
		}
	}
	return nil
}

// Diagnostics returns the diagnostics of the collected conflicts outside of the nolint ranges,
// sorted by file names and then offsets in the file. With grouping, conflicts with the same nil
// source are reported once.
func (e *Engine) Diagnostics(grouping bool, noLint []Range) []analysis.Diagnostic {
	slices.SortStableFunc(e.conflicts, func(a, b conflict) int {
		return cmp.Or(
			cmp.Compare(a.position.Filename, b.position.Filename),
			cmp.Compare(a.position.Offset, b.position.Offset),
		)
	})

	var conflicts []conflict
	for _, c := range e.conflicts {
		if !suppressed(c.position, noLint) {
			conflicts = append(conflicts, c)
		}
	}
	if grouping {
		conflicts = groupConflicts(conflicts)
	}

	diagnostics := make([]analysis.Diagnostic, 0, len(conflicts))
	for _, c := range conflicts {
		diagnostics = append(diagnostics, analysis.Diagnostic{
			Pos:     c.pos,
			Message: c.String(),
		})
	}
	return diagnostics
}

func (e *Engine) addOpaque(p *position.Position) {
	if !p.Pos.IsValid() {
		return
	}
	c := conflict{
		kind:    kindOpaque,
		pos:     p.Pos,
		subject: e.describe(p.ID),
		detail:  types.TypeString(p.Type, types.RelativeTo(e.pkg)),
	}
	c.position = e.resolve(c.pos)
	for _, existing := range e.conflicts {
		if existing.kind == kindOpaque && existing.pos == c.pos && existing.detail == c.detail {
			return
		}
	}
	e.conflicts = append(e.conflicts, c)
}

// addConflict records the conflict of the class of p. A class whose causes include an annotation
// is reported as a contradiction of that annotation.
func (e *Engine) addConflict(p *position.Position) error {
	causes, err := e.verdicts.Explain(p.ID)
	if err != nil {
		return err
	}

	var annotated, nonnil *constraint.Cause
	for i := range causes {
		c := &causes[i]
		switch {
		case annotated == nil && isAnnotation(c.Kind):
			annotated = c
		case nonnil == nil && c.Value == constraint.NotNull && c.Pos.IsValid():
			nonnil = c
		}
	}

	flow, err := e.nilPath(p.ID)
	if err != nil {
		return err
	}
	c := conflict{kind: kindConflict, subject: e.describe(p.ID)}
	if annotated != nil {
		c.kind = kindContradiction
		c.detail = fmt.Sprintf("is annotated %s by %s", annotated.Value, annotated.Kind)
		// Report where the evidence disagreeing with the annotation was found.
		for i := range causes {
			if causes[i].Value != annotated.Value && causes[i].Value != constraint.Unknown && causes[i].Pos.IsValid() {
				c.pos = causes[i].Pos
				break
			}
		}
		if annotated.Value == constraint.Nullable {
			// The nil path already explains the annotation.
			flow.nilPath = nil
			flow.addNilPathNode(newNode(e.fset, *annotated))
		}
	} else if nonnil != nil {
		c.pos = nonnil.Pos
	}
	for _, cause := range causes {
		if cause.Value == constraint.NotNull {
			flow.addNonNilPathNode(newNode(e.fset, cause))
		}
	}
	c.flow = flow

	if !c.pos.IsValid() && annotated != nil {
		c.pos = annotated.Pos
	}
	if !c.pos.IsValid() {
		c.pos = p.Pos
	}
	if !c.pos.IsValid() {
		// Nothing in the package to attach the diagnostic to.
		return nil
	}
	c.position = e.resolve(c.pos)
	e.conflicts = append(e.conflicts, c)
	return nil
}

// nilPath follows the nilable causes back from the class of id to a cause that is not derived
// from a subtype, e.g. a nil literal.
func (e *Engine) nilPath(id position.ID) (nilFlow, error) {
	var flow nilFlow
	visited := make(map[position.ID]bool)
	for id != position.NoID {
		rep, err := e.verdicts.Representative(id)
		if err != nil {
			return flow, err
		}
		if visited[rep] {
			break
		}
		visited[rep] = true

		causes, err := e.verdicts.Explain(id)
		if err != nil {
			return flow, err
		}
		next := position.NoID
		for _, c := range causes {
			if c.Value == constraint.Nullable {
				flow.addNilPathNode(newNode(e.fset, c))
				next = c.From
				break
			}
		}
		id = next
	}
	return flow, nil
}

// describe renders a position for messages: the owner, the root name and the path below the
// root, e.g. "F.x [param0/elem]".
func (e *Engine) describe(id position.ID) string {
	p := e.table.At(id)
	root := e.table.At(p.Root)
	name := root.Name
	if root.Owner != "" {
		name = root.Owner + "." + name
	}
	return fmt.Sprintf("%s [%s]", name, e.table.Path(id))
}

func (e *Engine) resolve(pos token.Pos) token.Position {
	resolved := e.fset.Position(pos)
	resolved.Filename = tokenhelper.RelToCwd(resolved.Filename)
	return resolved
}

func isAnnotation(kind constraint.CauseKind) bool {
	switch kind {
	case constraint.CauseExternalAnnotation, constraint.CauseInSourceAnnotation, constraint.CauseUpstream:
		return true
	}
	return false
}
