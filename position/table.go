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
	"go/ast"
	"go/types"
	"strings"
)

type childKey struct {
	parent ID
	kind   Kind
	index  int
}

// Table is the arena of positions of one inference run. Neither the AST nor the type checker
// objects own positions: both are only used as keys into the table.
type Table struct {
	positions []*Position
	objects   map[types.Object]ID
	nodes     map[ast.Node]ID
	children  map[childKey]ID
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		objects:  make(map[types.Object]ID),
		nodes:    make(map[ast.Node]ID),
		children: make(map[childKey]ID),
	}
}

// Len returns the number of positions.
func (t *Table) Len() int { return len(t.positions) }

// At returns the position with the given ID, or nil if there is none.
func (t *Table) At(id ID) *Position {
	if id < 0 || int(id) >= len(t.positions) {
		return nil
	}
	return t.positions[id]
}

// All returns the positions in ID order. The returned slice must not be modified.
func (t *Table) All() []*Position { return t.positions }

// OfObject returns the root position of a declared object. Instantiated generic objects are
// mapped to their origin.
func (t *Table) OfObject(obj types.Object) (ID, bool) {
	switch o := obj.(type) {
	case *types.Var:
		obj = o.Origin()
	case *types.Func:
		obj = o.Origin()
	}
	id, ok := t.objects[obj]
	return id, ok
}

// OfNode returns the root position derived from an expression (KindExpr).
func (t *Table) OfNode(n ast.Node) (ID, bool) {
	id, ok := t.nodes[n]
	return id, ok
}

// Child returns the child of a position with the given kind and index, or NoID.
func (t *Table) Child(id ID, kind Kind, index int) ID {
	if id == NoID {
		return NoID
	}
	if c, ok := t.children[childKey{parent: id, kind: kind, index: index}]; ok {
		return c
	}
	return NoID
}

// Path returns the slash separated path of a position below its root, starting with the root
// segment, e.g. "result0/elem".
func (t *Table) Path(id ID) string {
	var segments []string
	for p := t.At(id); p != nil; p = t.At(p.Parent) {
		segments = append(segments, p.segment())
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, "/")
}

// Descendants returns the position and all positions below it in pre-order.
func (t *Table) Descendants(id ID) []ID {
	p := t.At(id)
	if p == nil {
		return nil
	}
	ids := []ID{id}
	for _, c := range p.Children {
		ids = append(ids, t.Descendants(c)...)
	}
	return ids
}

// add appends p to the arena and assigns its ID.
func (t *Table) add(p *Position) ID {
	p.ID = ID(len(t.positions))
	if p.Parent == NoID {
		p.Root = p.ID
	}
	t.positions = append(t.positions, p)
	return p.ID
}
