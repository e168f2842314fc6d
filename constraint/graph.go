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

package constraint

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/nilinfer/position"
)

var (
	// ErrSealed is returned by every mutation of a sealed graph. It signals a programming error in
	// the caller: evidence must be complete before solving starts.
	ErrSealed = errors.New("constraint graph is sealed")
	// ErrUnknownPosition is returned when an operation references a position that was never
	// added to the graph.
	ErrUnknownPosition = errors.New("unknown position")
	// ErrInvalidPin is returned when a position is pinned to a value other than Nullable or
	// NotNull.
	ErrInvalidPin = errors.New("invalid pin")
)

// Edge is one end of an equality or subtype constraint.
type Edge struct {
	To    position.ID
	Cause Cause
}

type cell struct {
	value  Value
	causes []Cause
}

// Graph is the constraint graph of one inference run. Cells are indexed by position ID: the graph
// must receive the positions of a table in ID order.
type Graph struct {
	cells      []cell
	equalities [][]Edge
	// superOf[sub] lists the supertypes of sub.
	superOf [][]Edge
	sealed  bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Len returns the number of positions of the graph.
func (g *Graph) Len() int { return len(g.cells) }

// Sealed returns true once Seal has been called.
func (g *Graph) Sealed() bool { return g.sealed }

// AddPosition adds a position holding Unknown and returns its ID.
func (g *Graph) AddPosition() (position.ID, error) {
	if g.sealed {
		return position.NoID, ErrSealed
	}
	g.cells = append(g.cells, cell{})
	g.equalities = append(g.equalities, nil)
	g.superOf = append(g.superOf, nil)
	return position.ID(len(g.cells) - 1), nil
}

// Pin joins v into the value of the position and records the cause. Pinning a position both
// Nullable and NotNull makes it Conflict.
func (g *Graph) Pin(id position.ID, v Value, cause Cause) error {
	if g.sealed {
		return ErrSealed
	}
	if err := g.check(id); err != nil {
		return err
	}
	if v != Nullable && v != NotNull {
		return fmt.Errorf("%w: %s", ErrInvalidPin, v)
	}
	cause.Value = v
	c := &g.cells[id]
	c.value = c.value.Join(v)
	c.causes = append(c.causes, cause)
	return nil
}

// AddEqual constrains a and b to the same value. Equalities of a position with itself are
// dropped.
func (g *Graph) AddEqual(a, b position.ID, cause Cause) error {
	if g.sealed {
		return ErrSealed
	}
	if err := g.check(a); err != nil {
		return err
	}
	if err := g.check(b); err != nil {
		return err
	}
	if a == b {
		return nil
	}
	g.equalities[a] = append(g.equalities[a], Edge{To: b, Cause: cause})
	g.equalities[b] = append(g.equalities[b], Edge{To: a, Cause: cause})
	return nil
}

// AddSubtype constrains sub to be a subtype of sup: if sub is nilable, so is sup.
func (g *Graph) AddSubtype(sub, sup position.ID, cause Cause) error {
	if g.sealed {
		return ErrSealed
	}
	if err := g.check(sub); err != nil {
		return err
	}
	if err := g.check(sup); err != nil {
		return err
	}
	if sub == sup {
		return nil
	}
	g.superOf[sub] = append(g.superOf[sub], Edge{To: sup, Cause: cause})
	return nil
}

// Seal freezes the structure of the graph. Adjacency lists are ordered by target ID (stable with
// respect to insertion order) so that traversals do not depend on the order evidence was added
// in. Sealing twice is a no-op.
func (g *Graph) Seal() {
	if g.sealed {
		return
	}
	byTarget := func(a, b Edge) int { return int(a.To) - int(b.To) }
	for i := range g.cells {
		slices.SortStableFunc(g.equalities[i], byTarget)
		slices.SortStableFunc(g.superOf[i], byTarget)
	}
	g.sealed = true
}

// ValueOf returns the value the position was pinned to, Unknown if it was never pinned.
func (g *Graph) ValueOf(id position.ID) (Value, error) {
	if err := g.check(id); err != nil {
		return Unknown, err
	}
	return g.cells[id].value, nil
}

// CausesOf returns a copy of the pin causes of the position in insertion order.
func (g *Graph) CausesOf(id position.ID) ([]Cause, error) {
	if err := g.check(id); err != nil {
		return nil, err
	}
	return slices.Clone(g.cells[id].causes), nil
}

// EqualitiesOf returns the positions constrained equal to id. The returned slice must not be
// modified.
func (g *Graph) EqualitiesOf(id position.ID) ([]Edge, error) {
	if err := g.check(id); err != nil {
		return nil, err
	}
	return g.equalities[id], nil
}

// SupersOf returns the supertypes of id. The returned slice must not be modified.
func (g *Graph) SupersOf(id position.ID) ([]Edge, error) {
	if err := g.check(id); err != nil {
		return nil, err
	}
	return g.superOf[id], nil
}

func (g *Graph) check(id position.ID) error {
	if id < 0 || int(id) >= len(g.cells) {
		return fmt.Errorf("%w: %d", ErrUnknownPosition, id)
	}
	return nil
}
