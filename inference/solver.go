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

// Package inference solves the constraint graph of a package: it merges positions constrained
// equal, propagates nilability from subtypes to their supertypes until nothing changes, and
// finalizes every position to nilable or nonnil. The verdicts, together with the causes that
// explain them, are published as Verdicts.
package inference

import (
	"fmt"

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/position"
)

// class is the shared state of an equivalence class of positions. It is owned by the
// representative of the class, the lowest position ID among its members.
type class struct {
	rep     position.ID
	members []position.ID
	value   constraint.Value
	causes  []constraint.Cause
	// rank is the number of subtype edges nilability crossed to reach the class, 0 for classes
	// made nilable by their own pins. A class is queued at most once, when its value starts
	// admitting nil, so a cycle of subtype edges is walked once.
	rank       int
	conflicted bool
	opaque     bool
	// supers lists the subtype edges leaving the class, in member then target order.
	supers []constraint.Edge
}

// Solve seals g if needed and computes the verdict of every position. It fails only when g is
// malformed, e.g. an edge references a position outside of it.
func Solve(g *constraint.Graph) (*Verdicts, error) {
	g.Seal()
	s := &solver{graph: g, parent: make([]position.ID, g.Len())}
	for i := range s.parent {
		s.parent[i] = position.ID(i)
	}
	if err := s.unite(); err != nil {
		return nil, err
	}
	classes, err := s.classes()
	if err != nil {
		return nil, err
	}
	propagate(classes)
	finalize(classes)

	v := &Verdicts{of: make([]*class, g.Len())}
	for _, c := range classes {
		for _, m := range c.members {
			v.of[m] = c
		}
	}
	return v, nil
}

type solver struct {
	graph  *constraint.Graph
	parent []position.ID
}

// find returns the representative of id, halving the path on the way.
func (s *solver) find(id position.ID) position.ID {
	for s.parent[id] != id {
		s.parent[id] = s.parent[s.parent[id]]
		id = s.parent[id]
	}
	return id
}

// union merges the classes of a and b under the lower of the two representatives.
func (s *solver) union(a, b position.ID) {
	ra, rb := s.find(a), s.find(b)
	switch {
	case ra < rb:
		s.parent[rb] = ra
	case rb < ra:
		s.parent[ra] = rb
	}
}

func (s *solver) unite() error {
	for i := range s.parent {
		id := position.ID(i)
		edges, err := s.graph.EqualitiesOf(id)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if int(e.To) < 0 || int(e.To) >= len(s.parent) {
				return fmt.Errorf("equality of %d: %w: %d", id, constraint.ErrUnknownPosition, e.To)
			}
			s.union(id, e.To)
		}
	}
	return nil
}

// classes builds the class records in representative order, joining the pins of the members.
func (s *solver) classes() ([]*class, error) {
	byRep := make(map[position.ID]*class)
	var classes []*class
	for i := range s.parent {
		id := position.ID(i)
		rep := s.find(id)
		c, ok := byRep[rep]
		if !ok {
			c = &class{rep: rep}
			byRep[rep] = c
			classes = append(classes, c)
		}
		c.members = append(c.members, id)

		v, err := s.graph.ValueOf(id)
		if err != nil {
			return nil, err
		}
		c.value = c.value.Join(v)
		causes, err := s.graph.CausesOf(id)
		if err != nil {
			return nil, err
		}
		for _, cause := range causes {
			if cause.Kind == constraint.CauseOpaque {
				c.opaque = true
			}
		}
		c.causes = append(c.causes, causes...)

		supers, err := s.graph.SupersOf(id)
		if err != nil {
			return nil, err
		}
		c.supers = append(c.supers, supers...)
	}
	// Edges are resolved to classes only now that every class exists.
	for _, c := range classes {
		for i, e := range c.supers {
			if int(e.To) < 0 || int(e.To) >= len(s.parent) {
				return nil, fmt.Errorf("subtype edge of %d: %w: %d", c.rep, constraint.ErrUnknownPosition, e.To)
			}
			c.supers[i].To = s.find(e.To)
		}
	}
	return classes, nil
}

// propagate runs the worklist: every class admitting nil makes the classes of its supertypes
// admit nil as well. Classes are queued in representative order first, then in the order they
// change.
func propagate(classes []*class) {
	byRep := make(map[position.ID]*class, len(classes))
	var queue []*class
	for _, c := range classes {
		byRep[c.rep] = c
		if c.value.AdmitsNil() {
			queue = append(queue, c)
		}
	}

	for len(queue) > 0 {
		sub := queue[0]
		queue = queue[1:]
		for _, e := range sub.supers {
			sup := byRep[e.To]
			if sup == sub {
				continue
			}
			cause := e.Cause
			cause.Value = constraint.Nullable
			cause.From = sub.rep
			if !hasCause(sup.causes, cause) {
				sup.causes = append(sup.causes, cause)
			}
			if sup.value.AdmitsNil() {
				continue
			}
			sup.value = sup.value.Join(constraint.Nullable)
			sup.rank = sub.rank + 1
			queue = append(queue, sup)
		}
	}
}

// finalize turns every class value into Nullable or NotNull.
func finalize(classes []*class) {
	for _, c := range classes {
		switch {
		case c.opaque:
			c.value = constraint.NotNull
		case c.value == constraint.Unknown:
			c.value = constraint.NotNull
			cause := constraint.NewCause(constraint.CauseDefault, 0, "")
			cause.Value = constraint.NotNull
			c.causes = append(c.causes, cause)
		case c.value == constraint.Conflict:
			c.value = constraint.Nullable
			c.conflicted = true
		}
	}
}

func hasCause(causes []constraint.Cause, cause constraint.Cause) bool {
	for _, c := range causes {
		if c == cause {
			return true
		}
	}
	return false
}
