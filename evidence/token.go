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
	"fmt"

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/position"
)

// Kind is the kind of an evidence token.
type Kind uint8

const (
	// MustBeNullable requires position P to admit nil.
	MustBeNullable Kind = iota
	// MustBeNotNull requires position P to never hold nil.
	MustBeNotNull
	// Equal requires positions P and Q to have the same nilability.
	Equal
	// Subtype requires Q to admit nil whenever P does: values of P flow into Q.
	Subtype
)

func (k Kind) String() string {
	switch k {
	case MustBeNullable:
		return "nullable"
	case MustBeNotNull:
		return "nonnull"
	case Equal:
		return "equal"
	case Subtype:
		return "subtype"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Token is one piece of evidence about the positions of a table. Q is NoID for the single
// position kinds.
type Token struct {
	Kind  Kind
	P, Q  position.ID
	Cause constraint.Cause
}

func (t Token) String() string {
	switch t.Kind {
	case MustBeNullable, MustBeNotNull:
		return fmt.Sprintf("%s(%d) %s", t.Kind, t.P, t.Cause.Kind)
	default:
		return fmt.Sprintf("%s(%d, %d) %s", t.Kind, t.P, t.Q, t.Cause.Kind)
	}
}

// Apply adds the token to the graph.
func (t Token) Apply(g *constraint.Graph) error {
	switch t.Kind {
	case MustBeNullable:
		return g.Pin(t.P, constraint.Nullable, t.Cause)
	case MustBeNotNull:
		return g.Pin(t.P, constraint.NotNull, t.Cause)
	case Equal:
		return g.AddEqual(t.P, t.Q, t.Cause)
	case Subtype:
		return g.AddSubtype(t.P, t.Q, t.Cause)
	default:
		return fmt.Errorf("unknown evidence kind %d", t.Kind)
	}
}

// ApplyAll adds the tokens to the graph in order.
func ApplyAll(g *constraint.Graph, tokens []Token) error {
	for _, t := range tokens {
		if err := t.Apply(g); err != nil {
			return fmt.Errorf("applying %s: %w", t, err)
		}
	}
	return nil
}
