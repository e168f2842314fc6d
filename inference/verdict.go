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

package inference

import (
	"cmp"
	"fmt"
	"slices"

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/position"
)

// Verdicts is the sealed result of Solve. It is read-only and safe for concurrent use.
type Verdicts struct {
	of []*class
}

// Len returns the number of positions.
func (v *Verdicts) Len() int { return len(v.of) }

func (v *Verdicts) class(id position.ID) (*class, error) {
	if id < 0 || int(id) >= len(v.of) {
		return nil, fmt.Errorf("%w: %d", constraint.ErrUnknownPosition, id)
	}
	return v.of[id], nil
}

// Verdict returns the final value of the position: Nullable or NotNull.
func (v *Verdicts) Verdict(id position.ID) (constraint.Value, error) {
	c, err := v.class(id)
	if err != nil {
		return constraint.Unknown, err
	}
	return c.value, nil
}

// Explain returns the causes of the position's class, ordered by cause priority and then by
// source position. Causes of the same rank keep the order they were recorded in.
func (v *Verdicts) Explain(id position.ID) ([]constraint.Cause, error) {
	c, err := v.class(id)
	if err != nil {
		return nil, err
	}
	causes := slices.Clone(c.causes)
	slices.SortStableFunc(causes, func(a, b constraint.Cause) int {
		return cmp.Or(
			cmp.Compare(a.Kind.Priority(), b.Kind.Priority()),
			cmp.Compare(a.Pos, b.Pos),
		)
	})
	return causes, nil
}

// Conflicted returns true iff the position's class received both nilable and nonnil evidence.
// Such positions are finalized as Nullable.
func (v *Verdicts) Conflicted(id position.ID) (bool, error) {
	c, err := v.class(id)
	if err != nil {
		return false, err
	}
	return c.conflicted, nil
}

// Opaque returns true iff the position holds a type that is not inferred. Such positions are
// finalized as NotNull.
func (v *Verdicts) Opaque(id position.ID) (bool, error) {
	c, err := v.class(id)
	if err != nil {
		return false, err
	}
	return c.opaque, nil
}

// Representative returns the lowest position ID of the position's class.
func (v *Verdicts) Representative(id position.ID) (position.ID, error) {
	c, err := v.class(id)
	if err != nil {
		return position.NoID, err
	}
	return c.rep, nil
}

// Rank returns the number of subtype edges nilability crossed to reach the position, 0 when the
// position is nilable by its own evidence or is not nilable.
func (v *Verdicts) Rank(id position.ID) (int, error) {
	c, err := v.class(id)
	if err != nil {
		return 0, err
	}
	return c.rank, nil
}
