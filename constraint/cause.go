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
	"fmt"
	"go/token"

	"go.uber.org/nilinfer/position"
)

// CauseKind is the structured reason of a piece of evidence.
type CauseKind uint8

// The cause kinds. Their order carries no meaning, see Priority.
const (
	CausePrimitive CauseKind = iota
	CauseOpaque
	CauseExternalAnnotation
	CauseInSourceAnnotation
	CauseUpstream
	CauseCast
	CauseSuperMethod
	CauseNullLiteral
	CauseContainerElem
	CauseElvis
	CauseCheckedCast
	CauseComparedToNull
	CauseAssign
	CauseLoopVar
	CauseSpread
	CauseTypeArg
	CauseReturn
	CauseDeref
	CauseSafeCall
	CauseArg
	CauseDefault
)

var _causeInfo = [...]struct {
	name     string
	priority int
}{
	CausePrimitive:          {"primitive", 0},
	CauseOpaque:             {"opaque", 0},
	CauseExternalAnnotation: {"external-annotation", 0},
	CauseInSourceAnnotation: {"in-source-annotation", 0},
	CauseUpstream:           {"upstream", 0},
	CauseCast:               {"cast", 0},
	CauseSuperMethod:        {"super-method", 1},
	CauseNullLiteral:        {"null-literal", 2},
	CauseContainerElem:      {"container-elem", 2},
	CauseElvis:              {"elvis", 2},
	CauseCheckedCast:        {"checked-cast", 2},
	CauseComparedToNull:     {"compared-to-null", 3},
	CauseAssign:             {"assign", 4},
	CauseLoopVar:            {"loop-var", 4},
	CauseSpread:             {"spread", 4},
	CauseTypeArg:            {"type-arg", 4},
	CauseReturn:             {"return", 5},
	CauseDeref:              {"deref", 6},
	CauseSafeCall:           {"safe-call", 6},
	CauseArg:                {"arg", 7},
	CauseDefault:            {"default", 8},
}

func (k CauseKind) String() string {
	if int(k) < len(_causeInfo) {
		return _causeInfo[k].name
	}
	return fmt.Sprintf("cause(%d)", k)
}

// Priority ranks the kind for explanations: lower ranks are listed first. Pins that cannot be
// argued with (annotations, primitive types, casts) come first, then declarations, initializers,
// comparisons, assignments, returns, receivers and parameters, and the finalization default last.
func (k CauseKind) Priority() int {
	if int(k) < len(_causeInfo) {
		return _causeInfo[k].priority
	}
	return len(_causeInfo)
}

// Cause explains one constraint. For pins Value is the pinned value; for a cause the solver
// derived by propagation along an edge, Value is Nullable and From is the subtype position the
// nilability came from.
type Cause struct {
	Kind CauseKind
	// Pos is the source position of the evidence, token.NoPos if there is none.
	Pos token.Pos
	// Detail is a short rendering of the expression involved, e.g. "p.f" for a dereference.
	Detail string
	Value  Value
	From   position.ID
}

// NewCause returns a cause without a source position of origin.
func NewCause(kind CauseKind, pos token.Pos, detail string) Cause {
	return Cause{Kind: kind, Pos: pos, Detail: detail, From: position.NoID}
}

func (c Cause) String() string {
	s := c.Kind.String()
	if c.Value != Unknown {
		s = c.Value.String() + " because " + s
	}
	if c.Detail != "" {
		s += " `" + c.Detail + "`"
	}
	return s
}

// Render renders the cause with its source position resolved against fset.
func (c Cause) Render(fset *token.FileSet) string {
	if !c.Pos.IsValid() || fset == nil {
		return c.String()
	}
	pos := fset.Position(c.Pos)
	return fmt.Sprintf("%s at %s:%d:%d", c.String(), pos.Filename, pos.Line, pos.Column)
}
