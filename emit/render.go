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

// Package emit renders the declared types of a package with their inferred nilability: every
// nilable slot is prefixed with "?", so that `[]?*int` is a nonnil slice of nilable pointers.
// The rendering is the canonical form compared against golden files.
package emit

import (
	"fmt"
	"go/types"
	"io"
	"strings"

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/inference"
	"go.uber.org/nilinfer/position"
)

// Renderer renders the positions of a table.
type Renderer struct {
	pkg      *types.Package
	table    *position.Table
	verdicts *inference.Verdicts
}

// NewRenderer returns a renderer of the positions of pkg. Types are qualified relative to pkg.
func NewRenderer(pkg *types.Package, table *position.Table, verdicts *inference.Verdicts) *Renderer {
	return &Renderer{pkg: pkg, table: table, verdicts: verdicts}
}

// Render writes one line per root position of a declaration of the package, in ID order:
//
//	<owner>: <kind> <name> <type>
//
// The owner of package-level declarations is the package name.
func (r *Renderer) Render(w io.Writer) error {
	for _, p := range r.table.All() {
		if !p.IsRoot() || p.External || p.Kind == position.KindExpr {
			continue
		}
		typ, err := r.Type(p.ID)
		if err != nil {
			return err
		}
		owner := p.Owner
		if owner == "" {
			owner = r.pkg.Name()
		}
		if _, err := fmt.Fprintf(w, "%s: %s %s %s\n", owner, p.Kind, p.Name, typ); err != nil {
			return err
		}
	}
	return nil
}

// Type renders the type held by a position with its nilability marks.
func (r *Renderer) Type(id position.ID) (string, error) {
	var b strings.Builder
	if err := r.write(&b, id); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (r *Renderer) write(b *strings.Builder, id position.ID) error {
	p := r.table.At(id)
	if p == nil {
		return fmt.Errorf("%w: %d", constraint.ErrUnknownPosition, id)
	}
	if p.Inferable() {
		v, err := r.verdicts.Verdict(id)
		if err != nil {
			return err
		}
		if v == constraint.Nullable {
			b.WriteByte('?')
		}
	}

	// child writes the slot below p, falling back to the plain type when there is no such slot.
	child := func(kind position.Kind, index int, t types.Type) error {
		if c := r.table.Child(id, kind, index); c != position.NoID {
			return r.write(b, c)
		}
		b.WriteString(types.TypeString(t, r.qualifier))
		return nil
	}
	list := func(kind position.Kind, n int, typeAt func(int) types.Type) error {
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := child(kind, i, typeAt(i)); err != nil {
				return err
			}
		}
		return nil
	}

	switch t := types.Unalias(p.Type).(type) {
	case *types.Pointer:
		b.WriteByte('*')
		return child(position.KindElem, 0, t.Elem())
	case *types.Slice:
		b.WriteString("[]")
		return child(position.KindElem, 0, t.Elem())
	case *types.Array:
		fmt.Fprintf(b, "[%d]", t.Len())
		return child(position.KindElem, 0, t.Elem())
	case *types.Chan:
		switch t.Dir() {
		case types.SendOnly:
			b.WriteString("chan<- ")
		case types.RecvOnly:
			b.WriteString("<-chan ")
		default:
			b.WriteString("chan ")
		}
		return child(position.KindElem, 0, t.Elem())
	case *types.Map:
		b.WriteString("map[")
		if err := child(position.KindTypeArg, 0, t.Key()); err != nil {
			return err
		}
		b.WriteByte(']')
		return child(position.KindTypeArg, 1, t.Elem())
	case *types.Signature:
		b.WriteString("func(")
		if err := list(position.KindFuncParam, t.Params().Len(), func(i int) types.Type { return t.Params().At(i).Type() }); err != nil {
			return err
		}
		b.WriteByte(')')
		results := func(i int) types.Type { return t.Results().At(i).Type() }
		switch n := t.Results().Len(); n {
		case 0:
			return nil
		case 1:
			b.WriteByte(' ')
			return child(position.KindFuncReturn, 0, results(0))
		default:
			b.WriteString(" (")
			if err := list(position.KindFuncReturn, n, results); err != nil {
				return err
			}
			b.WriteByte(')')
			return nil
		}
	case *types.Named:
		if t.TypeArgs().Len() == 0 {
			break
		}
		// The origin is printed by hand: its type string would list the type parameters.
		obj := t.Origin().Obj()
		if q := r.qualifier(obj.Pkg()); q != "" {
			b.WriteString(q + ".")
		}
		b.WriteString(obj.Name() + "[")
		if err := list(position.KindTypeArg, t.TypeArgs().Len(), t.TypeArgs().At); err != nil {
			return err
		}
		b.WriteByte(']')
		return nil
	}
	b.WriteString(types.TypeString(p.Type, r.qualifier))
	return nil
}

// qualifier qualifies other packages by name.
func (r *Renderer) qualifier(pkg *types.Package) string {
	if pkg == nil || pkg == r.pkg {
		return ""
	}
	return pkg.Name()
}
