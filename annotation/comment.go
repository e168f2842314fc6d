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

package annotation

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/position"
)

const nilableKeyword = "nilable"
const nonNilKeyword = "nonnil"

var annotationKeyword = fmt.Sprintf("(%s|%s)", nilableKeyword, nonNilKeyword)

const sep = ","
const identRegexStr = "[a-zA-Z_][a-zA-Z0-9_]*"

var paramRegexStr = "param [0-9]+"

var resultRegexStr = "result [0-9]+"

var tokenRegexStr = fmt.Sprintf("((%s)|(%s)|(%s))",
	paramRegexStr, resultRegexStr, identRegexStr)

var deepIdentRegexStr = fmt.Sprintf("((\\*%s)|(%s\\[\\])|(<-%s)|%s)",
	tokenRegexStr, tokenRegexStr, tokenRegexStr, tokenRegexStr)
var seqRegexStr = fmt.Sprintf("%s\\((\\s*%s\\s*(%s\\s*%s\\s*)*)\\)",
	annotationKeyword, deepIdentRegexStr, sep, deepIdentRegexStr)
var seqRegex = regexp.MustCompile(seqRegexStr)

// annotatedName is one entry of an annotation comment: a name, and whether the annotation is
// about the slot below it (`*p`, `s[]`, `<-ch`) rather than the name itself.
type annotatedName struct {
	name string
	deep bool
}

// nilabilitySet maps the entries read from a comment group to their values.
type nilabilitySet map[annotatedName]constraint.Value

// nilabilityFromCommentGroup reads the `nilable(...)` and `nonnil(...)` annotations of a comment
// group. When a name is annotated twice the first annotation wins.
func nilabilityFromCommentGroup(groups ...*ast.CommentGroup) nilabilitySet {
	set := make(nilabilitySet)
	for _, group := range groups {
		if group == nil {
			continue
		}
		for _, comment := range group.List {
			for _, seqMatch := range seqRegex.FindAllStringSubmatch(comment.Text, -1) {
				val := constraint.NotNull
				if seqMatch[1] == nilableKeyword {
					val = constraint.Nullable
				}

				for _, match := range strings.Split(seqMatch[2], sep) {
					match = strings.TrimSpace(match)
					n := len(match)
					name := annotatedName{name: match}
					switch {
					case n >= 2 && match[0] == '*':
						name = annotatedName{name: match[1:], deep: true}
					case n >= 3 && match[n-2:] == "[]":
						name = annotatedName{name: match[:n-2], deep: true}
					case n >= 3 && match[:2] == "<-":
						name = annotatedName{name: match[2:], deep: true}
					}
					if _, ok := set[name]; !ok {
						set[name] = val
					}
				}
			}
		}
	}
	return set
}

// sorted returns the entries of the set in a deterministic order.
func (set nilabilitySet) sorted() []annotatedName {
	names := make([]annotatedName, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b annotatedName) int {
		if a.name != b.name {
			return strings.Compare(a.name, b.name)
		}
		if a.deep == b.deep {
			return 0
		}
		if a.deep {
			return 1
		}
		return -1
	})
	return names
}

// Comments is the oracle of the annotations written in the analyzed source:
//
//	// nilable(x, result 0)
//	// nonnil(*p, s[])
//	func f(x *int, p **int, s []*int) *int
//
// Functions and methods are annotated in their doc comments, by parameter name, by "param i",
// by "result i", or by the receiver name. Struct fields and package-level variables are
// annotated in their doc or line comments by their own name:
//
//	type T struct {
//		f *int // nilable(f)
//	}
type Comments struct {
	values map[string]constraint.Value
}

// ParseComments reads the annotations of the given files.
func ParseComments(info *types.Info, files []*ast.File) *Comments {
	c := &Comments{values: make(map[string]constraint.Value)}
	for _, file := range files {
		for _, decl := range file.Decls {
			switch decl := decl.(type) {
			case *ast.FuncDecl:
				if fn, ok := info.Defs[decl.Name].(*types.Func); ok {
					c.function(fn, nilabilityFromCommentGroup(decl.Doc))
				}
			case *ast.GenDecl:
				c.genDecl(info, decl)
			}
		}
	}
	return c
}

// Lookup implements Oracle.
func (c *Comments) Lookup(decl, member, path string) constraint.Value {
	if c == nil {
		return constraint.Unknown
	}
	return c.values[key(decl, member, path)]
}

// Len returns the number of annotated positions.
func (c *Comments) Len() int { return len(c.values) }

func (c *Comments) genDecl(info *types.Info, decl *ast.GenDecl) {
	for _, spec := range decl.Specs {
		switch spec := spec.(type) {
		case *ast.ValueSpec:
			if decl.Tok != token.VAR {
				continue
			}
			groups := []*ast.CommentGroup{spec.Doc, spec.Comment}
			if len(decl.Specs) == 1 {
				groups = append(groups, decl.Doc)
			}
			set := nilabilityFromCommentGroup(groups...)
			for _, name := range spec.Names {
				if v, ok := info.Defs[name].(*types.Var); ok {
					c.object(v, nil, "var", set)
				}
			}
		case *ast.TypeSpec:
			tn, ok := info.Defs[spec.Name].(*types.TypeName)
			if !ok {
				continue
			}
			named, _ := tn.Type().(*types.Named)
			switch typ := spec.Type.(type) {
			case *ast.StructType:
				for _, field := range typ.Fields.List {
					set := nilabilityFromCommentGroup(field.Doc, field.Comment)
					for _, name := range field.Names {
						if v, ok := info.Defs[name].(*types.Var); ok {
							c.object(v, named, "field", set)
						}
					}
				}
			case *ast.InterfaceType:
				for _, method := range typ.Methods.List {
					set := nilabilityFromCommentGroup(method.Doc, method.Comment)
					for _, name := range method.Names {
						if fn, ok := info.Defs[name].(*types.Func); ok {
							c.function(fn, set)
						}
					}
				}
			}
		}
	}
}

// object records the annotations of a variable or field, whose root path is root.
func (c *Comments) object(v *types.Var, owner *types.Named, root string, set nilabilitySet) {
	decl, member := position.Qualify(v, owner)
	for _, name := range set.sorted() {
		if name.name != v.Name() {
			continue
		}
		c.store(decl, member, root, v.Type(), name.deep, set[name])
	}
}

// function records the annotations of the receiver, parameters and results of fn.
func (c *Comments) function(fn *types.Func, set nilabilitySet) {
	decl, member := position.Qualify(fn, nil)
	sig := fn.Type().(*types.Signature)
	for _, name := range set.sorted() {
		path, typ, ok := resolve(sig, name.name)
		if !ok {
			continue
		}
		c.store(decl, member, path, typ, name.deep, set[name])
	}
}

func (c *Comments) store(decl, member, path string, typ types.Type, deep bool, val constraint.Value) {
	if deep {
		seg, ok := deepSegment(typ)
		if !ok {
			return
		}
		path += "/" + seg
	}
	if _, ok := c.values[key(decl, member, path)]; !ok {
		c.values[key(decl, member, path)] = val
	}
}

// resolve maps a name used in a function annotation to the path and type of the position it
// denotes.
func resolve(sig *types.Signature, name string) (string, types.Type, bool) {
	if rest, ok := strings.CutPrefix(name, "param "); ok {
		if i, err := strconv.Atoi(rest); err == nil && i < sig.Params().Len() {
			return fmt.Sprintf("param%d", i), sig.Params().At(i).Type(), true
		}
		return "", nil, false
	}
	if rest, ok := strings.CutPrefix(name, "result "); ok {
		if i, err := strconv.Atoi(rest); err == nil && i < sig.Results().Len() {
			return fmt.Sprintf("result%d", i), sig.Results().At(i).Type(), true
		}
		return "", nil, false
	}
	if recv := sig.Recv(); recv != nil && (name == "recv" || name == recv.Name()) {
		return "recv", recv.Type(), true
	}
	for i := 0; i < sig.Params().Len(); i++ {
		if sig.Params().At(i).Name() == name {
			return fmt.Sprintf("param%d", i), sig.Params().At(i).Type(), true
		}
	}
	for i := 0; i < sig.Results().Len(); i++ {
		if sig.Results().At(i).Name() == name {
			return fmt.Sprintf("result%d", i), sig.Results().At(i).Type(), true
		}
	}
	return "", nil, false
}

// deepSegment returns the path segment of the slot below a value of type t: the element of a
// pointer, slice, array or channel, or the value of a map. Named types have no such slot.
func deepSegment(t types.Type) (string, bool) {
	switch types.Unalias(t).(type) {
	case *types.Pointer, *types.Slice, *types.Array, *types.Chan:
		return "elem", true
	case *types.Map:
		return "arg1", true
	}
	return "", false
}
