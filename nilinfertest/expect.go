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

package nilinfertest

import (
	"go/ast"
	"go/token"
	"go/types"
	"slices"
	"strings"

	"go.uber.org/nilinfer/position"
)

// _nilablePrefix starts the inline expectation of a function: the names of its declared
// positions inferred nilable, e.g.
//
//	func f(p *int, q *int) *int { //nilable: p #0
const _nilablePrefix = "nilable:"

// FindExpectedValues inspects fixture files and gathers the expected values written in a comment
// on the line of a function declaration, keyed by the label of the function. The values are
// sorted; a comment with the prefix alone expects no value.
func FindExpectedValues(fset *token.FileSet, info *types.Info, files []*ast.File, expectedPrefix string) map[string][]string {
	results := make(map[string][]string)

	for _, file := range files {
		// Store a mapping between single comment's line number to its text.
		comments := make(map[int]string)
		for _, group := range file.Comments {
			if len(group.List) != 1 {
				continue
			}
			comment := group.List[0]
			comments[fset.Position(comment.Pos()).Line] = comment.Text
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			obj, ok := info.Defs[fn.Name].(*types.Func)
			if !ok {
				continue
			}
			text, ok := comments[fset.Position(fn.Pos()).Line]
			if !ok {
				continue
			}

			// Trim the slashes and extra spaces and extract the set of expected values.
			text = strings.TrimSpace(strings.TrimPrefix(text, "//"))
			if !strings.HasPrefix(text, expectedPrefix) {
				continue
			}
			values := strings.Fields(strings.TrimPrefix(text, expectedPrefix))
			slices.Sort(values)
			results[position.FuncLabel(obj)] = values
		}
	}

	return results
}
