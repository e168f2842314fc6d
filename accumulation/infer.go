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

package accumulation

import (
	"go/ast"
	"go/token"
	"go/types"

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/evidence"
	"go.uber.org/nilinfer/inference"
	"go.uber.org/nilinfer/position"
)

// Inference is the outcome of one inference run over a package.
type Inference struct {
	// Table holds the type positions of the package and of the external declarations it uses.
	Table *position.Table
	// Tokens is the evidence collected from the package, in collection order.
	Tokens []evidence.Token
	// Verdicts holds the final nilability of every position of Table.
	Verdicts *inference.Verdicts
}

// Infer runs the phases of inference in order: it enumerates the type positions of the files,
// collects evidence, builds the constraint graph and solves it. Each phase runs to completion
// before the next one starts and the graph is owned by this run alone.
func Infer(fset *token.FileSet, pkg *types.Package, info *types.Info, files []*ast.File, opts evidence.Options) (*Inference, error) {
	table := position.Enumerate(fset, pkg, info, files)

	g := constraint.NewGraph()
	for range table.All() {
		if _, err := g.AddPosition(); err != nil {
			return nil, err
		}
	}

	tokens := evidence.Collect(fset, pkg, info, files, table, opts)
	if err := evidence.ApplyAll(g, tokens); err != nil {
		return nil, err
	}

	verdicts, err := inference.Solve(g)
	if err != nil {
		return nil, err
	}
	return &Inference{Table: table, Tokens: tokens, Verdicts: verdicts}, nil
}
