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

// Package nilinfer implements the top-level analyzer that retrieves the diagnostics from the
// accumulation analyzer and reports them. Its result is the accumulation result, which carries
// the verdicts of every type position of the package.
package nilinfer

import (
	"reflect"

	"go.uber.org/nilinfer/accumulation"
	"go.uber.org/nilinfer/config"
	"go.uber.org/nilinfer/diagnostic"
	"golang.org/x/tools/go/analysis"
)

const _doc = "Infer which declared types of this package may hold nil, and report the places" +
	" where a value inferred nilable reaches a dereference"

// Analyzer is the top-level instance of Analyzer - it coordinates the entire dataflow to report
// nilability conflicts in this package. It is needed here for nogo to recognize the package.
var Analyzer = &analysis.Analyzer{
	Name:       "nilinfer",
	Doc:        _doc,
	Run:        run,
	FactTypes:  []analysis.Fact{},
	Requires:   []*analysis.Analyzer{config.Analyzer, accumulation.Analyzer},
	ResultType: reflect.TypeOf((*accumulation.Result)(nil)),
}

func run(pass *analysis.Pass) (any, error) {
	conf := pass.ResultOf[config.Analyzer].(*config.Config)
	result := pass.ResultOf[accumulation.Analyzer].(*accumulation.Result)

	var printer *diagnostic.Printer
	if conf.PrettyPrint {
		printer = diagnostic.NewPrinter(diagnostic.TerminalColors())
	}
	for _, d := range result.Diagnostics {
		if printer != nil {
			d.Message = printer.Sprint(d.Message)
		}
		pass.Report(d)
	}

	return result, nil
}
