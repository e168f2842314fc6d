//  Copyright (c) 2024 Uber Technologies, Inc.
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

package hook

import (
	"regexp"

	"go.uber.org/nilinfer/annotation"
	"go.uber.org/nilinfer/constraint"
)

// AssumeReturn is an oracle modeling the results of stdlib and 3rd party functions that are not
// analyzed. For example, "errors.New" is assumed to return a nonnil value. It answers Unknown for
// anything else.
var AssumeReturn annotation.Oracle = annotation.OracleFunc(assumeReturn)

func assumeReturn(decl, member, path string) constraint.Value {
	for sig, act := range _assumeReturns {
		if sig.matchName(decl, member) {
			return act(path)
		}
	}
	return constraint.Unknown
}

type assumeReturnAction func(path string) constraint.Value

// nonnilResult pins the first result of the function, and nothing below it.
var nonnilResult assumeReturnAction = func(path string) constraint.Value {
	if path == "result0" {
		return constraint.NotNull
	}
	return constraint.Unknown
}

var _assumeReturns = map[trustedFuncSig]assumeReturnAction{
	// `errors.New`
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^errors$`),
		funcNameRegex:  regexp.MustCompile(`^New$`),
	}: nonnilResult,

	// `fmt.Errorf`
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^fmt$`),
		funcNameRegex:  regexp.MustCompile(`^Errorf$`),
	}: nonnilResult,

	// `context.Background` / `context.TODO`
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^context$`),
		funcNameRegex:  regexp.MustCompile(`^(Background|TODO)$`),
	}: nonnilResult,

	// `github.com/pkg/errors`
	{
		kind:           _func,
		enclosingRegex: regexp.MustCompile(`^(stubs/)?github\.com/pkg/errors$`),
		funcNameRegex:  regexp.MustCompile(`^(New|Errorf)$`),
	}: nonnilResult,
}
