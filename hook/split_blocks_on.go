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
	"go/ast"
	"go/token"
	"go/types"
	"regexp"
)

// SplitBlockOn returns the nil check a trusted assertion call establishes for the code after it.
// For example, a binary expression `x != nil` is returned for `require.NotNil(t, x)`: the rest of
// the block can be treated as if it were written as `if x != nil { <...> }`.
//
// If the call does not match any known function, nil is returned.
func SplitBlockOn(info *types.Info, call *ast.CallExpr) ast.Expr {
	for sig, act := range _splitBlockOn {
		if sig.match(info, call) {
			return act.action(call, act.argIndex)
		}
	}
	return nil
}

// splitBlockOnAction defines the effect the trusted function has on its argument `argIndex`.
type splitBlockOnAction func(call *ast.CallExpr, argIndex int) ast.Expr

// nilBinaryExpr returns `expr == nil`, e.g. for `assert.Nil(t, obj)`.
var nilBinaryExpr splitBlockOnAction = func(call *ast.CallExpr, argIndex int) ast.Expr {
	if argIndex < 0 || argIndex >= len(call.Args) {
		return nil
	}
	return newNilBinaryExpr(call.Args[argIndex], token.EQL)
}

// nonnilBinaryExpr returns `expr != nil`, e.g. for `assert.NotNil(t, obj)`.
var nonnilBinaryExpr splitBlockOnAction = func(call *ast.CallExpr, argIndex int) ast.Expr {
	if argIndex < 0 || argIndex >= len(call.Args) {
		return nil
	}
	return newNilBinaryExpr(call.Args[argIndex], token.NEQ)
}

var _testifyMethods = regexp.MustCompile(`github\.com/stretchr/testify/(suite\.Suite|assert\.Assertions|require\.Assertions)$`)

var _testifyFuncs = regexp.MustCompile(`github\.com/stretchr/testify/(assert|require)$`)

// _splitBlockOn defines the map of trusted functions and their corresponding actions on a
// particular argument.
var _splitBlockOn = map[trustedFuncSig]struct {
	action   splitBlockOnAction
	argIndex int
}{
	// `suite.Suite` and `assert.Assertions`
	{
		kind:           _method,
		enclosingRegex: _testifyMethods,
		funcNameRegex:  regexp.MustCompile(`^(Nil(f)?|NoError(f)?)$`),
	}: {action: nilBinaryExpr, argIndex: 0},
	{
		kind:           _method,
		enclosingRegex: _testifyMethods,
		funcNameRegex:  regexp.MustCompile(`^(NotNil(f)?|Error(f)?)$`),
	}: {action: nonnilBinaryExpr, argIndex: 0},

	// `assert` and `require`
	{
		kind:           _func,
		enclosingRegex: _testifyFuncs,
		funcNameRegex:  regexp.MustCompile(`^(Nil(f)?|NoError(f)?)$`),
	}: {action: nilBinaryExpr, argIndex: 1},
	{
		kind:           _func,
		enclosingRegex: _testifyFuncs,
		funcNameRegex:  regexp.MustCompile(`^(NotNil(f)?|Error(f)?)$`),
	}: {action: nonnilBinaryExpr, argIndex: 1},
}
