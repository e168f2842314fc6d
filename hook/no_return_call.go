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
	"go/types"
	"regexp"
	"slices"
)

// IsNoReturnCall returns true if the given call expression does not return. The control flow
// graphs handed out by the ctrlflow analyzer already end blocks at calls like `os.Exit` or
// `log.Fatal`; this list covers the calls it cannot see through:
//
// `zap.Fatal`-related: they have complex logic that eventually calls a hook that is almost always
// configured to just panic (but we cannot infer that purely from code).
//
// `testing.TB.Fatal`-related: they are interface methods without implementations.
func IsNoReturnCall(info *types.Info, call *ast.CallExpr) bool {
	return slices.ContainsFunc(_terminatingCalls, func(sig trustedFuncSig) bool { return sig.match(info, call) })
}

var _terminatingCalls = []trustedFuncSig{
	// `zap.Logger.Fatal`
	{
		kind:           _method,
		enclosingRegex: regexp.MustCompile(`^(stubs/)?go\.uber\.org/zap.Logger$`),
		funcNameRegex:  regexp.MustCompile(`^Fatal$`),
	},
	// `zap.SugaredLogger.Fatal` / `zap.SugaredLogger.Fatalf` / `zap.SugaredLogger.Fatalln` / `zap.SugaredLogger.Fatalw`
	{
		kind:           _method,
		enclosingRegex: regexp.MustCompile(`^(stubs/)?go\.uber\.org/zap.SugaredLogger$`),
		funcNameRegex:  regexp.MustCompile(`^Fatal(f|ln|w)?$`),
	},
	// `testing.TB`, `*testing.T` and `*testing.B`
	{
		kind:           _method,
		enclosingRegex: regexp.MustCompile(`^testing.(TB|T|B|common)$`),
		funcNameRegex:  regexp.MustCompile(`^(Fatal|Fatalf|FailNow|SkipNow|Skip|Skipf)$`),
	},
}
