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

package diagnostic

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNolintContainsNilInfer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{text: "//nolint", want: true},
		{text: "//nolint:nilinfer", want: true},
		{text: "// nolint:all", want: true},
		{text: "//nolint:errcheck,nilinfer // flow is checked by the caller", want: true},
		{text: "//nolint:NilInfer", want: true},
		{text: "//nolint:errcheck", want: false},
		{text: "// not a directive", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, nolintContainsNilInfer(tt.text))
		})
	}
}

func TestRanges(t *testing.T) {
	t.Parallel()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", `package p

//nolint:nilinfer
func f(x *int) int {
	return *x
}

func g(x *int) int {
	return *x //nolint:errcheck
}

func h(x *int) int {
	return *x //nolint
}
`, parser.ParseComments)
	require.NoError(t, err)

	ranges := Ranges(fset, []*ast.File{file})
	require.Equal(t, []Range{
		{Filename: "p.go", From: 4, To: 6},
		{Filename: "p.go", From: 13, To: 13},
	}, ranges)

	require.True(t, suppressed(token.Position{Filename: "p.go", Line: 5}, ranges))
	require.False(t, suppressed(token.Position{Filename: "p.go", Line: 9}, ranges))
	require.False(t, suppressed(token.Position{Filename: "q.go", Line: 5}, ranges))
}

func TestPrinter(t *testing.T) {
	t.Parallel()

	msg := "nilable value dereferenced: `p.x` flows from \"p.go:3:4\""
	require.Equal(t, "error: "+msg, NewPrinter(false).Sprint(msg))

	colored := NewPrinter(true).Sprint(msg)
	require.True(t, strings.Contains(colored, "\x1b["), "expected escape sequences in %q", colored)
	require.Contains(t, colored, "p.x")
	require.NotEqual(t, "error: "+msg, colored)
}
