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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var _root = filepath.Join("..", "testdata", "src", "fixtures")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDiff(t *testing.T) {
	t.Parallel()

	diff, err := Diff("f", "a\nb\n", "a\nb\n")
	require.NoError(t, err)
	require.Empty(t, diff)

	diff, err = Diff("f", "a\nb\n", "a\nc\n")
	require.NoError(t, err)
	require.Contains(t, diff, "--- f.golden")
	require.Contains(t, diff, "+++ rendered")
	require.Contains(t, diff, "-b\n")
	require.Contains(t, diff, "+c\n")
}

func TestFindExpectedValues(t *testing.T) {
	t.Parallel()

	f, err := Load(_root, "returnNull")
	require.NoError(t, err)

	got := FindExpectedValues(f.Fset, f.Info, f.Files, _nilablePrefix)
	require.Equal(t, map[string][]string{
		"either": {"#0"},
		"never":  {},
	}, got)
}

func TestNilableRoots(t *testing.T) {
	t.Parallel()

	f, err := Load(_root, "returnNull")
	require.NoError(t, err)
	inf, err := f.Infer()
	require.NoError(t, err)

	require.Equal(t, []string{"#0"}, NilableRoots(inf, "either"))
	require.Empty(t, NilableRoots(inf, "never"))
	require.Empty(t, NilableRoots(inf, "missing"))
}

func TestFixtures(t *testing.T) {
	t.Parallel()

	names, err := Fixtures(_root)
	require.NoError(t, err)
	require.Contains(t, names, "returnNull")
	require.Contains(t, names, "typeCast")

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "good"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good", "good.go"), []byte("package good\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "stray"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".hidden"), 0o755))

	names, err = Fixtures(dir)
	require.ErrorContains(t, err, `fixture directory "stray"`)
	require.Equal(t, []string{"good"}, names)
}

func TestRun(t *testing.T) {
	t.Parallel()

	Run(t, _root, "returnNull")
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(_root, "doesNotExist")
	require.ErrorContains(t, err, `parse fixture "doesNotExist"`)
}
