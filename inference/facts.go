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

package inference

import (
	"bytes"
	"cmp"
	"encoding/gob"
	"errors"
	"go/token"
	"go/types"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/s2"
	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/position"
	"go.uber.org/nilinfer/util/orderedmap"
	"golang.org/x/tools/go/analysis"
)

// Facts holds the verdicts of the exported positions of a package: the parameters, results and
// receivers of exported functions and methods, exported variables and exported fields. It is
// exported as a package fact and consulted as an oracle by the packages importing it.
type Facts struct {
	// verdicts maps "decl|member|path" to true for nilable positions and false for nonnil ones.
	verdicts *orderedmap.OrderedMap[string, bool]
}

// AFact allows Facts to be imported and exported via the Facts mechanism.
func (*Facts) AFact() {}

// NewFacts collects the verdicts of the exported positions of pkg, in position order.
func NewFacts(pkg *types.Package, table *position.Table, v *Verdicts) *Facts {
	f := &Facts{verdicts: orderedmap.New[string, bool]()}
	for _, p := range table.All() {
		if p.External || !p.Inferable() || !exported(pkg, p) {
			continue
		}
		val, err := v.Verdict(p.ID)
		if err != nil {
			continue
		}
		f.verdicts.Store(factKey(p.Decl, p.Member, table.Path(p.ID)), val == constraint.Nullable)
	}
	return f
}

// exported returns true iff the position belongs to a declaration visible outside pkg.
func exported(pkg *types.Package, p *position.Position) bool {
	if p.Member == "" || !token.IsExported(p.Member) {
		return false
	}
	owner, ok := strings.CutPrefix(p.Decl, pkg.Path())
	if !ok {
		return false
	}
	return owner == "" || token.IsExported(strings.TrimPrefix(owner, "."))
}

func factKey(decl, member, path string) string {
	return decl + "|" + member + "|" + path
}

// Len returns the number of positions in f.
func (f *Facts) Len() int { return f.verdicts.Len() }

// Lookup implements annotation.Oracle.
func (f *Facts) Lookup(decl, member, path string) constraint.Value {
	nilable, ok := f.verdicts.Load(factKey(decl, member, path))
	switch {
	case !ok:
		return constraint.Unknown
	case nilable:
		return constraint.Nullable
	default:
		return constraint.NotNull
	}
}

// Export exports f as a package fact of the pass. Empty facts are not exported.
func (f *Facts) Export(pass *analysis.Pass) {
	if f.Len() == 0 {
		return
	}

	// Under test, round trip the facts through gob to catch encoding problems early: facts are
	// private to the analyzer, so tests never see them otherwise.
	if testing.Testing() {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(f); err != nil {
			panic(err)
		}
		var decoded *Facts
		if err := gob.NewDecoder(&buf).Decode(&decoded); err != nil {
			panic(err)
		}
	}
	pass.ExportPackageFact(f)
}

// GobEncode encodes the facts via gob encoding, compressed with s2.
func (f *Facts) GobEncode() (b []byte, err error) {
	var buf bytes.Buffer
	writer := s2.NewWriter(&buf)
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if err := gob.NewEncoder(writer).Encode(f.verdicts); err != nil {
		return nil, err
	}

	// Close the s2 writer before getting the bytes such that we have complete information.
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode decodes the facts from buffer.
func (f *Facts) GobDecode(input []byte) error {
	f.verdicts = orderedmap.New[string, bool]()
	return gob.NewDecoder(s2.NewReader(bytes.NewReader(input))).Decode(f.verdicts)
}

// Upstream is the oracle made of the facts of the imported packages.
type Upstream []*Facts

// ImportUpstream collects the facts exported by the dependencies of the pass, ordered by package
// path.
func ImportUpstream(pass *analysis.Pass) Upstream {
	var facts []analysis.PackageFact
	for _, f := range pass.AllPackageFacts() {
		if _, ok := f.Fact.(*Facts); ok {
			facts = append(facts, f)
		}
	}
	// AllPackageFacts returns facts in unspecified order.
	slices.SortFunc(facts, func(a, b analysis.PackageFact) int {
		return cmp.Compare(a.Package.Path(), b.Package.Path())
	})

	upstream := make(Upstream, 0, len(facts))
	for _, f := range facts {
		upstream = append(upstream, f.Fact.(*Facts))
	}
	return upstream
}

// Lookup implements annotation.Oracle.
func (u Upstream) Lookup(decl, member, path string) constraint.Value {
	for _, f := range u {
		if v := f.Lookup(decl, member, path); v != constraint.Unknown {
			return v
		}
	}
	return constraint.Unknown
}
