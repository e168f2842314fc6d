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
	_ "embed"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/nilinfer/config"
	"go.uber.org/nilinfer/constraint"
	"gopkg.in/yaml.v3"
)

// Bundle is a set of annotations of library declarations, typically shipped as a YAML file:
//
//	version: 1.0.0
//	packages:
//	  flag:
//	    Lookup:
//	      result0: nilable
//	  os.File:
//	    Close:
//	      recv: nilable
//
// The keys below "packages" are declarations (a package path, or a package path followed by "."
// and a type name), then members, then position paths.
type Bundle struct {
	Version  string                                  `yaml:"version"`
	Packages map[string]map[string]map[string]string `yaml:"packages"`

	values map[string]constraint.Value
}

//go:embed default.yaml
var _defaultBundle []byte

// DefaultBundle returns the bundle embedded in the binary, which covers well-known standard
// library declarations.
var DefaultBundle = sync.OnceValues(func() (*Bundle, error) {
	return ParseBundle(_defaultBundle, "default.yaml")
})

// LoadBundle reads and parses a bundle file.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading annotation bundle %s: %w", path, err)
	}
	return ParseBundle(data, path)
}

// ParseBundle parses bundle content from bytes. The path argument is used only for error
// messages.
func ParseBundle(data []byte, path string) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := b.validate(path); err != nil {
		return nil, err
	}
	return &b, nil
}

// validate checks the schema version and the annotation values, and indexes the values.
func (b *Bundle) validate(path string) error {
	if b.Version == "" {
		return fmt.Errorf("%s: version is required", path)
	}
	v, err := semver.NewVersion(b.Version)
	if err != nil {
		return fmt.Errorf("%s: invalid version %q: %w", path, b.Version, err)
	}
	c, err := semver.NewConstraint(config.BundleVersionConstraint)
	if err != nil {
		return fmt.Errorf("invalid bundle version constraint %q: %w", config.BundleVersionConstraint, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("%s: version %s does not satisfy %s", path, v, config.BundleVersionConstraint)
	}

	b.values = make(map[string]constraint.Value)
	for _, decl := range sortedKeys(b.Packages) {
		members := b.Packages[decl]
		for _, member := range sortedKeys(members) {
			for _, p := range sortedKeys(members[member]) {
				s := members[member][p]
				val := constraint.ParseValue(s)
				if val == constraint.Unknown {
					return fmt.Errorf("%s: %s.%s: %s: invalid annotation %q, want nilable or nonnil", path, decl, member, p, s)
				}
				b.values[key(decl, member, p)] = val
			}
		}
	}
	return nil
}

// Lookup implements Oracle.
func (b *Bundle) Lookup(decl, member, path string) constraint.Value {
	if b == nil {
		return constraint.Unknown
	}
	return b.values[key(decl, member, path)]
}

// Len returns the number of annotated positions.
func (b *Bundle) Len() int { return len(b.values) }

// Merge returns a bundle holding the annotations of both bundles. Annotations of other win over
// the ones of b.
func (b *Bundle) Merge(other *Bundle) *Bundle {
	merged := &Bundle{
		Version:  b.Version,
		Packages: make(map[string]map[string]map[string]string),
		values:   make(map[string]constraint.Value, len(b.values)+len(other.values)),
	}
	for _, src := range []*Bundle{b, other} {
		for decl, members := range src.Packages {
			if merged.Packages[decl] == nil {
				merged.Packages[decl] = make(map[string]map[string]string)
			}
			for member, paths := range members {
				if merged.Packages[decl][member] == nil {
					merged.Packages[decl][member] = make(map[string]string)
				}
				for p, s := range paths {
					merged.Packages[decl][member][p] = s
				}
			}
		}
		for k, v := range src.values {
			merged.values[k] = v
		}
	}
	return merged
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
