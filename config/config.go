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

// Package config implements a configuration analyzer that provides the user-facing flags of
// nilinfer to the other analyzers as a typed *Config result.
package config

import (
	"flag"
	"go/ast"
	"go/types"
	"reflect"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Config is the struct that stores the user-configurable options for nilinfer.
type Config struct {
	// PrettyPrint indicates whether the error messages should be pretty printed.
	PrettyPrint bool
	// GroupErrorMessages indicates whether conflicts with the same nil source are reported once.
	GroupErrorMessages bool
	// SmartCasts enables the dominator-based guard oracle. When disabled every dereference is
	// treated as evidence, even the ones behind a nil check, which gives over-strict verdicts.
	SmartCasts bool
	// AnnotationsPath is the path to a YAML annotation bundle merged on top of the embedded one.
	AnnotationsPath string
	// includePkgs is the list of packages to analyze.
	includePkgs []string
	// excludePkgs is the list of packages to exclude from analysis. Exclude list takes precedence
	// over the include list.
	excludePkgs []string
	// excludeFileDocStrings is the list of doc strings that, if present in a file, exclude the
	// file from analysis.
	excludeFileDocStrings []string
}

// IsPkgInScope returns true iff the passed package is in scope for analysis.
func (c *Config) IsPkgInScope(pkg *types.Package) bool {
	if pkg == nil {
		return false
	}
	path := pkg.Path()
	for _, exclude := range c.excludePkgs {
		if strings.HasPrefix(path, exclude) {
			return false
		}
	}
	// An empty include list means every package is in scope.
	if len(c.includePkgs) == 0 {
		return true
	}
	for _, include := range c.includePkgs {
		if strings.HasPrefix(path, include) {
			return true
		}
	}
	return false
}

// IsFileInScope returns true iff the file does not carry any of the excluded doc strings in its
// comments.
func (c *Config) IsFileInScope(file *ast.File) bool {
	for _, group := range file.Comments {
		for _, comment := range group.List {
			for _, docString := range c.excludeFileDocStrings {
				if strings.Contains(comment.Text, docString) {
					return false
				}
			}
		}
	}
	return true
}

const _doc = "Provide the configurations of nilinfer to its sub-analyzers. This analyzer is not " +
	"meant to be run on its own; its flags are lifted by the drivers."

// Analyzer is the config analyzer; other analyzers read *Config from pass.ResultOf.
var Analyzer = &analysis.Analyzer{
	Name:       "nilinfer_config",
	Doc:        _doc,
	Run:        run,
	Flags:      newFlagSet(),
	ResultType: reflect.TypeOf((*Config)(nil)),
}

const (
	// PrettyPrintFlag is the flag for pretty printing the error messages.
	PrettyPrintFlag = "pretty-print"
	// GroupErrorMessagesFlag is the flag for grouping conflicts with the same nil source.
	GroupErrorMessagesFlag = "group-error-messages"
	// SmartCastsFlag is the flag for enabling the guard oracle.
	SmartCastsFlag = "smart-casts"
	// AnnotationsFlag is the flag for the path of the annotation bundle.
	AnnotationsFlag = "annotations"
	// IncludePkgsFlag is the flag name for include package prefixes.
	IncludePkgsFlag = "include-pkgs"
	// ExcludePkgsFlag is the flag name for the exclude package prefixes.
	ExcludePkgsFlag = "exclude-pkgs"
	// ExcludeFileDocStringsFlag is the flag name for the docstrings that exclude files.
	ExcludeFileDocStringsFlag = "exclude-file-docstrings"
)

// newFlagSet returns a flag set to be used in the nilinfer config analyzer.
func newFlagSet() flag.FlagSet {
	fs := flag.NewFlagSet("nilinfer_config", flag.ExitOnError)

	// The returned pointers are not kept since the values are read back through the analyzer's
	// Flags field in run.
	_ = fs.Bool(PrettyPrintFlag, true, "Pretty print the error messages")
	_ = fs.Bool(GroupErrorMessagesFlag, true, "Group conflicts with the same nil source under one diagnostic")
	_ = fs.Bool(SmartCastsFlag, true, "Skip dereference evidence dominated by a nil check on the same variable")
	_ = fs.String(AnnotationsFlag, "", "Path to a YAML annotation bundle for external declarations")
	_ = fs.String(IncludePkgsFlag, "", "Comma-separated list of packages to analyze")
	_ = fs.String(ExcludePkgsFlag, "", "Comma-separated list of packages to exclude from analysis (takes precedence over include-pkgs)")
	_ = fs.String(ExcludeFileDocStringsFlag, "", "Comma-separated list of docstrings to exclude from analysis")

	return *fs
}

func run(pass *analysis.Pass) (any, error) {
	conf := &Config{PrettyPrint: true, GroupErrorMessages: true, SmartCasts: true}

	flags := &pass.Analyzer.Flags
	if v, ok := lookup(flags, PrettyPrintFlag).(bool); ok {
		conf.PrettyPrint = v
	}
	if v, ok := lookup(flags, GroupErrorMessagesFlag).(bool); ok {
		conf.GroupErrorMessages = v
	}
	if v, ok := lookup(flags, SmartCastsFlag).(bool); ok {
		conf.SmartCasts = v
	}
	if v, ok := lookup(flags, AnnotationsFlag).(string); ok {
		conf.AnnotationsPath = v
	}
	if v, ok := lookup(flags, IncludePkgsFlag).(string); ok {
		conf.includePkgs = splitList(v)
	}
	if v, ok := lookup(flags, ExcludePkgsFlag).(string); ok {
		conf.excludePkgs = splitList(v)
	}
	if v, ok := lookup(flags, ExcludeFileDocStringsFlag).(string); ok {
		conf.excludeFileDocStrings = splitList(v)
	}

	return conf, nil
}

func lookup(fs *flag.FlagSet, name string) any {
	f := fs.Lookup(name)
	if f == nil {
		return nil
	}
	getter, ok := f.Value.(flag.Getter)
	if !ok {
		return nil
	}
	return getter.Get()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var list []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
