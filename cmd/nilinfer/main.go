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

// main package makes it possible to build nilinfer as a standalone code checker that can be
// independently invoked to check other packages. With -print-verdicts it also prints the inferred
// nilability of the declared types of every analyzed package.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/nilinfer"
	"go.uber.org/nilinfer/accumulation"
	"go.uber.org/nilinfer/config"
	"go.uber.org/nilinfer/emit"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/singlechecker"
)

// Analyzer is identical to the one in nilinfer.go, except that it overrides the run function for
// extra filtering of errors, since the singlechecker does not support error suppression like other
// popular linter drivers.
var Analyzer = &analysis.Analyzer{
	Name:       nilinfer.Analyzer.Name,
	Doc:        nilinfer.Analyzer.Doc,
	Run:        run,
	FactTypes:  nilinfer.Analyzer.FactTypes,
	ResultType: nilinfer.Analyzer.ResultType,
	Requires:   nilinfer.Analyzer.Requires,
}

var (
	// _includeErrorsInFiles is a driver flag for specifying the list of file prefixes to only report errors.
	_includeErrorsInFiles string
	// _excludeErrorsInFiles is a driver flag for specifying the list of file prefixes to not report errors.
	_excludeErrorsInFiles string
	// _printVerdicts is a driver flag for printing the rendered verdicts of the analyzed packages.
	_printVerdicts bool
)

// _stdout serializes the verdict listings of packages analyzed in parallel.
var _stdout sync.Mutex

func run(pass *analysis.Pass) (any, error) {
	// Even if specified to exclude packages from analysis via configurations, nilinfer can still
	// report errors on packages that are not analyzed if a conflicting class spans declarations of
	// an excluded package. The usual way to handle them is to suppress them at the driver level,
	// but singlechecker does not support that yet. Therefore, here we add extra logic to filter
	// the errors.

	// Properly parse the error suppression flags.
	includes, err := parseFilePrefixes(_includeErrorsInFiles)
	if err != nil {
		return nil, fmt.Errorf("parse file prefixes for error inclusion: %w", err)
	}
	excludes, err := parseFilePrefixes(_excludeErrorsInFiles)
	if err != nil {
		return nil, fmt.Errorf("parse file prefixes for error exclusion: %w", err)
	}

	// Override the report function to add error filtering logic.
	report := pass.Report
	pass.Report = func(d analysis.Diagnostic) {
		p := pass.Fset.File(d.Pos).Name()
		for _, e := range excludes {
			if strings.HasPrefix(p, e) {
				return
			}
		}

		for _, i := range includes {
			if strings.HasPrefix(p, i) {
				report(d)
				return
			}
		}
	}

	// Delegate the real analysis run to the original nilinfer analyzer.
	result, err := nilinfer.Analyzer.Run(pass)
	if err != nil || !_printVerdicts {
		return result, err
	}
	if res, ok := result.(*accumulation.Result); ok && res.Inference != nil {
		if err := printVerdicts(pass, res.Inference); err != nil {
			return nil, fmt.Errorf("print verdicts: %w", err)
		}
	}
	return result, nil
}

// printVerdicts writes the rendered verdicts of the package to stdout, after a header line naming
// the package.
func printVerdicts(pass *analysis.Pass, inf *accumulation.Inference) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", pass.Pkg.Path())
	if err := emit.NewRenderer(pass.Pkg, inf.Table, inf.Verdicts).Render(&buf); err != nil {
		return err
	}

	_stdout.Lock()
	defer _stdout.Unlock()
	_, err := os.Stdout.Write(buf.Bytes())
	return err
}

// parseFilePrefixes parses the comma-separated list of file prefixes, converts them to absolute
// file paths, and returns them as a slice.
func parseFilePrefixes(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}

	// Convert the file paths to absolute paths.
	list := strings.Split(s, ",")
	for i := range list {
		p, err := filepath.Abs(list[i])
		if err != nil {
			return nil, fmt.Errorf("convert %q to absolute path: %w", list[i], err)
		}
		list[i] = p
	}
	return list, nil
}

func main() {
	// The flags of config.Analyzer are lifted to the top level so that users can write
	//
	// `nilinfer -flag1 <VALUE1> -flag2 <VALUE> ./...`
	//
	// instead of naming the config analyzer in every flag (`-nilinfer_config.flag1 <VALUE1>`).
	config.Analyzer.Flags.VisitAll(func(f *flag.Flag) { flag.Var(f.Value, f.Name, f.Usage) })

	// Add more flags to the driver for error suppression since singlechecker does not support it.
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get working directory: %v\n", err)
		os.Exit(1)
	}
	flag.StringVar(&_includeErrorsInFiles, "include-errors-in-files", wd, "A comma-separated list of file prefixes to report errors, default is current working directory.")
	flag.StringVar(&_excludeErrorsInFiles, "exclude-errors-in-files", "", "A comma-separated list of file prefixes to exclude from error reporting. This takes precedence over include-errors-in-files.")
	flag.BoolVar(&_printVerdicts, "print-verdicts", false, "Print the inferred nilability of the declared types of every analyzed package.")

	singlechecker.Main(Analyzer)
}
