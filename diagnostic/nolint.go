package diagnostic

import (
	"go/ast"
	"go/token"
	"reflect"
	"slices"
	"strings"

	"go.uber.org/nilinfer/config"
	"go.uber.org/nilinfer/util/analysishelper"
	"go.uber.org/nilinfer/util/tokenhelper"
	"golang.org/x/tools/go/analysis"
)

// NoLintAnalyzer is an analyzer that reads all nilinfer nolint comments of a package and exports
// them as facts. Verdicts of a package are partly decided by its dependencies, so the ranges of
// the dependencies are returned too, and the diagnostic engine does the filtering itself.
var NoLintAnalyzer = &analysis.Analyzer{
	Name:       "nilinfer_nolint_analyzer",
	Doc:        "Read nilinfer's nolint comments and export them as facts for nilinfer's diagnostic engine.",
	Run:        analysishelper.WrapRun(run),
	FactTypes:  []analysis.Fact{new(NoLint)},
	Requires:   []*analysis.Analyzer{},
	ResultType: reflect.TypeOf((*analysishelper.Result[[]Range])(nil)),
}

// NoLint is a fact that stores the ranges of "//nolint:nilinfer" comments for cross-package nolint
// suppression support.
type NoLint struct {
	// Ranges lists the ranges of the nolint scopes in the package.
	Ranges []Range
}

// AFact makes NoLint satisfy the analysis.Fact interface such that it can be exported as a fact.
func (*NoLint) AFact() {}

// Range is a minimal struct that stores the filename and the start and end lines of a nolint scopes.
type Range struct {
	Filename string
	From, To int
}

func run(pass *analysis.Pass) ([]Range, error) {
	ranges := Ranges(pass.Fset, pass.Files)

	// Import all nolint ranges from upstream.
	var upstreamRanges []Range
	for _, f := range pass.AllPackageFacts() {
		upstreamNoLintRanges, ok := f.Fact.(*NoLint)
		if !ok {
			continue
		}
		upstreamRanges = append(upstreamRanges, upstreamNoLintRanges.Ranges...)
	}

	if len(ranges) > 0 {
		pass.ExportPackageFact(&NoLint{Ranges: ranges})
	}
	return slices.Concat(ranges, upstreamRanges), nil
}

// Ranges returns the line ranges covered by nolint comments naming nilinfer in the files.
func Ranges(fset *token.FileSet, files []*ast.File) []Range {
	var ranges []Range
	for _, f := range files {
		// CommentMap will correctly associate comments to the largest node group
		// applicable. This handles inline comments that might trail a large
		// assignment and will apply the comment to the entire assignment.
		commentMap := ast.NewCommentMap(fset, f, f.Comments)
		for node, groups := range commentMap {
			for _, group := range groups {
				for _, comm := range group.List {
					if !nolintContainsNilInfer(comm.Text) {
						continue
					}
					fromPos, toPos := fset.Position(node.Pos()), fset.Position(node.End())
					ranges = append(ranges, Range{Filename: tokenhelper.RelToCwd(fromPos.Filename), From: fromPos.Line, To: toPos.Line})
				}
			}
		}
	}
	// Comment maps iterate in random order.
	slices.SortFunc(ranges, func(a, b Range) int {
		if a.Filename != b.Filename {
			return strings.Compare(a.Filename, b.Filename)
		}
		if a.From != b.From {
			return a.From - b.From
		}
		return a.To - b.To
	})
	return slices.Compact(ranges)
}

// suppressed returns true iff the position lies in one of the ranges.
func suppressed(pos token.Position, ranges []Range) bool {
	for _, r := range ranges {
		if r.Filename == pos.Filename && r.From <= pos.Line && pos.Line <= r.To {
			return true
		}
	}
	return false
}

// https://github.com/bazel-contrib/rules_go/blob/eb13b736d9568044427f23359329155e67071948/go/tools/builders/nolint.go#L21

// nolintContainsNilInfer checks if the comment is a nolint directive covering nilinfer, either
// explicitly, through "all", or by naming no linter at all.
func nolintContainsNilInfer(text string) bool {
	text = strings.TrimLeft(text, "/ ")
	if !strings.HasPrefix(text, "nolint") {
		return false
	}

	// strip explanation comments
	split := strings.Split(text, "//")
	text = strings.TrimSpace(split[0])

	parts := strings.Split(text, ":")
	if len(parts) == 1 {
		return true
	}
	for _, linter := range strings.Split(strings.TrimSpace(parts[1]), ",") {
		if strings.EqualFold(linter, "all") || strings.EqualFold(linter, config.NoLintName) {
			return true
		}
	}
	return false
}
