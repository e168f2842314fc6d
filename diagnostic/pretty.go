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
	"os"
	"regexp"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	_codeReferencePattern = regexp.MustCompile("`(.*?)`")
	_pathPattern          = regexp.MustCompile(`"(.*?)"`)
	_nilabilityPattern    = regexp.MustCompile(`(?i)\b(nilable|nonnil)\b`)
)

// Printer colors diagnostic messages.
type Printer struct {
	errorColor, codeColor, pathColor, nilabilityColor *color.Color
}

// NewPrinter returns a printer. Colors are only emitted when enabled is true; messages are
// otherwise left as they are, apart from the "error: " prefix.
func NewPrinter(enabled bool) *Printer {
	p := &Printer{
		errorColor:      color.New(color.FgRed),
		codeColor:       color.New(color.FgHiMagenta),
		pathColor:       color.New(color.FgCyan),
		nilabilityColor: color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.errorColor, p.codeColor, p.pathColor, p.nilabilityColor} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// TerminalColors returns true iff stderr, where drivers print diagnostics, is a terminal and the
// NO_COLOR convention is not in effect.
func TerminalColors() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Sprint pretty prints a message: code references, quoted paths and nilability words are
// highlighted.
func (p *Printer) Sprint(msg string) string {
	msg = _nilabilityPattern.ReplaceAllStringFunc(msg, func(s string) string { return p.nilabilityColor.Sprint(s) })
	msg = _codeReferencePattern.ReplaceAllStringFunc(msg, func(s string) string { return p.codeColor.Sprint(s) })
	msg = _pathPattern.ReplaceAllStringFunc(msg, func(s string) string { return p.pathColor.Sprint(s) })
	return p.errorColor.Sprint("error: ") + msg
}
