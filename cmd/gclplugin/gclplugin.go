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

// Package gclplugin implements the golangci-lint's module plugin interface for nilinfer to be used
// as a private linter in golangci-lint. See more details at
// https://golangci-lint.run/plugins/module-plugins/.
package gclplugin

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/golangci/plugin-module-register/register"
	"go.uber.org/nilinfer"
	"go.uber.org/nilinfer/config"
	"golang.org/x/tools/go/analysis"
)

func init() {
	register.Plugin(nilinfer.Analyzer.Name, New)
}

// New returns the golangci-lint plugin that wraps the nilinfer analyzer. The settings are the
// flags of the config analyzer; YAML booleans are accepted for boolean flags.
func New(settings any) (register.LinterPlugin, error) {
	if settings == nil {
		return &Plugin{}, nil
	}
	s, ok := settings.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expect nilinfer's configurations to be a map from flag names to "+
			"values (similar to command line flags), got %T", settings)
	}
	conf := make(map[string]string, len(s))
	for k, v := range s {
		switch v := v.(type) {
		case string:
			conf[k] = v
		case bool:
			conf[k] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("expect nilinfer's configuration value for %q to be a string or a bool, got %T", k, v)
		}
	}

	return &Plugin{conf: conf}, nil
}

// Plugin is the nilinfer plugin wrapper for golangci-lint.
type Plugin struct {
	conf map[string]string
}

// BuildAnalyzers builds the nilinfer analyzer with the configurations applied to the config
// analyzer, in flag name order.
func (p *Plugin) BuildAnalyzers() ([]*analysis.Analyzer, error) {
	names := make([]string, 0, len(p.conf))
	for k := range p.conf {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		if err := config.Analyzer.Flags.Set(k, p.conf[k]); err != nil {
			return nil, fmt.Errorf("set config flag %s with %s: %w", k, p.conf[k], err)
		}
	}

	return []*analysis.Analyzer{nilinfer.Analyzer}, nil
}

// GetLoadMode returns the load mode of the nilinfer plugin (requiring types info).
func (p *Plugin) GetLoadMode() string { return register.LoadModeTypesInfo }
