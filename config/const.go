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

package config

// This file hosts non-user-configurable parameters --- these are for development and testing purposes only.

// NilInferNoInferString is the string that may be inserted into the docstring for a package to
// prevent nilinfer from propagating evidence in that package: only pins (annotations, primitive
// and opaque slots) decide the verdicts. This is useful for unit tests of the annotation layer.
const NilInferNoInferString = "<nilinfer no inference>"

const uberPkgPathPrefix = "go.uber.org"

// NilInferPkgPathPrefix is the package prefix for nilinfer.
const NilInferPkgPathPrefix = uberPkgPathPrefix + "/nilinfer"

// BundleVersionConstraint is the semantic version constraint an annotation bundle must satisfy.
const BundleVersionConstraint = "^1.0.0"

// NoLintName is the linter name recognized in nolint comments.
const NoLintName = "nilinfer"
