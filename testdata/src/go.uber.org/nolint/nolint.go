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

// Package nolint checks that conflicts inside the scope of a nolint comment are not reported.
package nolint

func deref(x *int) int {
	return *x //nolint:nilinfer
}

//nolint:nilinfer
func derefAll(x *int) int {
	return *x
}

func other(x *int) int {
	return *x //nolint:errcheck // want "nilable value dereferenced: .other.x"
}

func callers() {
	deref(nil)
	derefAll(nil)
	other(nil)
}
