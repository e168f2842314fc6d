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

// Package upstream exports the verdicts of its exported declarations for package downstream.
package upstream

// Get returns nil unless ok.
func Get(ok bool) *int {
	if ok {
		return new(int)
	}
	return nil
}

// Must never returns nil.
func Must() *int {
	return new(int)
}
