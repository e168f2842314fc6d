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

// Package annotations checks that in-source annotations pin positions, and that evidence
// disagreeing with an annotation is reported as a contradiction.
package annotations

// nilable(result 0)
func find(ok bool) *int {
	if ok {
		return new(int)
	}
	return nil
}

// nonnil(x)
func must(x *int) int {
	return *x
}

func use() int {
	return must(find(true)) //want "annotation contradicts inferred nilability: .must.x"
}
