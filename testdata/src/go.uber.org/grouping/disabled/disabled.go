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

// Package disabled checks that every conflict is reported on its own when grouping is off.
package disabled

var n *int = nil

func a(x *int) int { return *x } //want "nilable value dereferenced: .a.x"

func b(y *int) int { return *y } //want "nilable value dereferenced: .b.y"

func c() {
	a(n)
	b(n)
}
