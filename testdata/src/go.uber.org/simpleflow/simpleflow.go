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

// Package simpleflow checks that a nil argument reaching the dereference of a parameter is
// reported at the dereference, unless a nil check on the parameter guards it.
package simpleflow

func deref(x *int) int {
	return *x //want "nilable value dereferenced: .deref.x"
}

func caller() int {
	return deref(nil)
}

func guarded(x *int) int {
	if x != nil {
		return *x
	}
	return 0
}

func callGuarded() int {
	return guarded(nil)
}

func early(x *int) int {
	if x == nil {
		return 0
	}
	return *x
}

func callEarly() int {
	return early(nil)
}

func zeroValue() *int {
	var v *int
	return v
}
