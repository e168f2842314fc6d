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

// Package inference checks the propagation of nilability through returns, assignments and
// loops over linked structures.
package inference

type T struct {
	next *T
	v    int
}

func length(t *T) int {
	n := 0
	for t != nil {
		n += t.v
		t = t.next
	}
	return n
}

func head(t *T) int {
	return t.v //want "nilable value dereferenced: .head.t"
}

func callHead() int {
	return head(nil)
}

func mayNil(ok bool) *T {
	if ok {
		return &T{}
	}
	return nil
}

func useMayNil() int {
	t := mayNil(false)
	return t.v //want "nilable value dereferenced: .useMayNil.t"
}

func useChecked() int {
	if t := mayNil(true); t != nil {
		return t.v
	}
	return 0
}
