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

// Package downstream checks that the verdicts of package upstream are imported as facts.
package downstream

import "go.uber.org/upstream"

func get() int {
	p := upstream.Get(false)
	return *p //want "nilable value dereferenced: .get.p"
}

func must() int {
	p := upstream.Must()
	return *p
}

func checked() int {
	if p := upstream.Get(true); p != nil {
		return *p
	}
	return 0
}
