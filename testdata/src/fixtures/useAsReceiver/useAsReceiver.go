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

package useasreceiver

type counter struct {
	n int
}

func (c *counter) inc() { //nilable:
	c.n++
}

func (c *counter) safe() int { //nilable: c
	if c == nil {
		return 0
	}
	return c.n
}

func run(a, b *counter) int { //nilable: b
	a.inc()
	return b.safe()
}

func start() int {
	return run(&counter{}, nil)
}
