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

package nullliteral

var a *int = nil

var b *int

func f() *int { //nilable: #0
	return nil
}

type T struct {
	n int
}

func z() *int { //nilable: #0 p
	var p *int
	return p
}

func zf() *T { //nilable: #0 t
	var t *T
	return t
}
