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

package diagnostic

import (
	"fmt"
	"go/token"
	"strings"

	"go.uber.org/nilinfer/constraint"
	"go.uber.org/nilinfer/util/tokenhelper"
)

type nilFlow struct {
	nilPath    []node // stores nil path of the flow from nilable source to conflict point
	nonnilPath []node // stores non-nil path of the flow from conflict point to dereference point
}

// addNilPathNode adds a new node to the nil path. The nil path is discovered backwards, from the
// conflicting class to the source of nilability, so nodes are prepended.
func (n *nilFlow) addNilPathNode(nd node) {
	n.nilPath = append([]node{nd}, n.nilPath...)
}

// addNonNilPathNode adds a new node to the non-nil path.
func (n *nilFlow) addNonNilPathNode(nd node) {
	n.nonnilPath = append(n.nonnilPath, nd)
}

// String converts a nilFlow to a string representation, where each entry is the flow of the form: `<pos>: <reason>`
func (n *nilFlow) String() string {
	var flow []string
	for _, nd := range n.nilPath {
		flow = append(flow, nd.String())
	}
	for _, nd := range n.nonnilPath {
		flow = append(flow, nd.String())
	}
	return "\n" + strings.Join(flow, "\n")
}

// key identifies the nil source of the flow for grouping.
func (n *nilFlow) key() string {
	if len(n.nilPath) == 0 {
		return ""
	}
	return n.nilPath[0].String()
}

type node struct {
	position token.Position
	reason   string
}

// newNode creates a node from a cause, resolving its source position.
func newNode(fset *token.FileSet, cause constraint.Cause) node {
	nd := node{reason: cause.String()}
	if cause.Pos.IsValid() {
		nd.position = fset.Position(cause.Pos)
		nd.position.Filename = tokenhelper.RelToCwd(nd.position.Filename)
	}
	return nd
}

func (n *node) String() string {
	posStr := "<no pos info>"
	if n.position.IsValid() {
		posStr = n.position.String()
	}
	return fmt.Sprintf("\t- %s: %s", posStr, n.reason)
}
