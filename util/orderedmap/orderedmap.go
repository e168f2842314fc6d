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

// Package orderedmap implements a map that remembers insertion order. Exported verdict facts are
// stored in it so that their gob encoding is byte for byte reproducible.
package orderedmap

import (
	"bytes"
	"encoding/gob"
	"io"
	"iter"
)

// OrderedMap is a map iterated in insertion order. The zero value is not usable, see New.
type OrderedMap[K comparable, V any] struct {
	inner map[K]V
	keys  []K
}

// New returns an empty map.
func New[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{inner: make(map[K]V)}
}

// Load returns the value stored for key and whether it was present.
func (m *OrderedMap[K, V]) Load(key K) (V, bool) {
	v, ok := m.inner[key]
	return v, ok
}

// Value returns the value stored for key, the zero value if it is absent.
func (m *OrderedMap[K, V]) Value(key K) V {
	return m.inner[key]
}

// Store sets the value of key. Overwriting a key keeps its original place in the order.
func (m *OrderedMap[K, V]) Store(key K, value V) {
	if _, ok := m.inner[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.inner[key] = value
}

// Len returns the number of keys.
func (m *OrderedMap[K, V]) Len() int { return len(m.keys) }

// All iterates over the pairs in insertion order.
func (m *OrderedMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.inner[k]) {
				return
			}
		}
	}
}

// OrderedRange calls f for each pair in insertion order until f returns false.
func (m *OrderedMap[K, V]) OrderedRange(f func(key K, value V) bool) {
	for k, v := range m.All() {
		if !f(k, v) {
			return
		}
	}
}

// GobEncode encodes the pairs as a flat stream of keys and values.
func (m *OrderedMap[K, V]) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, k := range m.keys {
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		if err := enc.Encode(m.inner[k]); err != nil {
			return nil, err
		}
	}

	if buf.Len() == 0 {
		return nil, nil
	}
	return buf.Bytes(), nil
}

// GobDecode appends the decoded pairs to m.
func (m *OrderedMap[K, V]) GobDecode(b []byte) error {
	if m.inner == nil {
		m.inner = make(map[K]V)
	}
	dec := gob.NewDecoder(bytes.NewBuffer(b))
	for {
		var k K
		if err := dec.Decode(&k); err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return err
		}
		m.Store(k, v)
	}

	return nil
}
