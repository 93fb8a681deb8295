// Copyright Slinky Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package scopemap provides a stack-of-frames symbol map, used by the
// bounds inferrer, the buffer aliaser and the evaluator to track per-scope
// state (crop regions, runtime values) keyed by ir.SymbolId without
// leaking bindings across sibling scopes.
package scopemap

import "github.com/slinkylang/slinky/pkg/ir"

// Map is a persistent-feeling, mutable-in-place stack of frames mapping
// ir.SymbolId to a value of type T.  PushFrame/PopFrame bracket a lexical
// scope; Set shadows any outer binding within the current frame; Get
// resolves innermost-first.
type Map[T any] struct {
	frames []map[ir.SymbolId]T
}

// New returns an empty map with a single base frame.
func New[T any]() *Map[T] {
	return &Map[T]{frames: []map[ir.SymbolId]T{{}}}
}

// PushFrame opens a new lexical frame and returns a guard that restores the
// prior state when called; callers should `defer m.PushFrame()()`.
func (m *Map[T]) PushFrame() func() {
	m.frames = append(m.frames, map[ir.SymbolId]T{})

	return func() {
		m.frames = m.frames[:len(m.frames)-1]
	}
}

// Set binds sym to value within the current (innermost) frame.
func (m *Map[T]) Set(sym ir.SymbolId, value T) {
	m.frames[len(m.frames)-1][sym] = value
}

// Get resolves sym from the innermost frame outward.
func (m *Map[T]) Get(sym ir.SymbolId) (T, bool) {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if v, ok := m.frames[i][sym]; ok {
			return v, true
		}
	}

	var zero T

	return zero, false
}

// Has reports whether sym is bound in any live frame.
func (m *Map[T]) Has(sym ir.SymbolId) bool {
	_, ok := m.Get(sym)

	return ok
}

// Delete removes sym from the innermost frame that binds it.
func (m *Map[T]) Delete(sym ir.SymbolId) {
	for i := len(m.frames) - 1; i >= 0; i-- {
		if _, ok := m.frames[i][sym]; ok {
			delete(m.frames[i], sym)

			return
		}
	}
}

// Clone returns an independent copy of m: mutating the clone's frames (via
// Set/PushFrame/Delete) never affects m, which lets a Parallel loop hand
// each worker goroutine its own scope built from a shared starting point.
func (m *Map[T]) Clone() *Map[T] {
	frames := make([]map[ir.SymbolId]T, len(m.frames))
	for i, f := range m.frames {
		clone := make(map[ir.SymbolId]T, len(f))
		for k, v := range f {
			clone[k] = v
		}

		frames[i] = clone
	}

	return &Map[T]{frames: frames}
}

// Keys returns every symbol currently bound, across all live frames.
func (m *Map[T]) Keys() []ir.SymbolId {
	seen := make(map[ir.SymbolId]bool)

	var out []ir.SymbolId

	for i := len(m.frames) - 1; i >= 0; i-- {
		for k := range m.frames[i] {
			if !seen[k] {
				seen[k] = true

				out = append(out, k)
			}
		}
	}

	return out
}
