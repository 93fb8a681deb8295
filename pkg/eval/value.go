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

// Package eval is the statement-tree interpreter (§4.9): it walks the
// fully-optimised Stmt produced by the builder passes against a scope
// binding every SymbolId to either a scalar or a buffer, dispatching each
// node by its imperative meaning and invoking user callbacks through a
// Registry.
package eval

import "github.com/slinkylang/slinky/pkg/ir"

// Value is what a SymbolId is bound to during evaluation: either a scalar
// Index (a loop variable, a Let binding, a scalar formal argument) or a
// live buffer descriptor.
type Value struct {
	Scalar ir.Index
	Buf    *ir.Buffer
}

// ScalarValue wraps a plain Index.
func ScalarValue(v ir.Index) Value { return Value{Scalar: v} }

// BufferValue wraps a buffer descriptor.
func BufferValue(b *ir.Buffer) Value { return Value{Buf: b} }
