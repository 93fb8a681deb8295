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
package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slinkylang/slinky/pkg/ir"
)

// findAllocate returns the Allocate for tmp within s, looking through Blocks
// and enclosing Allocates, and reports whether one was found.
func findAllocate(s ir.Stmt, tmp ir.SymbolId) (*ir.Allocate, bool) {
	switch n := s.(type) {
	case *ir.Block:
		if a, ok := findAllocate(n.A, tmp); ok {
			return a, true
		}

		return findAllocate(n.B, tmp)
	case *ir.Allocate:
		if n.Sym == tmp {
			return n, true
		}

		return findAllocate(n.Body, tmp)
	default:
		return nil, false
	}
}

func callbackNames(s ir.Stmt) []string {
	switch n := s.(type) {
	case *ir.Block:
		return append(callbackNames(n.A), callbackNames(n.B)...)
	case *ir.CallStmt:
		return []string{n.Callback.Name}
	case *ir.Allocate:
		return callbackNames(n.Body)
	case nil:
		return nil
	default:
		return nil
	}
}

func TestReduceShrinksAllocateToMinimalSpan(t *testing.T) {
	tmp, a, b := ir.SymbolId(1), ir.SymbolId(2), ir.SymbolId(3)

	root := &ir.Allocate{
		Sym:      tmp,
		Storage:  ir.Heap,
		ElemSize: 8,
		Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(0)}}},
		Body: ir.Seq(
			&ir.CallStmt{Callback: ir.Callback{Name: "unrelated_before"}, Inputs: []ir.SymbolId{a}, Outputs: []ir.SymbolId{b}},
			&ir.CallStmt{Callback: ir.Callback{Name: "produce"}, Inputs: []ir.SymbolId{a}, Outputs: []ir.SymbolId{tmp}},
			&ir.CallStmt{Callback: ir.Callback{Name: "consume"}, Inputs: []ir.SymbolId{tmp}, Outputs: []ir.SymbolId{b}},
			&ir.CallStmt{Callback: ir.Callback{Name: "unrelated_after"}, Inputs: []ir.SymbolId{a}, Outputs: []ir.SymbolId{b}},
		),
	}

	got := Reduce(root)

	all := callbackNames(got)
	assert.Equal(t, []string{"unrelated_before", "produce", "consume", "unrelated_after"}, all)

	alloc, ok := findAllocate(got, tmp)
	require.True(t, ok, "expected the Allocate to survive (its symbol is used)")

	inner := callbackNames(alloc.Body)
	assert.Equal(t, []string{"produce", "consume"}, inner, "Allocate should wrap only the statements mentioning it")
}

func TestReduceDropsUnusedAllocation(t *testing.T) {
	tmp, a, b := ir.SymbolId(1), ir.SymbolId(2), ir.SymbolId(3)

	root := &ir.Allocate{
		Sym:      tmp,
		Storage:  ir.Heap,
		ElemSize: 8,
		Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(0)}}},
		Body:     &ir.CallStmt{Callback: ir.Callback{Name: "unrelated"}, Inputs: []ir.SymbolId{a}, Outputs: []ir.SymbolId{b}},
	}

	got := Reduce(root)

	_, ok := findAllocate(got, tmp)
	assert.False(t, ok, "an Allocate never referenced by its body should be dropped entirely")
}
