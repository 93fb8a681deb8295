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
package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slinkylang/slinky/pkg/ir"
)

// elementwiseAlloc builds an Allocate whose sole consumer reads exactly the
// region out's own shape demands, the shape §4.5 eliminates by binding tmp
// directly to the consumer's output.
func elementwiseAlloc(tmp, in, out ir.SymbolId) ir.Stmt {
	return &ir.Allocate{
		Sym:      tmp,
		Storage:  ir.Heap,
		ElemSize: 8,
		// Post-inference, tmp's own declared dims already carry whatever its
		// sole consumer demands.
		Dims: []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.BufMin(out, 0), Max: ir.BufMax(out, 0)}}},
		Body: ir.Seq(
			&ir.CallStmt{Callback: ir.Callback{Name: "produce"}, Inputs: []ir.SymbolId{in}, Outputs: []ir.SymbolId{tmp}},
			&ir.CropBuffer{
				Sym:    tmp,
				Bounds: ir.BoxExpr{{Min: ir.BufMin(out, 0), Max: ir.BufMax(out, 0)}},
				Body:   &ir.CallStmt{Callback: ir.Callback{Name: "consume"}, Inputs: []ir.SymbolId{tmp}, Outputs: []ir.SymbolId{out}},
			},
		),
	}
}

func TestEliminateAliasesElementwiseAllocation(t *testing.T) {
	tmp, in, out := ir.SymbolId(1), ir.SymbolId(2), ir.SymbolId(3)

	root := elementwiseAlloc(tmp, in, out)

	got := Eliminate(root)

	let, ok := got.(*ir.LetStmt)
	require.True(t, ok, "expected the Allocate to become a LetStmt aliasing %v", out)
	assert.Equal(t, tmp, let.Sym)
	assert.True(t, let.Value.Equals(ir.Var(out)))
}

func TestEliminateChainsResolveToUltimateTarget(t *testing.T) {
	a, b, in, out := ir.SymbolId(1), ir.SymbolId(2), ir.SymbolId(3), ir.SymbolId(4)

	// a's sole consumer writes into b, and b's sole consumer writes into
	// out; both should alias directly to out rather than to each other.
	root := &ir.Allocate{
		Sym:      a,
		Storage:  ir.Heap,
		ElemSize: 8,
		// Post-inference, each intermediate's own dims already carry what
		// its sole consumer demands: a feeds b's whole shape, b feeds out's.
		Dims: []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.BufMin(b, 0), Max: ir.BufMax(b, 0)}}},
		Body: ir.Seq(
			&ir.CallStmt{Callback: ir.Callback{Name: "produce"}, Inputs: []ir.SymbolId{in}, Outputs: []ir.SymbolId{a}},
			&ir.CropBuffer{
				Sym:    a,
				Bounds: ir.BoxExpr{{Min: ir.BufMin(b, 0), Max: ir.BufMax(b, 0)}},
				Body: &ir.Allocate{
					Sym:      b,
					Storage:  ir.Heap,
					ElemSize: 8,
					Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.BufMin(out, 0), Max: ir.BufMax(out, 0)}}},
					Body: ir.Seq(
						&ir.CallStmt{Callback: ir.Callback{Name: "step2"}, Inputs: []ir.SymbolId{a}, Outputs: []ir.SymbolId{b}},
						&ir.CropBuffer{
							Sym:    b,
							Bounds: ir.BoxExpr{{Min: ir.BufMin(out, 0), Max: ir.BufMax(out, 0)}},
							Body:   &ir.CallStmt{Callback: ir.Callback{Name: "step3"}, Inputs: []ir.SymbolId{b}, Outputs: []ir.SymbolId{out}},
						},
					),
				},
			},
		),
	}

	got := Eliminate(root)

	outerLet, ok := got.(*ir.LetStmt)
	require.True(t, ok, "expected a's Allocate to become a LetStmt")
	assert.Equal(t, a, outerLet.Sym)
	assert.True(t, outerLet.Value.Equals(ir.Var(out)), "a should alias directly to out, not to b")

	innerLet, ok := findLetStmt(outerLet.Body, b)
	require.True(t, ok, "expected b's Allocate to become a LetStmt")
	assert.True(t, innerLet.Value.Equals(ir.Var(out)), "b should alias directly to out")
}

func findLetStmt(s ir.Stmt, sym ir.SymbolId) (*ir.LetStmt, bool) {
	switch n := s.(type) {
	case *ir.Block:
		if let, ok := findLetStmt(n.A, sym); ok {
			return let, true
		}

		return findLetStmt(n.B, sym)
	case *ir.LetStmt:
		if n.Sym == sym {
			return n, true
		}

		return findLetStmt(n.Body, sym)
	case *ir.CropBuffer:
		return findLetStmt(n.Body, sym)
	default:
		return nil, false
	}
}

func TestEliminateLeavesNonElementwiseAllocationAlone(t *testing.T) {
	tmp, in, out := ir.SymbolId(1), ir.SymbolId(2), ir.SymbolId(3)

	// The crop covers only [0,0], not the full [BufMin(out,0),BufMax(out,0)]
	// region out's own shape demands, so the consumer isn't elementwise.
	root := &ir.Allocate{
		Sym:      tmp,
		Storage:  ir.Heap,
		ElemSize: 8,
		// Post-inference, tmp's own dims already carry the single point its
		// consumer demands, not out's full shape.
		Dims: []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(0)}}},
		Body: ir.Seq(
			&ir.CallStmt{Callback: ir.Callback{Name: "produce"}, Inputs: []ir.SymbolId{in}, Outputs: []ir.SymbolId{tmp}},
			&ir.CropBuffer{
				Sym:    tmp,
				Bounds: ir.BoxExpr{{Min: ir.Const(0), Max: ir.Const(0)}},
				Body:   &ir.CallStmt{Callback: ir.Callback{Name: "consume"}, Inputs: []ir.SymbolId{tmp}, Outputs: []ir.SymbolId{out}},
			},
		),
	}

	got := Eliminate(root)

	_, ok := got.(*ir.Allocate)
	assert.True(t, ok, "expected the Allocate to survive when the consumer isn't elementwise")
}
