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
package slide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slinkylang/slinky/pkg/ir"
)

func TestFoldDisjointPerIterationAccessFoldsStorageToOne(t *testing.T) {
	buf, i, _ := ir.SymbolId(1), ir.SymbolId(2), ir.SymbolId(3)

	root := &ir.Allocate{
		Sym:      buf,
		Storage:  ir.Heap,
		ElemSize: 8,
		Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.BufMin(buf, 0), Max: ir.BufMax(buf, 0)}}},
		Body: &ir.Loop{
			Sym:    i,
			Mode:   ir.Serial,
			Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(9)},
			Step:   ir.Const(1),
			Body: &ir.CropBuffer{
				Sym:    buf,
				Bounds: ir.BoxExpr{{Min: ir.Var(i), Max: ir.Var(i)}},
				Body:   &ir.CallStmt{Callback: ir.Callback{Name: "produce"}, Outputs: []ir.SymbolId{buf}},
			},
		},
	}

	got := Fold(root)

	alloc, ok := got.(*ir.Allocate)
	require.True(t, ok)
	require.Len(t, alloc.Dims, 1)
	require.NotNil(t, alloc.Dims[0].FoldFactor, "a disjoint per-iteration write should fold storage")
	assert.True(t, alloc.Dims[0].FoldFactor.Equals(ir.Const(1)))

	loop, ok := alloc.Body.(*ir.Loop)
	require.True(t, ok)

	crop, ok := loop.Body.(*ir.CropBuffer)
	require.True(t, ok)
	// The fold case leaves the crop's own bounds untouched; only the
	// allocation's storage shrinks.
	assert.True(t, crop.Bounds[0].Min.Equals(ir.Var(i)))
	assert.True(t, crop.Bounds[0].Max.Equals(ir.Var(i)))
}

func TestFoldMonotoneIncreasingShrinksCropAndSolvesLoopMin(t *testing.T) {
	p, i, c := ir.SymbolId(1), ir.SymbolId(2), ir.SymbolId(3)

	// c[i] = p[i-1] + p[i] + p[i+1], i in [0,9]: p's window [i-1,i+1]
	// overlaps its predecessor's [i-2,i], so only the new upper edge needs
	// recomputing each iteration.
	root := &ir.Allocate{
		Sym:      p,
		Storage:  ir.Heap,
		ElemSize: 8,
		Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.BufMin(p, 0), Max: ir.BufMax(p, 0)}}},
		Body: &ir.Loop{
			Sym:    i,
			Mode:   ir.Serial,
			Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(9)},
			Step:   ir.Const(1),
			Body: &ir.CropBuffer{
				Sym: p,
				Bounds: ir.BoxExpr{{
					Min: ir.Sub(ir.Var(i), ir.Const(1)),
					Max: ir.Add(ir.Var(i), ir.Const(1)),
				}},
				Body: ir.Seq(
					&ir.CallStmt{Callback: ir.Callback{Name: "produce"}, Outputs: []ir.SymbolId{p}},
					&ir.CallStmt{Callback: ir.Callback{Name: "consume"}, Inputs: []ir.SymbolId{p}, Outputs: []ir.SymbolId{c}},
				),
			},
		},
	}

	got := Fold(root)

	alloc, ok := got.(*ir.Allocate)
	require.True(t, ok)
	require.NotNil(t, alloc.Dims[0].FoldFactor, "an overlapping sliding window should still fold storage")

	loop, ok := alloc.Body.(*ir.Loop)
	require.True(t, ok)
	// p[-1] and p[0] must exist before iteration i=0 can read p[i-1] and
	// p[i], so the solve extends the loop min two iterations early.
	assert.True(t, loop.Bounds.Min.Equals(ir.Const(-2)), "expected the loop min to solve to -2, got %v", loop.Bounds.Min)

	crop, ok := loop.Body.(*ir.CropBuffer)
	require.True(t, ok)
	assert.True(t, crop.Bounds[0].Min.Equals(ir.Add(ir.Var(i), ir.Const(1))))
	assert.True(t, crop.Bounds[0].Max.Equals(ir.Add(ir.Var(i), ir.Const(1))))
}

func TestFoldMonotoneIncreasingNonAffineFallsBackToGuard(t *testing.T) {
	p, i, c := ir.SymbolId(1), ir.SymbolId(2), ir.SymbolId(3)

	// p[i..50]: the near edge tracks the loop variable but the far edge is
	// pinned to a fixed horizon, so the new min contributed by shifting the
	// previous iteration's far edge doesn't mention the loop variable at
	// all (k=0). There's no loop-min solve for a k=0 offset, so the pass
	// must fall back to guarding the producer instead of silently leaving
	// the warm-up gap.
	root := &ir.Allocate{
		Sym:      p,
		Storage:  ir.Heap,
		ElemSize: 8,
		Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.BufMin(p, 0), Max: ir.BufMax(p, 0)}}},
		Body: &ir.Loop{
			Sym:    i,
			Mode:   ir.Serial,
			Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(9)},
			Step:   ir.Const(1),
			Body: &ir.CropBuffer{
				Sym:    p,
				Bounds: ir.BoxExpr{{Min: ir.Var(i), Max: ir.Const(50)}},
				Body: ir.Seq(
					&ir.CallStmt{Callback: ir.Callback{Name: "produce"}, Outputs: []ir.SymbolId{p}},
					&ir.CallStmt{Callback: ir.Callback{Name: "consume"}, Inputs: []ir.SymbolId{p}, Outputs: []ir.SymbolId{c}},
				),
			},
		},
	}

	got := Fold(root)

	alloc, ok := got.(*ir.Allocate)
	require.True(t, ok)

	loop, ok := alloc.Body.(*ir.Loop)
	require.True(t, ok)
	assert.True(t, loop.Bounds.Min.Equals(ir.Const(0)), "no affine solve exists, so the loop min must stay put")

	crop, ok := loop.Body.(*ir.CropBuffer)
	require.True(t, ok)
	sel, ok := crop.Bounds[0].Min.(*ir.Select)
	require.True(t, ok, "expected the crop min to be guarded with a Select, got %T", crop.Bounds[0].Min)
	assert.True(t, sel.Cond.Equals(ir.Eq(ir.Var(i), ir.Const(0))))
	assert.True(t, sel.True.Equals(ir.Var(i)), "the guarded branch runs the original window on the first iteration")
}

func TestFoldLeavesParallelLoopsUnfolded(t *testing.T) {
	buf, i := ir.SymbolId(1), ir.SymbolId(2)

	root := &ir.Allocate{
		Sym:      buf,
		Storage:  ir.Heap,
		ElemSize: 8,
		Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.BufMin(buf, 0), Max: ir.BufMax(buf, 0)}}},
		Body: &ir.Loop{
			Sym:    i,
			Mode:   ir.Parallel,
			Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(9)},
			Step:   ir.Const(1),
			Body: &ir.CropBuffer{
				Sym:    buf,
				Bounds: ir.BoxExpr{{Min: ir.Var(i), Max: ir.Var(i)}},
				Body:   &ir.CallStmt{Callback: ir.Callback{Name: "produce"}, Outputs: []ir.SymbolId{buf}},
			},
		},
	}

	got := Fold(root)

	alloc, ok := got.(*ir.Allocate)
	require.True(t, ok)
	assert.Nil(t, alloc.Dims[0].FoldFactor, "parallel loops share no storage across iterations and must not fold")
}
