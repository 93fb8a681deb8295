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
package pipeline

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slinkylang/slinky/pkg/eval"
	"github.com/slinkylang/slinky/pkg/ir"
)

func e2eVec(vals ...int64) *ir.Buffer {
	base := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(base[i*8:], uint64(v))
	}

	return &ir.Buffer{Base: base, ElemSize: 8, Dims: []ir.Dim{{Min: 0, Extent: ir.Index(len(vals)), Stride: 8}}}
}

func e2eReadVec(b *ir.Buffer) []int64 {
	out := make([]int64, b.Dims[0].Extent)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b.At([]ir.Index{ir.Index(i)})))
	}

	return out
}

// maxClampPipeline builds a three-stage pipeline computing
// out[i] = max(a[i]+b[i], 0) * c[i], the shape used by scenario 3: two
// intermediates (the sum and the clamp) each consumed in full, elementwise,
// by exactly one downstream call, so both should end up aliased straight
// into out rather than allocated separately.
func maxClampPipeline() (*Pipeline, ir.SymbolId, ir.SymbolId, ir.SymbolId, ir.SymbolId) {
	p := New(DefaultOptions)

	dims := func() []ir.DimExpr {
		return []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(5)}}}
	}

	aId := p.AddBuffer(&BufferExpr{Name: "a", ElemSize: 8, Dims: dims()})
	bId := p.AddBuffer(&BufferExpr{Name: "b", ElemSize: 8, Dims: dims()})
	cId := p.AddBuffer(&BufferExpr{Name: "c", ElemSize: 8, Dims: dims()})
	outId := p.AddBuffer(&BufferExpr{Name: "out", ElemSize: 8, Dims: dims()})
	sumId := p.AddBuffer(&BufferExpr{Name: "tmp_sum", ElemSize: 8, Dims: []ir.DimExpr{{}}})
	clampId := p.AddBuffer(&BufferExpr{Name: "tmp_clamp", ElemSize: 8, Dims: []ir.DimExpr{{}}})

	sumSym := p.Buffer(sumId).Sym
	clampSym := p.Buffer(clampId).Sym
	outSym := p.Buffer(outId).Sym

	fullOf := func(sym ir.SymbolId) []ir.IntervalExpr {
		return []ir.IntervalExpr{{Min: ir.BufMin(sym, 0), Max: ir.BufMax(sym, 0)}}
	}

	p.AddFunc(&Func{
		Name:     "sum",
		Callback: ir.Callback{Name: "sum"},
		Inputs: []InputAccess{
			{Buffer: aId, Bounds: fullOf(sumSym)},
			{Buffer: bId, Bounds: fullOf(sumSym)},
		},
		Outputs: []OutputBinding{{Buffer: sumId}},
	})

	p.AddFunc(&Func{
		Name:     "clampmax",
		Callback: ir.Callback{Name: "clampmax"},
		Inputs:   []InputAccess{{Buffer: sumId, Bounds: fullOf(clampSym)}},
		Outputs:  []OutputBinding{{Buffer: clampId}},
	})

	p.AddFunc(&Func{
		Name:     "mul",
		Callback: ir.Callback{Name: "mul"},
		Inputs: []InputAccess{
			{Buffer: clampId, Bounds: fullOf(outSym)},
			{Buffer: cId, Bounds: fullOf(outSym)},
		},
		Outputs: []OutputBinding{{Buffer: outId}},
	})

	p.Inputs = []BufferId{aId, bId, cId}
	p.Outputs = []BufferId{outId}

	return p, p.Buffer(aId).Sym, p.Buffer(bId).Sym, p.Buffer(cId).Sym, outSym
}

func TestBuildAndOptimizeMaxClampScenario(t *testing.T) {
	p, aSym, bSym, cSym, outSym := maxClampPipeline()

	root, err := p.BuildAndOptimize()
	require.NoError(t, err)
	require.NotNil(t, root)

	// §4.3 step 5 runs for every formal input dimension.
	assert.Positive(t, countChecks(root))

	// Neither intermediate should survive as a separate Allocate: both are
	// read in full by exactly one elementwise consumer, so §4.5 aliases
	// them straight into out.
	assert.False(t, containsAllocate(root), "expected both intermediates to be aliased away")

	a := e2eVec(1, -5, 3, -2, 0, 4)
	b := e2eVec(2, 1, -10, 5, 0, -1)
	c := e2eVec(2, 2, 2, 2, 2, 2)
	out := e2eVec(0, 0, 0, 0, 0, 0)

	ec := eval.NewContext()
	ec.Registry.Register("sum", func(inputs, outputs []*ir.Buffer) ir.Index {
		x, y, o := inputs[0], inputs[1], outputs[0]
		for i := ir.Index(0); i < o.Dims[0].Extent; i++ {
			coords := []ir.Index{i}
			xv := int64(binary.LittleEndian.Uint64(x.At(coords)))
			yv := int64(binary.LittleEndian.Uint64(y.At(coords)))
			binary.LittleEndian.PutUint64(o.At(coords), uint64(xv+yv))
		}

		return eval.Success
	})
	ec.Registry.Register("clampmax", func(inputs, outputs []*ir.Buffer) ir.Index {
		in, o := inputs[0], outputs[0]
		for i := ir.Index(0); i < o.Dims[0].Extent; i++ {
			coords := []ir.Index{i}
			v := int64(binary.LittleEndian.Uint64(in.At(coords)))
			if v < 0 {
				v = 0
			}
			binary.LittleEndian.PutUint64(o.At(coords), uint64(v))
		}

		return eval.Success
	})
	ec.Registry.Register("mul", func(inputs, outputs []*ir.Buffer) ir.Index {
		x, y, o := inputs[0], inputs[1], outputs[0]
		for i := ir.Index(0); i < o.Dims[0].Extent; i++ {
			coords := []ir.Index{i}
			xv := int64(binary.LittleEndian.Uint64(x.At(coords)))
			yv := int64(binary.LittleEndian.Uint64(y.At(coords)))
			binary.LittleEndian.PutUint64(o.At(coords), uint64(xv*yv))
		}

		return eval.Success
	})

	initial := map[ir.SymbolId]eval.Value{
		aSym:   eval.BufferValue(a),
		bSym:   eval.BufferValue(b),
		cSym:   eval.BufferValue(c),
		outSym: eval.BufferValue(out),
	}

	code := eval.Evaluate(context.Background(), root, initial, ec)
	require.Equal(t, eval.Success, code)

	assert.Equal(t, []int64{6, 0, 0, 6, 0, 6}, e2eReadVec(out))
}

func containsAllocate(s ir.Stmt) bool {
	switch n := s.(type) {
	case nil:
		return false
	case *ir.Allocate:
		return true
	case *ir.Block:
		return containsAllocate(n.A) || containsAllocate(n.B)
	case *ir.LetStmt:
		return containsAllocate(n.Body)
	case *ir.Loop:
		return containsAllocate(n.Body)
	case *ir.IfThenElse:
		return containsAllocate(n.Then) || containsAllocate(n.Else)
	case *ir.MakeBuffer:
		return containsAllocate(n.Body)
	case *ir.CropBuffer:
		return containsAllocate(n.Body)
	case *ir.CropDim:
		return containsAllocate(n.Body)
	case *ir.SliceBuffer:
		return containsAllocate(n.Body)
	case *ir.SliceDim:
		return containsAllocate(n.Body)
	case *ir.TruncateRank:
		return containsAllocate(n.Body)
	default:
		return false
	}
}
