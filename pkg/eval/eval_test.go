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
package eval

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slinkylang/slinky/pkg/ir"
)

func le64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))

	return b
}

func vec(vals ...int64) *ir.Buffer {
	base := make([]byte, len(vals)*8)
	for i, v := range vals {
		copy(base[i*8:], le64(v))
	}

	return &ir.Buffer{Base: base, ElemSize: 8, Dims: []ir.Dim{{Min: 0, Extent: ir.Index(len(vals)), Stride: 8}}}
}

func readVec(b *ir.Buffer) []int64 {
	out := make([]int64, b.Dims[0].Extent)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b.At([]ir.Index{ir.Index(i)})))
	}

	return out
}

// doubleCallback multiplies each input cell by two into the same-shaped
// output, exercising CallStmt/mustBuffer.
func doubleCallback(inputs, outputs []*ir.Buffer) ir.Index {
	in, out := inputs[0], outputs[0]
	for i := ir.Index(0); i < in.Dims[0].Extent; i++ {
		coords := []ir.Index{i}
		v := int64(binary.LittleEndian.Uint64(in.At(coords)))
		binary.LittleEndian.PutUint64(out.At(coords), uint64(v*2))
	}

	return Success
}

func TestEvaluateCallStmt(t *testing.T) {
	inSym, outSym := ir.SymbolId(1), ir.SymbolId(2)

	root := &ir.CallStmt{
		Callback: ir.Callback{Name: "double"},
		Inputs:   []ir.SymbolId{inSym},
		Outputs:  []ir.SymbolId{outSym},
	}

	in := vec(1, 2, 3)
	out := vec(0, 0, 0)

	ec := NewContext()
	ec.Registry.Register("double", doubleCallback)

	initial := map[ir.SymbolId]Value{inSym: BufferValue(in), outSym: BufferValue(out)}

	code := Evaluate(context.Background(), root, initial, ec)

	require.Equal(t, Success, code)
	assert.Equal(t, []int64{2, 4, 6}, readVec(out))
}

func TestEvaluateCheckFailure(t *testing.T) {
	root := &ir.Check{Cond: ir.Const(0), Message: "always fails"}

	code := Evaluate(context.Background(), root, nil, NewContext())
	assert.Equal(t, CheckFailed, code)
}

func TestEvaluateLoopSerial(t *testing.T) {
	i := ir.SymbolId(1)
	inSym, outSym := ir.SymbolId(2), ir.SymbolId(3)

	// Runs an uncropped whole-buffer identity CallStmt once per iteration
	// of a serial loop, to exercise Loop/PushFrame scoping independent of
	// the callback's own iteration.
	root := &ir.Loop{
		Sym:    i,
		Mode:   ir.Serial,
		Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(2)},
		Step:   ir.Const(1),
		Body: &ir.CallStmt{
			Callback: ir.Callback{Name: "identity"},
			Inputs:   []ir.SymbolId{inSym},
			Outputs:  []ir.SymbolId{outSym},
		},
	}

	in := vec(5, 6, 7)
	out := vec(0, 0, 0)

	ec := NewContext()
	ec.Registry.Register("identity", func(inputs, outputs []*ir.Buffer) ir.Index {
		copy(outputs[0].Base, inputs[0].Base)
		return Success
	})

	initial := map[ir.SymbolId]Value{inSym: BufferValue(in), outSym: BufferValue(out)}

	code := Evaluate(context.Background(), root, initial, ec)

	require.Equal(t, Success, code)
	assert.Equal(t, []int64{5, 6, 7}, readVec(out))
}

func TestEvaluateAllocateAndFree(t *testing.T) {
	sym := ir.SymbolId(1)

	root := &ir.Allocate{
		Sym:      sym,
		Storage:  ir.Stack,
		ElemSize: 8,
		Dims: []ir.DimExpr{
			{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(3)}},
		},
		Body: &ir.Check{Cond: ir.Eq(ir.AbsOf(ir.Const(ir.Index(4))), ir.Const(4)), Message: "sanity"},
	}

	code := Evaluate(context.Background(), root, nil, NewContext())
	assert.Equal(t, Success, code)
}

func TestEvaluateAliasedLetStmtSharesBuffer(t *testing.T) {
	src, alias := ir.SymbolId(1), ir.SymbolId(2)

	root := &ir.LetStmt{
		Sym:   alias,
		Value: ir.Var(src),
		Body: &ir.CallStmt{
			Callback: ir.Callback{Name: "identity"},
			Inputs:   []ir.SymbolId{alias},
			Outputs:  []ir.SymbolId{alias},
		},
	}

	buf := vec(9)

	ec := NewContext()
	ec.Registry.Register("identity", func(inputs, outputs []*ir.Buffer) ir.Index { return Success })

	code := Evaluate(context.Background(), root, map[ir.SymbolId]Value{src: BufferValue(buf)}, ec)
	assert.Equal(t, Success, code)
}
