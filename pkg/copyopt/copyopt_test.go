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
package copyopt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slinkylang/slinky/pkg/ir"
)

func TestOptimizePromotesCopyMarkedCallToCopyStmt(t *testing.T) {
	i, src, dst := ir.SymbolId(1), ir.SymbolId(2), ir.SymbolId(3)

	root := &ir.Loop{
		Sym:    i,
		Mode:   ir.Serial,
		Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(9)},
		Step:   ir.Const(1),
		Body: &ir.CallStmt{
			Callback: ir.Callback{Name: "copy", IsCopy: true},
			Inputs:   []ir.SymbolId{src},
			Outputs:  []ir.SymbolId{dst},
		},
	}

	got := Optimize(root)

	loop, ok := got.(*ir.Loop)
	require.True(t, ok)

	cp, ok := loop.Body.(*ir.CopyStmt)
	require.True(t, ok, "expected copy-marked CallStmt to become a CopyStmt")

	assert.Equal(t, src, cp.Src)
	assert.Equal(t, dst, cp.Dst)
	require.Len(t, cp.SrcX, 1)
	assert.True(t, cp.SrcX[0].Equals(ir.Var(i)))
}

func TestOptimizeLeavesOrdinaryCallsAlone(t *testing.T) {
	src, dst := ir.SymbolId(1), ir.SymbolId(2)

	root := &ir.CallStmt{Callback: ir.Callback{Name: "compute"}, Inputs: []ir.SymbolId{src}, Outputs: []ir.SymbolId{dst}}

	got := Optimize(root)

	call, ok := got.(*ir.CallStmt)
	require.True(t, ok)
	assert.Equal(t, "compute", call.Callback.Name)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	src, dst := ir.SymbolId(1), ir.SymbolId(2)

	root := &ir.CallStmt{Callback: ir.Callback{Name: "copy", IsCopy: true}, Inputs: []ir.SymbolId{src}, Outputs: []ir.SymbolId{dst}}

	once := Optimize(root)
	twice := Optimize(once)

	assert.IsType(t, &ir.CopyStmt{}, twice)
}
