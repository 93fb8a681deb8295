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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slinkylang/slinky/pkg/ir"
)

// countChecks walks s, counting ir.Check nodes.  A local, minimal walker is
// used instead of pkg/debugfmt (which itself imports pkg/pipeline for its
// graph format, so a test here can't import it without a cycle).
func countChecks(s ir.Stmt) int {
	switch n := s.(type) {
	case nil:
		return 0
	case *ir.Check:
		return 1
	case *ir.Block:
		return countChecks(n.A) + countChecks(n.B)
	case *ir.LetStmt:
		return countChecks(n.Body)
	case *ir.Loop:
		return countChecks(n.Body)
	case *ir.IfThenElse:
		return countChecks(n.Then) + countChecks(n.Else)
	case *ir.Allocate:
		return countChecks(n.Body)
	case *ir.MakeBuffer:
		return countChecks(n.Body)
	case *ir.CropBuffer:
		return countChecks(n.Body)
	case *ir.CropDim:
		return countChecks(n.Body)
	case *ir.SliceBuffer:
		return countChecks(n.Body)
	case *ir.SliceDim:
		return countChecks(n.Body)
	case *ir.TruncateRank:
		return countChecks(n.Body)
	default:
		return 0
	}
}

// doublePipeline builds a single-stage, single-loop pipeline mapping a
// length-N "in" buffer to a same-shaped "out" buffer through one callback,
// the shape used throughout as the minimal end-to-end scenario.
func doublePipeline(opts BuildOptions) *Pipeline {
	p := New(opts)

	inId := p.AddBuffer(&BufferExpr{
		Name:     "in",
		ElemSize: 8,
		Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(9)}}},
	})
	outId := p.AddBuffer(&BufferExpr{
		Name:     "out",
		ElemSize: 8,
		Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(9)}}},
	})

	i := p.Ctx.Bind("i")

	p.AddFunc(&Func{
		Name:       "double",
		Callback:   ir.Callback{Name: "double"},
		Loops:      []ir.SymbolId{i},
		LoopBounds: []ir.IntervalExpr{{Min: ir.Const(0), Max: ir.Const(9)}},
		LoopModes:  []ir.LoopMode{ir.Serial},
		Inputs:     []InputAccess{{Buffer: inId, Bounds: []ir.IntervalExpr{{Min: ir.Var(i), Max: ir.Var(i)}}}},
		Outputs:    []OutputBinding{{Buffer: outId, Dims: []ir.SymbolId{i}}},
	})

	p.Inputs = []BufferId{inId}
	p.Outputs = []BufferId{outId}

	return p
}

func TestBuildAndOptimizeProducesChecksByDefault(t *testing.T) {
	p := doublePipeline(DefaultOptions)

	root, err := p.BuildAndOptimize()
	require.NoError(t, err)
	assert.NotNil(t, root)

	// Every formal input dimension emits three runtime Check nodes (§4.3
	// step 5).
	assert.Positive(t, countChecks(root))
}

func TestBuildAndOptimizeHonoursNoChecks(t *testing.T) {
	opts := DefaultOptions
	opts.NoChecks = true

	p := doublePipeline(opts)

	root, err := p.BuildAndOptimize()
	require.NoError(t, err)
	assert.Equal(t, 0, countChecks(root))
}

func TestBuildAndOptimizeDetectsCycles(t *testing.T) {
	p := New(DefaultOptions)

	aId := p.AddBuffer(&BufferExpr{Name: "a", ElemSize: 8, Dims: []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(0)}}}})
	bId := p.AddBuffer(&BufferExpr{Name: "b", ElemSize: 8, Dims: []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(0)}}}})

	p.AddFunc(&Func{
		Name:     "a_from_b",
		Callback: ir.Callback{Name: "a_from_b"},
		Inputs:   []InputAccess{{Buffer: bId, Bounds: []ir.IntervalExpr{{Min: ir.Const(0), Max: ir.Const(0)}}}},
		Outputs:  []OutputBinding{{Buffer: aId}},
	})
	p.AddFunc(&Func{
		Name:     "b_from_a",
		Callback: ir.Callback{Name: "b_from_a"},
		Inputs:   []InputAccess{{Buffer: aId, Bounds: []ir.IntervalExpr{{Min: ir.Const(0), Max: ir.Const(0)}}}},
		Outputs:  []OutputBinding{{Buffer: bId}},
	})

	_, err := p.Build()
	assert.Error(t, err)
}
