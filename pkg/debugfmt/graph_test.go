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
package debugfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slinkylang/slinky/pkg/ir"
	"github.com/slinkylang/slinky/pkg/pipeline"
)

func buildDoublePipeline(opts pipeline.BuildOptions) *pipeline.Pipeline {
	p := pipeline.New(opts)

	inId := p.AddBuffer(&pipeline.BufferExpr{
		Name:     "in",
		ElemSize: 8,
		Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(9)}}},
	})
	outId := p.AddBuffer(&pipeline.BufferExpr{
		Name:     "out",
		ElemSize: 8,
		Dims:     []ir.DimExpr{{Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(9)}}},
	})

	i := p.Ctx.Bind("i")

	p.AddFunc(&pipeline.Func{
		Name:       "double",
		Callback:   ir.Callback{Name: "double"},
		Loops:      []ir.SymbolId{i},
		LoopBounds: []ir.IntervalExpr{{Min: ir.Const(0), Max: ir.Const(9)}},
		LoopModes:  []ir.LoopMode{ir.Serial},
		Inputs: []pipeline.InputAccess{
			{Buffer: inId, Bounds: []ir.IntervalExpr{{Min: ir.Var(i), Max: ir.Var(i)}}},
		},
		Outputs: []pipeline.OutputBinding{{Buffer: outId, Dims: []ir.SymbolId{i}}},
	})

	p.Inputs = []pipeline.BufferId{inId}
	p.Outputs = []pipeline.BufferId{outId}

	return p
}

func TestGraphRoundTrip(t *testing.T) {
	orig := buildDoublePipeline(pipeline.DefaultOptions)

	text := WriteGraph(orig)

	got, err := ReadGraph(text, pipeline.DefaultOptions)
	require.NoError(t, err)

	require.Len(t, got.Buffers, len(orig.Buffers))
	require.Len(t, got.Funcs, len(orig.Funcs))

	assert.Equal(t, "in", got.Buffer(got.Inputs[0]).Name)
	assert.Equal(t, "out", got.Buffer(got.Outputs[0]).Name)
	assert.Equal(t, orig.Funcs[0].Callback.Name, got.Funcs[0].Callback.Name)
	assert.Equal(t, len(orig.Funcs[0].Loops), len(got.Funcs[0].Loops))

	// Re-emitting the parsed graph should be stable (idempotent print).
	assert.Equal(t, text, WriteGraph(got))
}

func TestGraphRoundTripPreservesOptimization(t *testing.T) {
	orig := buildDoublePipeline(pipeline.DefaultOptions)
	text := WriteGraph(orig)

	got, err := ReadGraph(text, pipeline.DefaultOptions)
	require.NoError(t, err)

	root, err := got.BuildAndOptimize()
	require.NoError(t, err)
	assert.NotNil(t, root)
}
