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

// Package pipeline holds the declarative pipeline graph (§3.5) and the
// pass that lowers it into the initial statement tree (§2), the one part
// of the builder that talks about producer/consumer Func nodes rather than
// pure IR.  Cross-references between BufferExpr and Func are indices into
// the Pipeline's own arenas, not pointers, so a cyclic graph (forbidden,
// but possible to construct by mistake) can be detected rather than
// leaking into Go's ownership model.
package pipeline

import "github.com/slinkylang/slinky/pkg/ir"

// BufferId indexes Pipeline.Buffers.
type BufferId int

// FuncId indexes Pipeline.Funcs.

type FuncId int

// InvalidFunc marks a BufferExpr with no producer, i.e. a formal input.
const InvalidFunc FuncId = -1

// ComputeAt names the program point at which an intermediate buffer's
// producer is computed: either once at the root (before the whole
// remaining pipeline; the default), or nested inside one specific
// consumer's loop, identified by that loop's symbol.
type ComputeAt struct {
	AtRoot  bool
	LoopVar ir.SymbolId
}

// Root is the default compute_at: the producer runs once, before any
// consumer loop.
var Root = ComputeAt{AtRoot: true}

// At schedules a producer to run nested inside the loop bound to sym.
func At(sym ir.SymbolId) ComputeAt {
	return ComputeAt{LoopVar: sym}
}

// BufferExpr is a symbolic n-D buffer node (§3.5).  Exactly one producer
// (InvalidFunc for formal inputs); any number of consumers.
// BufferExpr's Dims serves two purposes depending on whether the buffer is
// a formal input or an intermediate. For a formal input, each dim's
// Bounds/Stride/FoldFactor describe the caller's declared shape and are
// used to emit the §4.3 step-5 runtime Check nodes. For an intermediate,
// only the slice length (the rank) is consulted by Build: the initial
// Allocate node it emits always seeds Bounds/Stride from fresh
// BufferMin/BufferMax/BufferStride placeholders on the buffer's own
// symbol, carrying over FoldFactor only if the caller pre-declared one.
type BufferExpr struct {
	Name      string
	Sym       ir.SymbolId
	ElemSize  ir.Index
	Dims      []ir.DimExpr
	Producer  FuncId
	Consumers []FuncId
	Storage   ir.StorageClass
	StoreAt   ComputeAt
}

// Rank returns the buffer's declared dimensionality.
func (b *BufferExpr) Rank() int { return len(b.Dims) }

// InputAccess is one callback input: which buffer, and the region (as an
// interval per input dimension, expressed in terms of the owning Func's
// output loop variables) it reads to produce one point of the output.
type InputAccess struct {
	Buffer BufferId
	Bounds []ir.IntervalExpr
}

// OutputBinding is one callback output: which buffer, and the loop
// variables (one per output dimension) whose current value names the
// coordinate being produced.
type OutputBinding struct {
	Buffer BufferId
	Dims   []ir.SymbolId
}

// Func is a unit of computation (GLOSSARY): a callback, declared input
// access patterns, and declared output coordinates.
type Func struct {
	Name      string
	Callback  ir.Callback
	Inputs    []InputAccess
	Outputs   []OutputBinding
	Loops     []ir.SymbolId
	LoopBounds []ir.IntervalExpr
	LoopModes []ir.LoopMode
}

// Pipeline is the arena owning both the BufferExpr and Func node arrays; a
// BufferId/FuncId is an index into the corresponding slice, never a
// pointer, so the graph's shared, potentially-cyclic references are safe
// to build incrementally and to check for cycles before lowering.
type Pipeline struct {
	Ctx     *ir.NodeContext
	Args    []ir.SymbolId
	Buffers []*BufferExpr
	Funcs   []*Func
	Inputs  []BufferId
	Outputs []BufferId
	Options BuildOptions
}

// New returns an empty pipeline over a fresh symbol context.
func New(opts BuildOptions) *Pipeline {
	return &Pipeline{Ctx: ir.NewNodeContext(), Options: opts}
}

// AddBuffer registers a new BufferExpr and returns its id.  Callers fill in
// Producer/Consumers via AddFunc.  A caller that leaves StoreAt unset gets
// Root, matching ComputeAt's documented default; callers that want a
// producer nested inside a consumer's loop must call At(sym) explicitly.
func (p *Pipeline) AddBuffer(b *BufferExpr) BufferId {
	b.Producer = InvalidFunc
	b.Sym = p.Ctx.Bind(b.Name)

	if b.StoreAt == (ComputeAt{}) {
		b.StoreAt = Root
	}

	id := BufferId(len(p.Buffers))
	p.Buffers = append(p.Buffers, b)

	return id
}

// AddFunc registers f as the producer of every buffer named in f.Outputs
// and as a consumer of every buffer named in f.Inputs, returning its id.
func (p *Pipeline) AddFunc(f *Func) FuncId {
	id := FuncId(len(p.Funcs))
	p.Funcs = append(p.Funcs, f)

	for _, out := range f.Outputs {
		p.Buffers[out.Buffer].Producer = id
	}

	for _, in := range f.Inputs {
		buf := p.Buffers[in.Buffer]
		buf.Consumers = append(buf.Consumers, id)
	}

	return id
}

// Buffer returns the BufferExpr for id.
func (p *Pipeline) Buffer(id BufferId) *BufferExpr { return p.Buffers[id] }

// Func returns the Func for id.
func (p *Pipeline) Func(id FuncId) *Func { return p.Funcs[id] }

// IsFormalInput reports whether id has no producer within the pipeline.
func (p *Pipeline) IsFormalInput(id BufferId) bool {
	return p.Buffers[id].Producer == InvalidFunc
}

// IsFormalOutput reports whether id is one of the pipeline's declared
// outputs (and therefore is allocated by the caller, not by an Allocate
// node).
func (p *Pipeline) IsFormalOutput(id BufferId) bool {
	for _, o := range p.Outputs {
		if o == id {
			return true
		}
	}

	return false
}
