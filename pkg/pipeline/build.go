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
	log "github.com/sirupsen/logrus"

	"github.com/slinkylang/slinky/pkg/ir"
)

type builder struct {
	p             *Pipeline
	placed        map[FuncId]bool
	pendingAtLoop map[ir.SymbolId][]FuncId
}

// Build lowers the pipeline graph into the initial statement tree described
// in §2: nested Loop over output coordinates, Allocate at each
// intermediate, CallStmt at the leaves, CropBuffer nodes carrying the
// symbolic region each consumer demands.  It does not run any optimisation
// pass; callers invoke those (pkg/bounds, pkg/slide, pkg/alias, pkg/scope,
// pkg/copyopt) explicitly, or call Pipeline.BuildAndOptimize.
func (p *Pipeline) Build() (ir.Stmt, error) {
	if err := p.checkAcyclic(); err != nil {
		return nil, err
	}

	b := &builder{p: p, placed: map[FuncId]bool{}, pendingAtLoop: map[ir.SymbolId][]FuncId{}}

	for fid, f := range p.Funcs {
		if len(f.Outputs) == 0 {
			continue
		}

		at := p.Buffer(f.Outputs[0].Buffer).StoreAt
		if !at.AtRoot {
			b.pendingAtLoop[at.LoopVar] = append(b.pendingAtLoop[at.LoopVar], FuncId(fid))
		}
	}

	order, err := p.topoSortRoot()
	if err != nil {
		return nil, err
	}

	log.WithField("pass", "build").Debugf("lowering %d root funcs", len(order))

	stmts := make([]ir.Stmt, 0, len(order))

	for _, fid := range order {
		if b.placed[fid] {
			continue
		}

		s := b.buildFunc(fid)
		b.placed[fid] = true
		stmts = append(stmts, s)
	}

	result := ir.Seq(stmts...)

	// Wrap every intermediate buffer's Allocate around the whole chain;
	// reduce_scopes (pkg/scope) tightens this down later, so no compute_at
	// bookkeeping is needed here beyond producer/consumer ordering.
	for i := len(p.Funcs) - 1; i >= 0; i-- {
		f := p.Funcs[i]
		for _, out := range f.Outputs {
			buf := p.Buffer(out.Buffer)
			if p.IsFormalOutput(out.Buffer) || p.IsFormalInput(out.Buffer) {
				continue
			}

			result = &ir.Allocate{
				Sym:      buf.Sym,
				Storage:  buf.Storage,
				ElemSize: buf.ElemSize,
				Dims:     placeholderDims(buf),
				Body:     result,
			}
		}
	}

	return result, nil
}

func (b *builder) buildFunc(fid FuncId) ir.Stmt {
	f := b.p.Func(fid)

	body := ir.Stmt(&ir.CallStmt{
		Callback: f.Callback,
		Inputs:   inputSyms(b.p, f),
		Outputs:  outputSyms(b.p, f),
	})

	body = wrapInputCrops(b.p, f, body)

	for i := len(f.Loops) - 1; i >= 0; i-- {
		sym := f.Loops[i]

		for _, depId := range b.pendingAtLoop[sym] {
			if b.placed[depId] {
				continue
			}

			depStmt := b.buildFunc(depId)
			b.placed[depId] = true
			body = ir.Seq(depStmt, body)
		}

		mode := ir.Serial
		if i < len(f.LoopModes) {
			mode = f.LoopModes[i]
		}

		body = &ir.Loop{Sym: sym, Mode: mode, Bounds: f.LoopBounds[i], Step: ir.Const(1), Body: body}
	}

	return body
}

// placeholderDims builds the initial, pre-inference Dims for an
// intermediate's Allocate node: each dim's bounds and stride are fresh
// symbolic accessors on the buffer's own symbol, later resolved by
// pkg/bounds.  A caller-declared fold factor, if any, survives untouched.
func placeholderDims(buf *BufferExpr) []ir.DimExpr {
	dims := make([]ir.DimExpr, buf.Rank())

	for d := range dims {
		var ff ir.Expr
		if d < len(buf.Dims) {
			ff = buf.Dims[d].FoldFactor
		}

		dims[d] = ir.DimExpr{
			Bounds:     ir.IntervalExpr{Min: ir.BufMin(buf.Sym, d), Max: ir.BufMax(buf.Sym, d)},
			Stride:     ir.BufStride(buf.Sym, d),
			FoldFactor: ff,
		}
	}

	return dims
}

func wrapInputCrops(p *Pipeline, f *Func, body ir.Stmt) ir.Stmt {
	for i := len(f.Inputs) - 1; i >= 0; i-- {
		in := f.Inputs[i]
		buf := p.Buffer(in.Buffer)
		body = &ir.CropBuffer{Sym: buf.Sym, Bounds: ir.BoxExpr(in.Bounds), Body: body}
	}

	return body
}

func inputSyms(p *Pipeline, f *Func) []ir.SymbolId {
	out := make([]ir.SymbolId, len(f.Inputs))
	for i, in := range f.Inputs {
		out[i] = p.Buffer(in.Buffer).Sym
	}

	return out
}

func outputSyms(p *Pipeline, f *Func) []ir.SymbolId {
	out := make([]ir.SymbolId, len(f.Outputs))
	for i, o := range f.Outputs {
		out[i] = p.Buffer(o.Buffer).Sym
	}

	return out
}

// checkAcyclic walks the Func dependency graph (f depends on the producer
// of each of its inputs) and fails with GraphCycle if a cycle is found.
func (p *Pipeline) checkAcyclic() error {
	const (
		white = 0
		grey  = 1
		black = 2
	)

	color := make([]int, len(p.Funcs))

	var visit func(fid FuncId) error
	visit = func(fid FuncId) error {
		color[fid] = grey

		f := p.Funcs[fid]
		for _, in := range f.Inputs {
			buf := p.Buffer(in.Buffer)
			if buf.Producer == InvalidFunc {
				continue
			}

			switch color[buf.Producer] {
			case white:
				if err := visit(buf.Producer); err != nil {
					return err
				}
			case grey:
				log.WithField("pass", "build").WithField("symbol", buf.Sym).Error("cycle detected in pipeline graph")
				return ir.NewBuildError(ir.GraphCycle, buf.Sym, "buffer participates in a producer/consumer cycle")
			}
		}

		color[fid] = black

		return nil
	}

	for fid := range p.Funcs {
		if color[fid] == white {
			if err := visit(FuncId(fid)); err != nil {
				return err
			}
		}
	}

	return nil
}

// topoSortRoot returns the root-computed (StoreAt.AtRoot) funcs in an order
// where every producer precedes its consumers.
func (p *Pipeline) topoSortRoot() ([]FuncId, error) {
	visited := make([]bool, len(p.Funcs))

	var order []FuncId

	var visit func(fid FuncId) error
	visit = func(fid FuncId) error {
		if visited[fid] {
			return nil
		}

		visited[fid] = true

		f := p.Funcs[fid]
		for _, in := range f.Inputs {
			buf := p.Buffer(in.Buffer)
			if buf.Producer == InvalidFunc || !buf.StoreAt.AtRoot {
				continue
			}

			if err := visit(buf.Producer); err != nil {
				return err
			}
		}

		order = append(order, fid)

		return nil
	}

	for fid, f := range p.Funcs {
		if len(f.Outputs) == 0 {
			continue
		}

		if !p.Buffer(f.Outputs[0].Buffer).StoreAt.AtRoot {
			continue
		}

		if err := visit(FuncId(fid)); err != nil {
			return nil, err
		}
	}

	return order, nil
}
