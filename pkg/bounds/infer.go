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

// Package bounds implements the bounds inference pass (§4.3): propagating
// the region each buffer's consumers actually demand back to that
// buffer's Allocate node, turning symbolic BufferMin/BufferMax/
// BufferStride/BufferExtent accessors into concrete expressions, and
// emitting the runtime Check nodes that validate caller-supplied inputs.
package bounds

import (
	log "github.com/sirupsen/logrus"

	"github.com/slinkylang/slinky/pkg/ir"
	"github.com/slinkylang/slinky/pkg/scopemap"
)

// FormalInput describes one of the pipeline's caller-supplied buffers, for
// the purpose of emitting the step-5 Check nodes.
type FormalInput struct {
	Sym  ir.SymbolId
	Rank int
}

// Infer runs the bounds inference pass over root, returning the rewritten
// tree.  When noChecks is true, the step-5 runtime Check nodes are
// omitted (BuildOptions.NoChecks).
func Infer(root ir.Stmt, formals []FormalInput, noChecks bool) (ir.Stmt, error) {
	inf := &inferrer{
		crops: scopemap.New[[]ir.IntervalExpr](),
		infer: map[ir.SymbolId]ir.BoxExpr{},
	}

	for _, f := range formals {
		inf.infer[f.Sym] = ir.EmptyBox(f.Rank)
	}

	body, err := inf.walk(root)
	if err != nil {
		return nil, err
	}

	if noChecks {
		return body, nil
	}

	return inf.emitFormalChecks(formals, body), nil
}

type inferrer struct {
	crops *scopemap.Map[[]ir.IntervalExpr]
	infer map[ir.SymbolId]ir.BoxExpr
}

func (inf *inferrer) cropBox(sym ir.SymbolId, rank int) ir.BoxExpr {
	box := ir.FullBox(rank)

	v, ok := inf.crops.Get(sym)
	if !ok {
		return box
	}

	for d := 0; d < len(v) && d < rank; d++ {
		box[d] = v[d]
	}

	return box
}

func (inf *inferrer) setCropBox(sym ir.SymbolId, box ir.BoxExpr) {
	v := make([]ir.IntervalExpr, len(box))
	copy(v, box)
	inf.crops.Set(sym, v)
}

func intersectInterval(a, b ir.IntervalExpr) ir.IntervalExpr {
	return ir.IntervalExpr{Min: &ir.Max{Left: a.Min, Right: b.Min}, Max: &ir.Min{Left: a.Max, Right: b.Max}}
}

func unionInterval(a, b ir.IntervalExpr) ir.IntervalExpr {
	return ir.IntervalExpr{Min: &ir.Min{Left: a.Min, Right: b.Min}, Max: &ir.Max{Left: a.Max, Right: b.Max}}
}

func (inf *inferrer) walk(s ir.Stmt) (ir.Stmt, error) {
	switch n := s.(type) {
	case nil:
		return nil, nil
	case *ir.Block:
		a, err := inf.walk(n.A)
		if err != nil {
			return nil, err
		}

		b, err := inf.walk(n.B)
		if err != nil {
			return nil, err
		}

		return ir.Seq(a, b), nil
	case *ir.LetStmt:
		body, err := inf.walk(n.Body)
		if err != nil {
			return nil, err
		}

		return &ir.LetStmt{Sym: n.Sym, Value: n.Value, Body: body}, nil
	case *ir.Loop:
		return inf.walkLoop(n)
	case *ir.IfThenElse:
		then, err := inf.walk(n.Then)
		if err != nil {
			return nil, err
		}

		els, err := inf.walk(n.Else)
		if err != nil {
			return nil, err
		}

		return &ir.IfThenElse{Cond: n.Cond, Then: then, Else: els}, nil
	case *ir.CallStmt:
		inf.recordDemand(n.Inputs)

		return n, nil
	case *ir.CopyStmt:
		inf.recordDemand([]ir.SymbolId{n.Src})

		return n, nil
	case *ir.Allocate:
		return inf.walkAllocate(n)
	case *ir.MakeBuffer:
		body, err := inf.walk(n.Body)
		if err != nil {
			return nil, err
		}

		return &ir.MakeBuffer{Sym: n.Sym, Base: n.Base, ElemSize: n.ElemSize, Dims: n.Dims, Body: body}, nil
	case *ir.CropBuffer:
		return inf.walkCropBuffer(n)
	case *ir.CropDim:
		return inf.walkCropDim(n)
	case *ir.SliceBuffer, *ir.SliceDim, *ir.TruncateRank:
		// §9 open question: pass rank-changing nodes through transparently
		// rather than reasoning about the region they expose.
		return inf.walkPassThrough(n)
	case *ir.Check:
		return n, nil
	default:
		panic("bounds: unknown statement variant")
	}
}

func (inf *inferrer) walkPassThrough(s ir.Stmt) (ir.Stmt, error) {
	switch n := s.(type) {
	case *ir.SliceBuffer:
		body, err := inf.walk(n.Body)
		if err != nil {
			return nil, err
		}

		return &ir.SliceBuffer{Sym: n.Sym, At: n.At, Body: body}, nil
	case *ir.SliceDim:
		body, err := inf.walk(n.Body)
		if err != nil {
			return nil, err
		}

		return &ir.SliceDim{Sym: n.Sym, Dim: n.Dim, At: n.At, Body: body}, nil
	case *ir.TruncateRank:
		body, err := inf.walk(n.Body)
		if err != nil {
			return nil, err
		}

		return &ir.TruncateRank{Sym: n.Sym, Rank: n.Rank, Body: body}, nil
	}

	return s, nil
}

// recordDemand implements step 2: for each input buffer currently being
// inferred, union its current crop into the running demand.
func (inf *inferrer) recordDemand(inputs []ir.SymbolId) {
	for _, sym := range inputs {
		box, ok := inf.infer[sym]
		if !ok {
			continue
		}

		crop := inf.cropBox(sym, len(box))
		newBox := make(ir.BoxExpr, len(box))

		for d := range box {
			newBox[d] = unionInterval(box[d], crop[d])
		}

		inf.infer[sym] = newBox
	}
}

// walkLoop implements step 3: recurse first, then generalise any in-flight
// demand mentioning the loop variable across the whole iteration range.
func (inf *inferrer) walkLoop(n *ir.Loop) (ir.Stmt, error) {
	body, err := inf.walk(n.Body)
	if err != nil {
		return nil, err
	}

	var wrapSyms []ir.SymbolId

	for sym, box := range inf.infer {
		newBox := make(ir.BoxExpr, len(box))
		changed := false

		for d, iv := range box {
			newBox[d] = iv

			if ir.Mentions(iv.Min, n.Sym) {
				newBox[d].Min = ir.Simplify(ir.Substitute(iv.Min, ir.Var(n.Sym), n.Bounds.Min))
				changed = true
			}

			if ir.Mentions(iv.Max, n.Sym) {
				newBox[d].Max = ir.Simplify(ir.Substitute(iv.Max, ir.Var(n.Sym), n.Bounds.Max))
				changed = true
			}
		}

		if changed {
			inf.infer[sym] = newBox
			wrapSyms = append(wrapSyms, sym)
		}
	}

	var result ir.Stmt = &ir.Loop{Sym: n.Sym, Mode: n.Mode, Bounds: n.Bounds, Step: n.Step, Body: body}

	for _, sym := range wrapSyms {
		result = &ir.CropBuffer{Sym: sym, Bounds: inf.infer[sym], Body: result}
	}

	return result, nil
}

func (inf *inferrer) walkCropBuffer(n *ir.CropBuffer) (ir.Stmt, error) {
	cur := inf.cropBox(n.Sym, len(n.Bounds))
	newBox := make(ir.BoxExpr, len(n.Bounds))

	for d := range n.Bounds {
		newBox[d] = intersectInterval(cur[d], n.Bounds[d])
	}

	pop := inf.crops.PushFrame()
	inf.setCropBox(n.Sym, newBox)
	body, err := inf.walk(n.Body)
	pop()

	if err != nil {
		return nil, err
	}

	return &ir.CropBuffer{Sym: n.Sym, Bounds: n.Bounds, Body: body}, nil
}

func (inf *inferrer) walkCropDim(n *ir.CropDim) (ir.Stmt, error) {
	cur := inf.cropBox(n.Sym, n.Dim+1)
	newBox := cur
	newBox[n.Dim] = intersectInterval(cur[n.Dim], n.Bounds)

	pop := inf.crops.PushFrame()
	inf.setCropBox(n.Sym, newBox)
	body, err := inf.walk(n.Body)
	pop()

	if err != nil {
		return nil, err
	}

	return &ir.CropDim{Sym: n.Sym, Dim: n.Dim, Bounds: n.Bounds, Body: body}, nil
}

// walkAllocate implements step 4: seed an empty running demand, recurse,
// then resolve the allocation's own Dims and every other in-flight demand
// against the box that was accumulated.
func (inf *inferrer) walkAllocate(n *ir.Allocate) (ir.Stmt, error) {
	inf.infer[n.Sym] = ir.EmptyBox(len(n.Dims))

	body, err := inf.walk(n.Body)
	if err != nil {
		return nil, err
	}

	box := inf.infer[n.Sym]
	delete(inf.infer, n.Sym)

	for d, iv := range box {
		if isUnresolved(iv) {
			log.WithField("pass", "infer_bounds").WithField("symbol", n.Sym).Error("allocation has no consumer demand")
			return nil, ir.NewBuildError(ir.UnboundedAllocation, n.Sym, "no consumer establishes a finite region")
		}

		box[d] = ir.IntervalExpr{Min: ir.Simplify(iv.Min), Max: ir.Simplify(iv.Max)}
	}

	table := map[ir.MetaKey]ir.Expr{}
	extents := make([]ir.Expr, len(box))
	cumStride := ir.Expr(ir.Const(n.ElemSize))

	for d, iv := range box {
		extents[d] = ir.Simplify(iv.Extent())
		table[ir.MetaKey{Intrinsic: ir.BufferMin, Buf: n.Sym, Dim: d}] = iv.Min
		table[ir.MetaKey{Intrinsic: ir.BufferMax, Buf: n.Sym, Dim: d}] = iv.Max
		table[ir.MetaKey{Intrinsic: ir.BufferExtent, Buf: n.Sym, Dim: d}] = extents[d]
		table[ir.MetaKey{Intrinsic: ir.BufferStride, Buf: n.Sym, Dim: d}] = cumStride

		storageExtent := extents[d]
		if n.Dims[d].FoldFactor != nil {
			storageExtent = ir.Simplify(&ir.Min{Left: extents[d], Right: n.Dims[d].FoldFactor})
		}

		cumStride = ir.Simplify(ir.Mul(cumStride, storageExtent))
	}

	newDims := fixedPointSubstitute(n.Dims, table)

	// Buffer-meta accessors on this allocation may appear in other
	// in-flight demands (an outer buffer's bounds referencing this one's
	// metadata); resolve those too.
	for sym, otherBox := range inf.infer {
		resolved := make(ir.BoxExpr, len(otherBox))

		for d, iv := range otherBox {
			resolved[d] = ir.IntervalExpr{
				Min: ir.SubstituteBufferMeta(iv.Min, table),
				Max: ir.SubstituteBufferMeta(iv.Max, table),
			}
		}

		inf.infer[sym] = resolved
	}

	return &ir.Allocate{Sym: n.Sym, Storage: n.Storage, ElemSize: n.ElemSize, Dims: newDims, Body: body}, nil
}

func isUnresolved(iv ir.IntervalExpr) bool {
	minC, minOk := iv.Min.(*ir.Call)
	maxC, maxOk := iv.Max.(*ir.Call)

	return minOk && maxOk && minC.Intrinsic == ir.PositiveInfinity && maxC.Intrinsic == ir.NegativeInfinity
}

func fixedPointSubstitute(dims []ir.DimExpr, table map[ir.MetaKey]ir.Expr) []ir.DimExpr {
	out := make([]ir.DimExpr, len(dims))
	copy(out, dims)

	for iter := 0; iter < 8; iter++ {
		changed := false

		for d, dim := range out {
			nd := ir.DimExpr{
				Bounds: ir.IntervalExpr{
					Min: ir.SubstituteBufferMeta(dim.Bounds.Min, table),
					Max: ir.SubstituteBufferMeta(dim.Bounds.Max, table),
				},
				Stride: ir.SubstituteBufferMeta(dim.Stride, table),
			}

			if dim.FoldFactor != nil {
				nd.FoldFactor = ir.SubstituteBufferMeta(dim.FoldFactor, table)
			}

			if !nd.Bounds.Equals(dim.Bounds) || !nd.Stride.Equals(dim.Stride) {
				changed = true
			}

			out[d] = nd
		}

		if !changed {
			break
		}
	}

	return out
}

// emitFormalChecks implements §4.3 step 5: for every formal input and every
// dimension, assert the caller-supplied buffer is large enough for what
// the pipeline actually demands of it.
func (inf *inferrer) emitFormalChecks(formals []FormalInput, body ir.Stmt) ir.Stmt {
	var checks []ir.Stmt

	for _, f := range formals {
		box, ok := inf.infer[f.Sym]
		if !ok {
			continue
		}

		for d := 0; d < f.Rank && d < len(box); d++ {
			iv := box[d]
			checks = append(checks,
				&ir.Check{Cond: ir.Le(ir.BufMin(f.Sym, d), iv.Min), Message: "input min bound satisfied"},
				&ir.Check{Cond: ir.Ge(ir.BufMax(f.Sym, d), iv.Max), Message: "input max bound satisfied"},
				&ir.Check{
					Cond:    ir.Le(iv.Extent(), &ir.Select{Cond: ir.Eq(ir.BufFoldFactor(f.Sym, d), ir.Const(0)), True: iv.Extent(), False: ir.BufFoldFactor(f.Sym, d)}),
					Message: "input extent fits fold factor",
				},
			)
		}
	}

	return ir.Seq(append(checks, body)...)
}
