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

// Package slide implements the sliding-window and storage-folding pass
// (§4.4): detecting that a crop applied to a buffer inside an enclosing
// serial loop is monotone in the loop variable, and either folding the
// buffer's storage along that dimension (no overlap between iterations)
// or shrinking the crop to only the incremental region a new iteration
// needs (overlap, but the region moves).
//
// The monotone-increasing case also tries to shrink the enclosing loop's
// own min: when the new per-iteration min is affine in the loop variable
// (k*sym + c, k > 0) the pass solves for the largest loop min that still
// covers what the original min demanded. When the offset isn't affine in
// this restricted sense, there is no such solve, so the loop min is left
// alone and the producer is instead guarded with a Select that runs the
// full original window on the first iteration only (§4.4's documented
// fallback).
package slide

import "github.com/slinkylang/slinky/pkg/ir"

type activeLoop struct {
	Sym    ir.SymbolId
	Bounds ir.IntervalExpr
	Step   ir.Expr

	// MinOverride, when non-nil, is the solved new loop min (the largest
	// value that still covers what the original min demanded), narrowed
	// across every dimension/allocation analysed under this loop.
	MinOverride ir.Expr
	// BlockMinShrink is set once any analysed dimension needed the
	// Select-guard fallback instead of a solve; shrinking the loop min
	// would then desynchronise that dimension's guard condition (which
	// compares against the original min), so the min is left untouched.
	BlockMinShrink bool
}

type folder struct {
	env         *ir.Env
	loops       []activeLoop
	foldFactors map[ir.SymbolId]map[int]ir.Expr
}

// Fold runs the slide-and-fold pass over root, returning the rewritten
// tree.  Every Allocate's fold factor is set from the recorded decisions;
// allocations with no applicable loop are left unfolded.
func Fold(root ir.Stmt) ir.Stmt {
	fl := &folder{env: ir.NewEnv(), foldFactors: map[ir.SymbolId]map[int]ir.Expr{}}

	return fl.walk(root)
}

func (fl *folder) recordFold(sym ir.SymbolId, dim int, factor ir.Expr) {
	if fl.foldFactors[sym] == nil {
		fl.foldFactors[sym] = map[int]ir.Expr{}
	}

	fl.foldFactors[sym][dim] = factor
}

func (fl *folder) walk(s ir.Stmt) ir.Stmt {
	if s == nil {
		return nil
	}

	switch n := s.(type) {
	case *ir.Block:
		return ir.Seq(fl.walk(n.A), fl.walk(n.B))
	case *ir.LetStmt:
		pop := fl.env.Push()
		fl.env.Bind(n.Sym, ir.IntervalExpr{Min: n.Value, Max: n.Value})
		body := fl.walk(n.Body)
		pop()

		return &ir.LetStmt{Sym: n.Sym, Value: n.Value, Body: body}
	case *ir.Loop:
		return fl.walkLoop(n)
	case *ir.IfThenElse:
		return &ir.IfThenElse{Cond: n.Cond, Then: fl.walk(n.Then), Else: fl.walk(n.Else)}
	case *ir.CallStmt:
		return n
	case *ir.CopyStmt:
		return n
	case *ir.Allocate:
		body := fl.walk(n.Body)
		dims := applyFolds(n.Dims, fl.foldFactors[n.Sym])
		delete(fl.foldFactors, n.Sym)

		return &ir.Allocate{Sym: n.Sym, Storage: n.Storage, ElemSize: n.ElemSize, Dims: dims, Body: body}
	case *ir.MakeBuffer:
		return &ir.MakeBuffer{Sym: n.Sym, Base: n.Base, ElemSize: n.ElemSize, Dims: n.Dims, Body: fl.walk(n.Body)}
	case *ir.CropBuffer:
		return fl.walkCropBuffer(n)
	case *ir.CropDim:
		return fl.walkCropDim(n)
	case *ir.SliceBuffer:
		return &ir.SliceBuffer{Sym: n.Sym, At: n.At, Body: fl.walk(n.Body)}
	case *ir.SliceDim:
		return &ir.SliceDim{Sym: n.Sym, Dim: n.Dim, At: n.At, Body: fl.walk(n.Body)}
	case *ir.TruncateRank:
		return &ir.TruncateRank{Sym: n.Sym, Rank: n.Rank, Body: fl.walk(n.Body)}
	case *ir.Check:
		return n
	default:
		panic("slide: unknown statement variant")
	}
}

func applyFolds(dims []ir.DimExpr, folds map[int]ir.Expr) []ir.DimExpr {
	if len(folds) == 0 {
		return dims
	}

	out := make([]ir.DimExpr, len(dims))
	copy(out, dims)

	for d, factor := range folds {
		out[d] = ir.DimExpr{Bounds: out[d].Bounds, Stride: out[d].Stride, FoldFactor: factor}
	}

	return out
}

func (fl *folder) walkLoop(n *ir.Loop) ir.Stmt {
	if n.Mode == ir.Parallel {
		// Parallel iterations execute concurrently and share no storage:
		// no fold, no slide (§4.4, §5).
		return &ir.Loop{Sym: n.Sym, Mode: n.Mode, Bounds: n.Bounds, Step: n.Step, Body: fl.walk(n.Body)}
	}

	pop := fl.env.Push()
	// Substitute +infinity for the loop's own max, per §4.4, to avoid
	// interactions between capped extents and the provability checks run
	// while analysing crops inside this loop.
	fl.env.Bind(n.Sym, ir.IntervalExpr{Min: n.Bounds.Min, Max: ir.PosInf()})
	fl.loops = append(fl.loops, activeLoop{Sym: n.Sym, Bounds: n.Bounds, Step: n.Step})
	idx := len(fl.loops) - 1
	body := fl.walk(n.Body)
	loop := fl.loops[idx]
	fl.loops = fl.loops[:idx]
	pop()

	bounds := n.Bounds
	if loop.MinOverride != nil && !loop.BlockMinShrink {
		bounds = ir.IntervalExpr{Min: ir.Simplify(loop.MinOverride), Max: n.Bounds.Max}
	}

	return &ir.Loop{Sym: n.Sym, Mode: n.Mode, Bounds: bounds, Step: n.Step, Body: body}
}

// recordLoopMin narrows the current loop's solved min to the smallest of
// every candidate seen so far, since the loop must start early enough to
// satisfy every dimension's own solve simultaneously.
func (fl *folder) recordLoopMin(candidate ir.Expr) {
	i := len(fl.loops) - 1
	if fl.loops[i].MinOverride == nil {
		fl.loops[i].MinOverride = candidate
		return
	}

	fl.loops[i].MinOverride = ir.Simplify(&ir.Min{Left: fl.loops[i].MinOverride, Right: candidate})
}

// blockLoopMinShrink records that the current loop's min must stay as
// originally declared, because some dimension fell back to the
// Select-guard, whose condition compares against that original min.
func (fl *folder) blockLoopMinShrink() {
	fl.loops[len(fl.loops)-1].BlockMinShrink = true
}

func (fl *folder) walkCropBuffer(n *ir.CropBuffer) ir.Stmt {
	bounds := n.Bounds.Clone()

	if len(fl.loops) > 0 {
		loop := fl.loops[len(fl.loops)-1]

		for d := range bounds {
			bounds[d] = fl.analyseDim(n.Sym, d, bounds[d], loop)
		}
	}

	return &ir.CropBuffer{Sym: n.Sym, Bounds: bounds, Body: fl.walk(n.Body)}
}

func (fl *folder) walkCropDim(n *ir.CropDim) ir.Stmt {
	bounds := n.Bounds

	if len(fl.loops) > 0 {
		loop := fl.loops[len(fl.loops)-1]
		bounds = fl.analyseDim(n.Sym, n.Dim, bounds, loop)
	}

	return &ir.CropDim{Sym: n.Sym, Dim: n.Dim, Bounds: bounds, Body: fl.walk(n.Body)}
}

// analyseDim implements the per-dimension decision table of §4.4.  cur is
// the crop's declared bounds for this dimension; if it does not mention
// the enclosing loop's variable there is nothing to slide.
func (fl *folder) analyseDim(sym ir.SymbolId, dim int, cur ir.IntervalExpr, loop activeLoop) ir.IntervalExpr {
	if !ir.Mentions(cur.Min, loop.Sym) && !ir.Mentions(cur.Max, loop.Sym) {
		return cur
	}

	prev := shiftBy(cur, loop.Sym, ir.Sub(ir.Var(loop.Sym), loop.Step))
	overlap := ir.IntervalExpr{Min: &ir.Max{Left: prev.Min, Right: cur.Min}, Max: &ir.Min{Left: prev.Max, Right: cur.Max}}

	maxExtentAtLoopMax := ir.Simplify(ir.Substitute(cur.Extent(), ir.Var(loop.Sym), loop.Bounds.Max))

	switch {
	case ir.ProveTrue(fl.env, ir.Lt(overlap.Max, overlap.Min)):
		// No overlap between consecutive iterations: storage can be
		// folded entirely, independent of iteration count.
		fl.recordFold(sym, dim, maxExtentAtLoopMax)

		return cur
	case ir.ProveTrue(fl.env, ir.LAnd(ir.Le(prev.Min, cur.Min), ir.Le(prev.Max, cur.Max))):
		// Monotone increasing: only (prev.max, cur.max] is new.
		fl.recordFold(sym, dim, alignUp(maxExtentAtLoopMax, loop.Step))
		newMin := ir.Simplify(ir.Add(prev.Max, ir.Const(1)))

		// The producer's very first iteration has no "previous" iteration to
		// have already computed anything, so newMin must still cover
		// whatever the original, unshrunk min demanded at the loop's
		// original starting point.
		minAtOrigLoopMin := ir.Simplify(ir.Substitute(cur.Min, ir.Var(loop.Sym), loop.Bounds.Min))

		if k, c, ok := affineCoeffs(newMin, loop.Sym); ok && k > 0 {
			// Solve k*x + c <= minAtOrigLoopMin for the largest integer x.
			solved := ir.Simplify(ir.Div(ir.Sub(minAtOrigLoopMin, c), ir.Const(k)))
			fl.recordLoopMin(solved)
		} else {
			// newMin isn't affine in the loop variable in the restricted
			// sense this pass understands, so there's no loop-min solve.
			// Keep the loop's own min and instead guard the producer: the
			// first iteration computes the full original window, every
			// later one computes only the incremental region.
			fl.blockLoopMinShrink()
			newMin = &ir.Select{Cond: ir.Eq(ir.Var(loop.Sym), loop.Bounds.Min), True: cur.Min, False: newMin}
		}

		return ir.IntervalExpr{Min: newMin, Max: cur.Max}
	default:
		return cur
	}
}

// affineCoeffs decomposes e into k*sym + c for an integer literal
// coefficient k and a residual expression c that doesn't mention sym,
// matching only the restricted (k*sym + c) shape the loop-min solve
// understands. Anything outside that shape (a Mul of two non-literal
// operands, Min/Max, a Div, ...) reports ok=false.
func affineCoeffs(e ir.Expr, sym ir.SymbolId) (k ir.Index, c ir.Expr, ok bool) {
	if !ir.Mentions(e, sym) {
		return 0, e, true
	}

	switch n := e.(type) {
	case *ir.Variable:
		if n.Sym == sym {
			return 1, ir.Const(0), true
		}

		return 0, e, true
	case *ir.Binary:
		switch n.Op {
		case ir.OpAdd:
			k1, c1, ok1 := affineCoeffs(n.Left, sym)
			k2, c2, ok2 := affineCoeffs(n.Right, sym)
			if !ok1 || !ok2 {
				return 0, nil, false
			}

			return k1 + k2, ir.Add(c1, c2), true
		case ir.OpSub:
			k1, c1, ok1 := affineCoeffs(n.Left, sym)
			k2, c2, ok2 := affineCoeffs(n.Right, sym)
			if !ok1 || !ok2 {
				return 0, nil, false
			}

			return k1 - k2, ir.Sub(c1, c2), true
		case ir.OpMul:
			lit, rest, litOk := constFactor(n.Left, n.Right)
			if !litOk {
				return 0, nil, false
			}

			kk, cc, ok2 := affineCoeffs(rest, sym)
			if !ok2 {
				return 0, nil, false
			}

			return lit * kk, ir.Mul(ir.Const(lit), cc), true
		}
	}

	return 0, nil, false
}

// constFactor reports whether one of a, b is an integer literal, returning
// that literal and the other operand.
func constFactor(a, b ir.Expr) (ir.Index, ir.Expr, bool) {
	if lit, ok := a.(*ir.Constant); ok {
		return lit.Value, b, true
	}

	if lit, ok := b.(*ir.Constant); ok {
		return lit.Value, a, true
	}

	return 0, nil, false
}

func shiftBy(iv ir.IntervalExpr, sym ir.SymbolId, replacement ir.Expr) ir.IntervalExpr {
	return ir.IntervalExpr{
		Min: ir.Simplify(ir.Substitute(iv.Min, ir.Var(sym), replacement)),
		Max: ir.Simplify(ir.Substitute(iv.Max, ir.Var(sym), replacement)),
	}
}

// alignUp rounds extent up to the next multiple of step, matching
// align_up(max(extent), step) in the §4.4 monotone-increasing case.
func alignUp(extent, step ir.Expr) ir.Expr {
	if v, ok := extent.(*ir.Constant); ok {
		if s, ok := step.(*ir.Constant); ok && s.Value != 0 {
			rem := ir.FlooredMod(v.Value, s.Value)
			if rem == 0 {
				return extent
			}

			return ir.Const(v.Value + (s.Value - rem))
		}
	}

	return ir.Simplify(ir.Mul(ir.Add(ir.Div(ir.Sub(extent, ir.Const(1)), step), ir.Const(1)), step))
}
