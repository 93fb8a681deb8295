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

// Package alias implements the buffer aliaser (§4.5): when an
// intermediate is read in full by a single downstream call that maps it
// elementwise into one output, the allocation is dropped and the buffer's
// symbol is bound directly to that output instead, eliminating a copy.
// Chains of such intermediates resolve straight through to their ultimate
// target rather than aliasing to one another.
package alias

import (
	"sort"

	"github.com/slinkylang/slinky/pkg/ir"
	"github.com/slinkylang/slinky/pkg/scopemap"
)

type candidateInfo struct {
	rank        int
	candidates  map[ir.SymbolId]bool
	elementwise bool
	seen        bool
}

// Eliminate runs the aliaser over root and returns the rewritten tree.
func Eliminate(root ir.Stmt) ir.Stmt {
	infos := map[ir.SymbolId]*candidateInfo{}
	gather(scopemap.New[ir.BoxExpr](), root, infos)

	assignment := resolveChains(assign(infos))
	if len(assignment) == 0 {
		return root
	}

	return rewrite(root, assignment)
}

// gather walks the tree tracking each buffer's currently active crop
// region, and for every Allocate records which of the CallStmt outputs
// that consume it in full are structurally elementwise matches for its own
// declared region.
func gather(crops *scopemap.Map[ir.BoxExpr], s ir.Stmt, infos map[ir.SymbolId]*candidateInfo) {
	if s == nil {
		return
	}

	switch n := s.(type) {
	case *ir.Block:
		gather(crops, n.A, infos)
		gather(crops, n.B, infos)
	case *ir.LetStmt:
		gather(crops, n.Body, infos)
	case *ir.Loop:
		gather(crops, n.Body, infos)
	case *ir.IfThenElse:
		gather(crops, n.Then, infos)
		gather(crops, n.Else, infos)
	case *ir.CallStmt:
		if len(n.Outputs) != 1 {
			return
		}

		out := n.Outputs[0]

		for _, in := range n.Inputs {
			info, ok := infos[in]
			if !ok {
				continue
			}

			info.seen = true

			// Elementwise means the input's active crop, generalized across
			// whatever loop produces this call's output, covers exactly the
			// output buffer's own declared shape: one point of out for one
			// point of in, over the whole of out.
			expected := make(ir.BoxExpr, info.rank)
			for d := range expected {
				expected[d] = ir.IntervalExpr{Min: ir.BufMin(out, d), Max: ir.BufMax(out, d)}
			}

			box, ok := crops.Get(in)
			if !ok || !elementwiseMatch(box, expected) {
				info.elementwise = false
				continue
			}

			if in != out {
				info.candidates[out] = true
			}
		}
	case *ir.CopyStmt:
		// A CopyStmt already performs the aliaser's job (a bulk move);
		// nothing further to record.
	case *ir.Allocate:
		infos[n.Sym] = &candidateInfo{rank: len(n.Dims), candidates: map[ir.SymbolId]bool{}, elementwise: true}

		// Seed the buffer's active region from its own declared dims, the
		// same way the crop cases narrow it further below. Once bounds
		// inference has run, an Allocate's dims already state the full
		// region any consumer can observe, so a consumer reading a symbol
		// that was never wrapped in an explicit CropBuffer/CropDim (because
		// input_crop_remover already stripped it, or the allocation was
		// never cropped at all) still has a region to match against.
		pop := crops.PushFrame()
		box := make(ir.BoxExpr, len(n.Dims))
		for d, dimExpr := range n.Dims {
			box[d] = dimExpr.Bounds
		}
		crops.Set(n.Sym, box)
		gather(crops, n.Body, infos)
		pop()
	case *ir.MakeBuffer:
		gather(crops, n.Body, infos)
	case *ir.CropBuffer:
		pop := crops.PushFrame()
		crops.Set(n.Sym, narrowedBox(crops, n.Sym, n.Bounds))
		gather(crops, n.Body, infos)
		pop()
	case *ir.CropDim:
		pop := crops.PushFrame()
		cur, ok := crops.Get(n.Sym)
		if !ok {
			cur = ir.FullBox(n.Dim + 1)
		}
		box := cur.Clone()
		if n.Dim < len(box) {
			box[n.Dim] = intersectInterval(box[n.Dim], n.Bounds)
		}
		crops.Set(n.Sym, box)
		gather(crops, n.Body, infos)
		pop()
	case *ir.SliceBuffer:
		gather(crops, n.Body, infos)
	case *ir.SliceDim:
		gather(crops, n.Body, infos)
	case *ir.TruncateRank:
		gather(crops, n.Body, infos)
	case *ir.Check:
		// leaf
	}
}

func narrowedBox(crops *scopemap.Map[ir.BoxExpr], sym ir.SymbolId, bounds ir.BoxExpr) ir.BoxExpr {
	cur, ok := crops.Get(sym)
	if !ok {
		cur = ir.FullBox(bounds.Rank())
	}

	out := cur.Clone()
	for d := range bounds {
		if d < len(out) {
			out[d] = intersectInterval(out[d], bounds[d])
		}
	}

	return out
}

func intersectInterval(a, b ir.IntervalExpr) ir.IntervalExpr {
	return ir.IntervalExpr{
		Min: ir.Simplify(&ir.Max{Left: a.Min, Right: b.Min}),
		Max: ir.Simplify(&ir.Min{Left: a.Max, Right: b.Max}),
	}
}

func elementwiseMatch(actual, expected ir.BoxExpr) bool {
	if actual.Rank() != expected.Rank() {
		return false
	}

	for d := range actual {
		a := ir.IntervalExpr{Min: ir.Simplify(actual[d].Min), Max: ir.Simplify(actual[d].Max)}
		e := ir.IntervalExpr{Min: ir.Simplify(expected[d].Min), Max: ir.Simplify(expected[d].Max)}

		if !a.Equals(e) {
			return false
		}
	}

	return true
}

// assign picks, for every allocation eligible for aliasing, a target buffer
// from its candidate set (deterministically the lowest SymbolId), skipping
// candidates already claimed by an earlier allocation.
func assign(infos map[ir.SymbolId]*candidateInfo) map[ir.SymbolId]ir.SymbolId {
	syms := make([]ir.SymbolId, 0, len(infos))
	for sym := range infos {
		syms = append(syms, sym)
	}

	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })

	claimed := map[ir.SymbolId]bool{}
	assignment := map[ir.SymbolId]ir.SymbolId{}

	for _, sym := range syms {
		info := infos[sym]
		if !info.seen || !info.elementwise || len(info.candidates) == 0 {
			continue
		}

		candidates := make([]ir.SymbolId, 0, len(info.candidates))
		for c := range info.candidates {
			candidates = append(candidates, c)
		}

		sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

		for _, c := range candidates {
			if claimed[c] {
				continue
			}

			assignment[sym] = c
			claimed[c] = true

			break
		}
	}

	return assignment
}

// resolveChains flattens a chain of aliases (a aliases to b, b aliases to
// c) so that every entry points straight at its ultimate, unaliased
// target. Without this a rewrite would nest LetStmt a=b inside LetStmt
// b=c, and a's binding would need c's value before c's own LetStmt (its
// only source) has been evaluated.
func resolveChains(assignment map[ir.SymbolId]ir.SymbolId) map[ir.SymbolId]ir.SymbolId {
	resolved := map[ir.SymbolId]ir.SymbolId{}

	var resolve func(sym ir.SymbolId) ir.SymbolId
	resolve = func(sym ir.SymbolId) ir.SymbolId {
		if r, ok := resolved[sym]; ok {
			return r
		}

		target, ok := assignment[sym]
		if !ok {
			return sym
		}

		final := resolve(target)
		resolved[sym] = final

		return final
	}

	out := make(map[ir.SymbolId]ir.SymbolId, len(assignment))
	for sym := range assignment {
		out[sym] = resolve(sym)
	}

	return out
}

func rewrite(s ir.Stmt, assignment map[ir.SymbolId]ir.SymbolId) ir.Stmt {
	var mut *ir.StmtMutator
	mut = &ir.StmtMutator{Expr: &ir.ExprMutator{}, VisitStmt: func(n ir.Stmt) (ir.Stmt, bool) {
		alloc, ok := n.(*ir.Allocate)
		if !ok {
			return nil, false
		}

		body := mut.MutateStmt(alloc.Body)

		target, ok := assignment[alloc.Sym]
		if !ok {
			return &ir.Allocate{Sym: alloc.Sym, Storage: alloc.Storage, ElemSize: alloc.ElemSize, Dims: alloc.Dims, Body: body}, true
		}

		return &ir.LetStmt{Sym: alloc.Sym, Value: ir.Var(target), Body: body}, true
	}}

	return mut.MutateStmt(s)
}
