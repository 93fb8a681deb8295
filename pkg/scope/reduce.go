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

// Package scope implements the scope reducer (§4.6) and the input crop
// remover (§4.8): the two passes that tighten how far a binding or a crop
// reaches once bounds inference and folding have settled the buffer
// regions they were guarding. Scope reduction runs a second time later in
// the pipeline, after aliasing and copy optimisation have had their own
// chance to shrink what a binding's body still needs.
package scope

import "github.com/slinkylang/slinky/pkg/ir"

// Reduce shrinks every scoping node (LetStmt, Allocate, MakeBuffer, Crop*,
// Slice*, TruncateRank) down to the minimal contiguous run of its body that
// actually references the bound symbol, hoisting everything else outside
// the node. A scoping node whose symbol turns out to be unused anywhere in
// its body is dropped entirely.
func Reduce(root ir.Stmt) ir.Stmt {
	return reduce(root)
}

func reduce(s ir.Stmt) ir.Stmt {
	if s == nil {
		return nil
	}

	switch n := s.(type) {
	case *ir.Block:
		return ir.Seq(reduce(n.A), reduce(n.B))
	case *ir.Loop:
		return &ir.Loop{Sym: n.Sym, Mode: n.Mode, Bounds: n.Bounds, Step: n.Step, Body: reduce(n.Body)}
	case *ir.IfThenElse:
		return &ir.IfThenElse{Cond: n.Cond, Then: reduce(n.Then), Else: reduce(n.Else)}
	case *ir.CallStmt, *ir.CopyStmt, *ir.Check:
		return n
	case *ir.LetStmt:
		return wrapScope(n.Sym, reduce(n.Body), func(b ir.Stmt) ir.Stmt {
			return &ir.LetStmt{Sym: n.Sym, Value: n.Value, Body: b}
		})
	case *ir.Allocate:
		return wrapScope(n.Sym, reduce(n.Body), func(b ir.Stmt) ir.Stmt {
			return &ir.Allocate{Sym: n.Sym, Storage: n.Storage, ElemSize: n.ElemSize, Dims: n.Dims, Body: b}
		})
	case *ir.MakeBuffer:
		return wrapScope(n.Sym, reduce(n.Body), func(b ir.Stmt) ir.Stmt {
			return &ir.MakeBuffer{Sym: n.Sym, Base: n.Base, ElemSize: n.ElemSize, Dims: n.Dims, Body: b}
		})
	case *ir.CropBuffer:
		return wrapScope(n.Sym, reduce(n.Body), func(b ir.Stmt) ir.Stmt {
			return &ir.CropBuffer{Sym: n.Sym, Bounds: n.Bounds, Body: b}
		})
	case *ir.CropDim:
		return wrapScope(n.Sym, reduce(n.Body), func(b ir.Stmt) ir.Stmt {
			return &ir.CropDim{Sym: n.Sym, Dim: n.Dim, Bounds: n.Bounds, Body: b}
		})
	case *ir.SliceBuffer:
		return wrapScope(n.Sym, reduce(n.Body), func(b ir.Stmt) ir.Stmt {
			return &ir.SliceBuffer{Sym: n.Sym, At: n.At, Body: b}
		})
	case *ir.SliceDim:
		return wrapScope(n.Sym, reduce(n.Body), func(b ir.Stmt) ir.Stmt {
			return &ir.SliceDim{Sym: n.Sym, Dim: n.Dim, At: n.At, Body: b}
		})
	case *ir.TruncateRank:
		return wrapScope(n.Sym, reduce(n.Body), func(b ir.Stmt) ir.Stmt {
			return &ir.TruncateRank{Sym: n.Sym, Rank: n.Rank, Body: b}
		})
	default:
		panic("scope: unknown statement variant")
	}
}

// wrapScope splits body into the leading run that never mentions sym, the
// minimal contiguous middle run that does, and the trailing run that
// doesn't, then rebuilds the scoping node around only the middle run.
func wrapScope(sym ir.SymbolId, body ir.Stmt, rebuild func(ir.Stmt) ir.Stmt) ir.Stmt {
	flat := flatten(body)

	lo, hi := -1, -1

	for i, st := range flat {
		if mentions(st, sym) {
			if lo == -1 {
				lo = i
			}

			hi = i
		}
	}

	if lo == -1 {
		return ir.Seq(flat...)
	}

	before := ir.Seq(flat[:lo]...)
	inner := ir.Seq(flat[lo : hi+1]...)
	after := ir.Seq(flat[hi+1:]...)

	return ir.Seq(before, rebuild(inner), after)
}

func flatten(s ir.Stmt) []ir.Stmt {
	if s == nil {
		return nil
	}

	if b, ok := s.(*ir.Block); ok {
		return append(flatten(b.A), flatten(b.B)...)
	}

	return []ir.Stmt{s}
}

func mentions(s ir.Stmt, sym ir.SymbolId) bool {
	if s == nil {
		return false
	}

	switch n := s.(type) {
	case *ir.Block:
		return mentions(n.A, sym) || mentions(n.B, sym)
	case *ir.LetStmt:
		return ir.Mentions(n.Value, sym) || mentions(n.Body, sym)
	case *ir.Loop:
		return n.Sym == sym || ir.Mentions(n.Bounds.Min, sym) || ir.Mentions(n.Bounds.Max, sym) ||
			ir.Mentions(n.Step, sym) || mentions(n.Body, sym)
	case *ir.IfThenElse:
		return ir.Mentions(n.Cond, sym) || mentions(n.Then, sym) || mentions(n.Else, sym)
	case *ir.CallStmt:
		return containsSym(n.Inputs, sym) || containsSym(n.Outputs, sym)
	case *ir.CopyStmt:
		if n.Src == sym || n.Dst == sym {
			return true
		}

		for _, x := range n.SrcX {
			if ir.Mentions(x, sym) {
				return true
			}
		}

		return false
	case *ir.Allocate:
		return dimsMention(n.Dims, sym) || mentions(n.Body, sym)
	case *ir.MakeBuffer:
		return ir.Mentions(n.Base, sym) || dimsMention(n.Dims, sym) || mentions(n.Body, sym)
	case *ir.CropBuffer:
		return n.Sym == sym || boxMentions(n.Bounds, sym) || mentions(n.Body, sym)
	case *ir.CropDim:
		return n.Sym == sym || ir.Mentions(n.Bounds.Min, sym) || ir.Mentions(n.Bounds.Max, sym) || mentions(n.Body, sym)
	case *ir.SliceBuffer:
		if n.Sym == sym {
			return true
		}

		for _, a := range n.At {
			if a != nil && ir.Mentions(a, sym) {
				return true
			}
		}

		return mentions(n.Body, sym)
	case *ir.SliceDim:
		return n.Sym == sym || (n.At != nil && ir.Mentions(n.At, sym)) || mentions(n.Body, sym)
	case *ir.TruncateRank:
		return n.Sym == sym || mentions(n.Body, sym)
	case *ir.Check:
		return ir.Mentions(n.Cond, sym)
	default:
		return false
	}
}

func containsSym(list []ir.SymbolId, sym ir.SymbolId) bool {
	for _, s := range list {
		if s == sym {
			return true
		}
	}

	return false
}

func dimsMention(dims []ir.DimExpr, sym ir.SymbolId) bool {
	for _, d := range dims {
		if ir.Mentions(d.Bounds.Min, sym) || ir.Mentions(d.Bounds.Max, sym) || ir.Mentions(d.Stride, sym) {
			return true
		}

		if d.FoldFactor != nil && ir.Mentions(d.FoldFactor, sym) {
			return true
		}
	}

	return false
}

func boxMentions(box ir.BoxExpr, sym ir.SymbolId) bool {
	for _, iv := range box {
		if ir.Mentions(iv.Min, sym) || ir.Mentions(iv.Max, sym) {
			return true
		}
	}

	return false
}
