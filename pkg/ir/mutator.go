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
package ir

// ExprMutator rewrites an expression tree bottom-up.  A pass embeds
// *ExprMutator and overrides only the callback fields it cares about; every
// other node variant falls through to MutateExpr's default recursive
// behaviour, which mutates children and rebuilds the node only if a child
// actually changed (pointer-identity short-circuit).
type ExprMutator struct {
	// Visit, if non-nil, is called on every node (pre-order, before
	// children are mutated) and may return a replacement to use in place
	// of recursing further into that subtree.
	Visit func(Expr) (Expr, bool)
}

// MutateExpr applies m to e and every descendant, returning the rewritten
// tree.
func (m *ExprMutator) MutateExpr(e Expr) Expr {
	if m.Visit != nil {
		if replacement, ok := m.Visit(e); ok {
			return replacement
		}
	}

	switch n := e.(type) {
	case *Variable, *Constant, *Wildcard:
		return n
	case *Binary:
		l, r := m.MutateExpr(n.Left), m.MutateExpr(n.Right)
		if l == n.Left && r == n.Right {
			return n
		}

		return &Binary{n.Op, l, r}
	case *Not:
		a := m.MutateExpr(n.Arg)
		if a == n.Arg {
			return n
		}

		return &Not{a}
	case *Min:
		l, r := m.MutateExpr(n.Left), m.MutateExpr(n.Right)
		if l == n.Left && r == n.Right {
			return n
		}

		return &Min{l, r}
	case *Max:
		l, r := m.MutateExpr(n.Left), m.MutateExpr(n.Right)
		if l == n.Left && r == n.Right {
			return n
		}

		return &Max{l, r}
	case *Select:
		c, t, f := m.MutateExpr(n.Cond), m.MutateExpr(n.True), m.MutateExpr(n.False)
		if c == n.Cond && t == n.True && f == n.False {
			return n
		}

		return &Select{c, t, f}
	case *Let:
		v, b := m.MutateExpr(n.Value), m.MutateExpr(n.Body)
		if v == n.Value && b == n.Body {
			return n
		}

		return &Let{n.Sym, v, b}
	case *Call:
		changed := false
		args := make([]Expr, len(n.Args))

		for i, a := range n.Args {
			args[i] = m.MutateExpr(a)
			if args[i] != a {
				changed = true
			}
		}

		if !changed {
			return n
		}

		return &Call{n.Intrinsic, args}
	default:
		panic("ir: unknown expression variant in MutateExpr")
	}
}

// StmtMutator rewrites a statement tree bottom-up, using an ExprMutator for
// any embedded expressions.  As with ExprMutator, a pass overrides only the
// fields it needs; everything else falls through to the default recursive
// behaviour.
type StmtMutator struct {
	Expr *ExprMutator
	// VisitStmt, if non-nil, is called pre-order on every statement and
	// may return a replacement in place of recursing further.
	VisitStmt func(Stmt) (Stmt, bool)
}

func (m *StmtMutator) mutateExpr(e Expr) Expr {
	if m.Expr == nil || e == nil {
		return e
	}

	return m.Expr.MutateExpr(e)
}

func (m *StmtMutator) mutateExprs(es []Expr) []Expr {
	if m.Expr == nil {
		return es
	}

	changed := false
	out := make([]Expr, len(es))

	for i, e := range es {
		out[i] = m.mutateExpr(e)
		if out[i] != e {
			changed = true
		}
	}

	if !changed {
		return es
	}

	return out
}

func (m *StmtMutator) mutateInterval(iv IntervalExpr) IntervalExpr {
	return IntervalExpr{m.mutateExpr(iv.Min), m.mutateExpr(iv.Max)}
}

func (m *StmtMutator) mutateBox(b BoxExpr) BoxExpr {
	out := make(BoxExpr, len(b))
	for i, iv := range b {
		out[i] = m.mutateInterval(iv)
	}

	return out
}

func (m *StmtMutator) mutateDims(dims []DimExpr) []DimExpr {
	out := make([]DimExpr, len(dims))

	for i, d := range dims {
		out[i] = DimExpr{m.mutateInterval(d.Bounds), m.mutateExpr(d.Stride), m.mutateExpr(d.FoldFactor)}
	}

	return out
}

// MutateStmt applies m to s and every descendant, returning the rewritten
// tree.  A nil Stmt (the empty block) mutates to itself.
func (m *StmtMutator) MutateStmt(s Stmt) Stmt {
	if s == nil {
		return nil
	}

	if m.VisitStmt != nil {
		if replacement, ok := m.VisitStmt(s); ok {
			return replacement
		}
	}

	switch n := s.(type) {
	case *Block:
		a, b := m.MutateStmt(n.A), m.MutateStmt(n.B)
		if a == nil && b == nil {
			return nil
		}

		if a == nil {
			return b
		}

		if b == nil {
			return a
		}

		return &Block{a, b}
	case *LetStmt:
		v, b := m.mutateExpr(n.Value), m.MutateStmt(n.Body)
		return &LetStmt{n.Sym, v, b}
	case *Loop:
		bounds, step, body := m.mutateInterval(n.Bounds), m.mutateExpr(n.Step), m.MutateStmt(n.Body)
		return &Loop{n.Sym, n.Mode, bounds, step, body}
	case *IfThenElse:
		cond, then, els := m.mutateExpr(n.Cond), m.MutateStmt(n.Then), m.MutateStmt(n.Else)
		return &IfThenElse{cond, then, els}
	case *CallStmt:
		return n
	case *CopyStmt:
		srcX := m.mutateExprs(n.SrcX)
		return &CopyStmt{n.Src, srcX, n.Dst, n.Padding}
	case *Allocate:
		dims, body := m.mutateDims(n.Dims), m.MutateStmt(n.Body)
		return &Allocate{n.Sym, n.Storage, n.ElemSize, dims, body}
	case *MakeBuffer:
		base, dims, body := m.mutateExpr(n.Base), m.mutateDims(n.Dims), m.MutateStmt(n.Body)
		return &MakeBuffer{n.Sym, base, n.ElemSize, dims, body}
	case *CropBuffer:
		bounds, body := m.mutateBox(n.Bounds), m.MutateStmt(n.Body)
		return &CropBuffer{n.Sym, bounds, body}
	case *CropDim:
		bounds, body := m.mutateInterval(n.Bounds), m.MutateStmt(n.Body)
		return &CropDim{n.Sym, n.Dim, bounds, body}
	case *SliceBuffer:
		at, body := m.mutateExprs(n.At), m.MutateStmt(n.Body)
		return &SliceBuffer{n.Sym, at, body}
	case *SliceDim:
		at, body := m.mutateExpr(n.At), m.MutateStmt(n.Body)
		return &SliceDim{n.Sym, n.Dim, at, body}
	case *TruncateRank:
		body := m.MutateStmt(n.Body)
		return &TruncateRank{n.Sym, n.Rank, body}
	case *Check:
		cond := m.mutateExpr(n.Cond)
		return &Check{cond, n.Message}
	default:
		panic("ir: unknown statement variant in MutateStmt")
	}
}
