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

// SimplifyStmt returns a semantically equivalent, algebraically reduced
// form of s, applying Simplify to every embedded expression and the
// loop/block cleanup rewrite family (empty blocks elide, IfThenElse with a
// constant condition resolves to one branch, Loop with provably-empty
// bounds drops to the empty statement).
func SimplifyStmt(s Stmt) Stmt {
	return SimplifyStmtWithEnv(NewEnv(), s)
}

// SimplifyStmtWithEnv is SimplifyStmt parameterised over a caller-supplied
// bounds environment.
func SimplifyStmtWithEnv(env *Env, s Stmt) Stmt {
	return simplifyStmtRec(env, s)
}

func simplifyStmtRec(env *Env, s Stmt) Stmt {
	if s == nil {
		return nil
	}

	switch n := s.(type) {
	case *Block:
		a := simplifyStmtRec(env, n.A)
		b := simplifyStmtRec(env, n.B)

		return Seq(a, b)
	case *LetStmt:
		value := SimplifyWithEnv(env, n.Value)
		pop := env.Push()
		env.Bind(n.Sym, letValueRange(env, value))
		body := simplifyStmtRec(env, n.Body)
		pop()

		if body == nil {
			return nil
		}

		return &LetStmt{n.Sym, value, body}
	case *Loop:
		bounds := IntervalExpr{SimplifyWithEnv(env, n.Bounds.Min), SimplifyWithEnv(env, n.Bounds.Max)}
		step := SimplifyWithEnv(env, n.Step)

		if ProveTrue(env, Lt(bounds.Max, bounds.Min)) {
			return nil
		}

		pop := env.Push()
		env.Bind(n.Sym, bounds)
		body := simplifyStmtRec(env, n.Body)
		pop()

		if body == nil {
			return nil
		}

		return &Loop{n.Sym, n.Mode, bounds, step, body}
	case *IfThenElse:
		cond := SimplifyWithEnv(env, n.Cond)

		if isTrueConst(cond) {
			return simplifyStmtRec(env, n.Then)
		}

		if isFalseConst(cond) {
			return simplifyStmtRec(env, n.Else)
		}

		then := simplifyStmtRec(env, n.Then)
		els := simplifyStmtRec(env, n.Else)

		if then == nil && els == nil {
			return nil
		}

		return &IfThenElse{cond, then, els}
	case *CallStmt:
		return n
	case *CopyStmt:
		mut := &StmtMutator{Expr: &ExprMutator{Visit: func(e Expr) (Expr, bool) {
			return SimplifyWithEnv(env, e), true
		}}}

		return mut.MutateStmt(n)
	case *Allocate:
		dims := simplifyDims(env, n.Dims)
		body := simplifyStmtRec(env, n.Body)

		return &Allocate{n.Sym, n.Storage, n.ElemSize, dims, body}
	case *MakeBuffer:
		base := SimplifyWithEnv(env, n.Base)
		dims := simplifyDims(env, n.Dims)
		body := simplifyStmtRec(env, n.Body)

		return &MakeBuffer{n.Sym, base, n.ElemSize, dims, body}
	case *CropBuffer:
		bounds := simplifyBox(env, n.Bounds)
		pop := env.Push()
		body := simplifyStmtRec(env, n.Body)
		pop()

		if body == nil {
			return nil
		}

		return &CropBuffer{n.Sym, bounds, body}
	case *CropDim:
		bounds := IntervalExpr{SimplifyWithEnv(env, n.Bounds.Min), SimplifyWithEnv(env, n.Bounds.Max)}
		body := simplifyStmtRec(env, n.Body)

		if body == nil {
			return nil
		}

		return &CropDim{n.Sym, n.Dim, bounds, body}
	case *SliceBuffer:
		at := make([]Expr, len(n.At))
		for i, a := range n.At {
			if a != nil {
				at[i] = SimplifyWithEnv(env, a)
			}
		}

		body := simplifyStmtRec(env, n.Body)

		return &SliceBuffer{n.Sym, at, body}
	case *SliceDim:
		at := SimplifyWithEnv(env, n.At)
		body := simplifyStmtRec(env, n.Body)

		return &SliceDim{n.Sym, n.Dim, at, body}
	case *TruncateRank:
		body := simplifyStmtRec(env, n.Body)

		return &TruncateRank{n.Sym, n.Rank, body}
	case *Check:
		cond := SimplifyWithEnv(env, n.Cond)

		if isTrueConst(cond) {
			return nil
		}

		return &Check{cond, n.Message}
	default:
		panic("ir: unknown statement variant in SimplifyStmt")
	}
}

func simplifyDims(env *Env, dims []DimExpr) []DimExpr {
	out := make([]DimExpr, len(dims))

	for i, d := range dims {
		out[i] = DimExpr{
			Bounds:     IntervalExpr{SimplifyWithEnv(env, d.Bounds.Min), SimplifyWithEnv(env, d.Bounds.Max)},
			Stride:     SimplifyWithEnv(env, d.Stride),
			FoldFactor: simplifyOpt(env, d.FoldFactor),
		}
	}

	return out
}

func simplifyOpt(env *Env, e Expr) Expr {
	if e == nil {
		return nil
	}

	return SimplifyWithEnv(env, e)
}

func simplifyBox(env *Env, box BoxExpr) BoxExpr {
	out := make(BoxExpr, len(box))
	for i, iv := range box {
		out[i] = IntervalExpr{SimplifyWithEnv(env, iv.Min), SimplifyWithEnv(env, iv.Max)}
	}

	return out
}

func letValueRange(env *Env, value Expr) IntervalExpr {
	lo, hi := RangeOf(env, value)
	min, max := NegInf(), PosInf()

	if lo != nil {
		min = Const(*lo)
	}

	if hi != nil {
		max = Const(*hi)
	}

	return IntervalExpr{min, max}
}
