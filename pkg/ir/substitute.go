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

// Substitute replaces every structural occurrence of target within node
// with replacement, respecting shadowing introduced by inner Let bindings
// (the only binder an expression contains) that rebind target's symbol
// (when target is a bare Variable).
func Substitute(e Expr, target, replacement Expr) Expr {
	shadowSym, isVarTarget := targetSymbol(target)

	var mut *ExprMutator
	mut = &ExprMutator{Visit: func(n Expr) (Expr, bool) {
		if n.Equals(target) {
			return replacement, true
		}

		if isVarTarget {
			switch l := n.(type) {
			case *Let:
				if l.Sym == shadowSym {
					// Sym is shadowed inside Body; only Value is
					// substituted.
					return &Let{l.Sym, mut.MutateExpr(l.Value), l.Body}, true
				}
			}
		}

		return nil, false
	}}

	return mut.MutateExpr(e)
}

// Mentions reports whether sym occurs free anywhere within e.
func Mentions(e Expr, sym SymbolId) bool {
	found := false
	mut := &ExprMutator{Visit: func(n Expr) (Expr, bool) {
		if v, ok := n.(*Variable); ok && v.Sym == sym {
			found = true
		}

		return nil, false
	}}
	mut.MutateExpr(e)

	return found
}

func targetSymbol(e Expr) (SymbolId, bool) {
	if v, ok := e.(*Variable); ok {
		return v.Sym, true
	}

	return 0, false
}

// SubstituteStmt applies Substitute to every expression embedded in a
// statement tree, respecting the same shadowing rules for LetStmt, Loop,
// Allocate and MakeBuffer binders: their own expressions are substituted,
// their bodies are not. A CropBuffer or CropDim on target's symbol does not
// stop substitution in its body.
func SubstituteStmt(s Stmt, target, replacement Expr) Stmt {
	shadowSym, isVarTarget := targetSymbol(target)
	exprMut := &ExprMutator{Visit: func(n Expr) (Expr, bool) {
		if n.Equals(target) {
			return replacement, true
		}

		return nil, false
	}}

	var stmtMut *StmtMutator
	stmtMut = &StmtMutator{Expr: exprMut, VisitStmt: func(n Stmt) (Stmt, bool) {
		if !isVarTarget {
			return nil, false
		}

		switch t := n.(type) {
		case *LetStmt:
			if t.Sym == shadowSym {
				return &LetStmt{t.Sym, exprMut.MutateExpr(t.Value), t.Body}, true
			}
		case *Loop:
			if t.Sym == shadowSym {
				return &Loop{t.Sym, t.Mode, stmtMut.mutateInterval(t.Bounds), exprMut.MutateExpr(t.Step), t.Body}, true
			}
		case *Allocate:
			if t.Sym == shadowSym {
				return &Allocate{Sym: t.Sym, Storage: t.Storage, ElemSize: t.ElemSize, Dims: stmtMut.mutateDims(t.Dims), Body: t.Body}, true
			}
		case *MakeBuffer:
			if t.Sym == shadowSym {
				return &MakeBuffer{Sym: t.Sym, Base: stmtMut.mutateExpr(t.Base), ElemSize: t.ElemSize, Dims: stmtMut.mutateDims(t.Dims), Body: t.Body}, true
			}
		}

		return nil, false
	}}

	return stmtMut.MutateStmt(s)
}

// MetaKey identifies one buffer-metadata accessor call: an intrinsic
// applied to a specific buffer symbol and dimension.
type MetaKey struct {
	Intrinsic Intrinsic
	Buf       SymbolId
	Dim       int
}

// SubstituteBufferMeta rewrites every buffer-meta Call in e that matches an
// entry of table to that entry's replacement expression.  It is the
// general form bounds inference uses to specialise BufferMin, BufferMax,
// BufferStride and BufferExtent all at once, once an allocation's region
// and storage layout are known.
func SubstituteBufferMeta(e Expr, table map[MetaKey]Expr) Expr {
	mut := &ExprMutator{Visit: func(n Expr) (Expr, bool) {
		call, ok := n.(*Call)
		if !ok {
			return nil, false
		}

		buf, dim, ok := bufferMetaOf(call)
		if !ok {
			return nil, false
		}

		if repl, ok := table[MetaKey{call.Intrinsic, buf, dim}]; ok {
			return repl, true
		}

		return nil, false
	}}

	return mut.MutateExpr(e)
}

// SubstituteBounds specialises buffer-meta calls on sym to the concrete
// region box: BufferMin(sym,d) -> box[d].Min, BufferMax(sym,d) ->
// box[d].Max, BufferExtent(sym,d) -> box[d].Extent(). Other intrinsics on
// sym (BufferStride, BufferFoldFactor, BufferBase, ...) are left untouched;
// bounds inference substitutes those separately once storage is finalised.
func SubstituteBounds(e Expr, sym SymbolId, box BoxExpr) Expr {
	mut := &ExprMutator{Visit: func(n Expr) (Expr, bool) {
		call, ok := n.(*Call)
		if !ok {
			return nil, false
		}

		buf, dim, ok := bufferMetaOf(call)
		if !ok || buf != sym || dim < 0 || dim >= len(box) {
			return nil, false
		}

		switch call.Intrinsic {
		case BufferMin:
			return box[dim].Min, true
		case BufferMax:
			return box[dim].Max, true
		case BufferExtent:
			return box[dim].Extent(), true
		default:
			return nil, false
		}
	}}

	return mut.MutateExpr(e)
}
