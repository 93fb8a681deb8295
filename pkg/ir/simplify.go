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

// FlooredDiv computes a/b rounding the quotient toward negative infinity.
func FlooredDiv(a, b Index) Index {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

// FlooredMod computes a%b such that the result carries the sign of b.
func FlooredMod(a, b Index) Index {
	r := a % b
	if r != 0 && ((r < 0) != (b < 0)) {
		r += b
	}

	return r
}

// Simplify returns a semantically equivalent, algebraically reduced form of
// e.  It is sound (no rule changes the value the expression denotes for any
// assignment of its free variables) and reaches a fixed point: Simplify is
// idempotent.
func Simplify(e Expr) Expr {
	return SimplifyWithEnv(NewEnv(), e)
}

// SimplifyWithEnv is Simplify parameterised over a caller-supplied bounds
// environment, letting passes fold comparisons and min/max expressions
// against the ranges of enclosing loop and crop variables.
func SimplifyWithEnv(env *Env, e Expr) Expr {
	mut := &ExprMutator{}
	mut.Visit = func(n Expr) (Expr, bool) {
		switch t := n.(type) {
		case *Variable, *Constant, *Wildcard:
			return n, true
		case *Binary:
			l, r := mut.MutateExpr(t.Left), mut.MutateExpr(t.Right)
			return simplifyBinary(env, t.Op, l, r), true
		case *Not:
			a := mut.MutateExpr(t.Arg)
			return simplifyNot(a), true
		case *Min:
			l, r := mut.MutateExpr(t.Left), mut.MutateExpr(t.Right)
			return simplifyMin(env, l, r), true
		case *Max:
			l, r := mut.MutateExpr(t.Left), mut.MutateExpr(t.Right)
			return simplifyMax(env, l, r), true
		case *Select:
			c, a, b := mut.MutateExpr(t.Cond), mut.MutateExpr(t.True), mut.MutateExpr(t.False)
			return simplifySelect(c, a, b), true
		case *Let:
			v, body := mut.MutateExpr(t.Value), mut.MutateExpr(t.Body)
			return simplifyLet(t.Sym, v, body), true
		case *Call:
			return simplifyCall(t, mut), true
		default:
			return nil, false
		}
	}

	return mut.MutateExpr(e)
}

func simplifyCall(c *Call, mut *ExprMutator) Expr {
	args := make([]Expr, len(c.Args))
	poisoned := false

	for i, a := range c.Args {
		args[i] = mut.MutateExpr(a)
		if isIndeterminate(args[i]) {
			poisoned = true
		}
	}

	if poisoned {
		return Indet()
	}

	if c.Intrinsic == Abs && len(args) == 1 {
		if k, ok := args[0].(*Constant); ok {
			v := k.Value
			if v < 0 {
				v = -v
			}

			return Const(v)
		}
	}

	return &Call{c.Intrinsic, args}
}

func isIndeterminate(e Expr) bool {
	c, ok := e.(*Call)
	return ok && c.Intrinsic == Indeterminate
}

func isPosInf(e Expr) bool {
	c, ok := e.(*Call)
	return ok && c.Intrinsic == PositiveInfinity
}

func isNegInf(e Expr) bool {
	c, ok := e.(*Call)
	return ok && c.Intrinsic == NegativeInfinity
}

func asConst(e Expr) (Index, bool) {
	c, ok := e.(*Constant)
	if !ok {
		return 0, false
	}

	return c.Value, true
}

// simplifyBinary implements constant folding, identities, and
// canonicalisation for the binary operator family (rewrite families 1-3 of
// the simplifier contract).
func simplifyBinary(env *Env, op BinOp, l, r Expr) Expr {
	if isIndeterminate(l) || isIndeterminate(r) {
		return Indet()
	}

	if lv, lok := asConst(l); lok {
		if rv, rok := asConst(r); rok {
			return foldConstBinary(op, lv, rv)
		}
	}

	// Canonicalise commutative operators: constants move to the right.
	if isCommutative(op) {
		if _, lok := l.(*Constant); lok {
			if _, rok := r.(*Constant); !rok {
				l, r = r, l
			}
		}
	}

	if e, ok := identitySimplify(op, l, r); ok {
		return e
	}

	// a - b -> a + (-b) when b is a constant, per canonicalisation rule 3.
	if op == OpSub {
		if bv, ok := asConst(r); ok && bv != 0 {
			return simplifyBinary(env, OpAdd, l, Const(-bv))
		}
	}

	// (x + c1) + c2 -> x + (c1 + c2): constant offsets along an additive
	// chain merge into one, so (i + -1) + 1 reduces to i.
	if op == OpAdd {
		if rv, ok := asConst(r); ok {
			if lb, ok := l.(*Binary); ok && lb.Op == OpAdd {
				if lv, ok := asConst(lb.Right); ok {
					return simplifyBinary(env, OpAdd, lb.Left, Const(lv+rv))
				}
			}
		}
	}

	if e, ok := comparisonAlgebra(env, op, l, r); ok {
		return e
	}

	return &Binary{op, l, r}
}

// splitConstOffset peels a chain of additive constant terms off e, returning
// the innermost non-constant expression and the accumulated constant
// offset (e.g. (x+2)+3 -> x, 5). An e with no such chain returns itself
// with a zero offset.
func splitConstOffset(e Expr) (base Expr, offset Index) {
	b, ok := e.(*Binary)
	if !ok || b.Op != OpAdd {
		return e, 0
	}

	if v, ok := asConst(b.Right); ok {
		base, offset = splitConstOffset(b.Left)

		return base, offset + v
	}

	if v, ok := asConst(b.Left); ok {
		base, offset = splitConstOffset(b.Right)

		return base, offset + v
	}

	return e, 0
}

func isCommutative(op BinOp) bool {
	switch op {
	case OpAdd, OpMul, OpEq, OpNe, OpAnd, OpOr:
		return true
	default:
		return false
	}
}

func foldConstBinary(op BinOp, a, b Index) Expr {
	switch op {
	case OpAdd:
		return Const(a + b)
	case OpSub:
		return Const(a - b)
	case OpMul:
		return Const(a * b)
	case OpDiv:
		if b == 0 {
			return Indet()
		}

		return Const(FlooredDiv(a, b))
	case OpMod:
		if b == 0 {
			return Indet()
		}

		return Const(FlooredMod(a, b))
	case OpEq:
		return boolExpr(a == b)
	case OpNe:
		return boolExpr(a != b)
	case OpLt:
		return boolExpr(a < b)
	case OpLe:
		return boolExpr(a <= b)
	case OpAnd:
		return boolExpr(a != 0 && b != 0)
	case OpOr:
		return boolExpr(a != 0 || b != 0)
	default:
		panic("ir: unknown binary operator in foldConstBinary")
	}
}

func boolExpr(b bool) Expr {
	if b {
		return Const(1)
	}

	return Const(0)
}

func isTrueConst(e Expr) bool {
	v, ok := asConst(e)
	return ok && v != 0
}

func isFalseConst(e Expr) bool {
	v, ok := asConst(e)
	return ok && v == 0
}

// identitySimplify implements rewrite family 2 (identity/absorbing
// elements) for a binary node whose operands are already simplified.
func identitySimplify(op BinOp, l, r Expr) (Expr, bool) {
	switch op {
	case OpAdd:
		if v, ok := asConst(r); ok && v == 0 {
			return l, true
		}

		if v, ok := asConst(l); ok && v == 0 {
			return r, true
		}
	case OpSub:
		if v, ok := asConst(r); ok && v == 0 {
			return l, true
		}

		if l.Equals(r) {
			return Const(0), true
		}
	case OpMul:
		if v, ok := asConst(r); ok {
			if v == 1 {
				return l, true
			}

			if v == 0 {
				return Const(0), true
			}
		}

		if v, ok := asConst(l); ok {
			if v == 1 {
				return r, true
			}

			if v == 0 {
				return Const(0), true
			}
		}
	case OpDiv:
		if v, ok := asConst(r); ok && v == 1 {
			return l, true
		}
	case OpAnd:
		if isTrueConst(r) {
			return l, true
		}

		if isTrueConst(l) {
			return r, true
		}

		if isFalseConst(r) || isFalseConst(l) {
			return Const(0), true
		}
	case OpOr:
		if isFalseConst(r) {
			return l, true
		}

		if isFalseConst(l) {
			return r, true
		}

		if isTrueConst(r) || isTrueConst(l) {
			return Const(1), true
		}
	case OpEq:
		if l.Equals(r) {
			return Const(1), true
		}
	case OpNe:
		if l.Equals(r) {
			return Const(0), true
		}
	}

	return nil, false
}

// comparisonAlgebra implements rewrite family 5: reflexive comparisons and
// bounds-driven dispositions using the interval ranges of known variables.
func comparisonAlgebra(env *Env, op BinOp, l, r Expr) (Expr, bool) {
	switch op {
	case OpLe:
		if l.Equals(r) {
			return Const(1), true
		}
	case OpLt:
		if l.Equals(r) {
			return Const(0), true
		}
	}

	if op != OpLt && op != OpLe && op != OpEq && op != OpNe {
		return nil, false
	}

	// Two expressions built from the same non-constant base plus differing
	// constant offsets compare by their offsets alone, regardless of the
	// base's own range. This is what lets passes like slide prove a crop
	// shifted by a loop step is monotone even while deliberately treating
	// the loop variable's own range as unbounded (see pkg/slide).
	lbase, loff := splitConstOffset(l)
	rbase, roff := splitConstOffset(r)

	if lbase.Equals(rbase) {
		switch op {
		case OpLt:
			return boolExpr(loff < roff), true
		case OpLe:
			return boolExpr(loff <= roff), true
		case OpEq:
			return boolExpr(loff == roff), true
		case OpNe:
			return boolExpr(loff != roff), true
		}
	}

	llo, lhi := RangeOf(env, l)
	rlo, rhi := RangeOf(env, r)

	switch op {
	case OpLt:
		if lhi != nil && rlo != nil && *lhi < *rlo {
			return Const(1), true
		}

		if llo != nil && rhi != nil && *llo >= *rhi {
			return Const(0), true
		}
	case OpLe:
		if lhi != nil && rlo != nil && *lhi <= *rlo {
			return Const(1), true
		}

		if llo != nil && rhi != nil && *llo > *rhi {
			return Const(0), true
		}
	case OpEq:
		if lhi != nil && rlo != nil && *lhi < *rlo {
			return Const(0), true
		}

		if llo != nil && rhi != nil && *llo > *rhi {
			return Const(0), true
		}
	case OpNe:
		if lhi != nil && rlo != nil && *lhi < *rlo {
			return Const(1), true
		}

		if llo != nil && rhi != nil && *llo > *rhi {
			return Const(1), true
		}
	}

	return nil, false
}

func simplifyNot(a Expr) Expr {
	if isIndeterminate(a) {
		return Indet()
	}

	if v, ok := asConst(a); ok {
		return boolExpr(v == 0)
	}

	if n, ok := a.(*Not); ok {
		return n.Arg
	}

	return &Not{a}
}

func simplifyMin(env *Env, l, r Expr) Expr {
	if isIndeterminate(l) || isIndeterminate(r) {
		return Indet()
	}

	if isPosInf(r) {
		return l
	}

	if isPosInf(l) {
		return r
	}

	if isNegInf(l) || isNegInf(r) {
		return NegInf()
	}

	if lv, ok := asConst(l); ok {
		if rv, ok := asConst(r); ok {
			if lv < rv {
				return Const(lv)
			}

			return Const(rv)
		}
	}

	if l.Equals(r) {
		return l
	}

	if ProveTrue(env, Le(l, r)) {
		return l
	}

	if ProveTrue(env, Le(r, l)) {
		return r
	}

	return &Min{l, r}
}

func simplifyMax(env *Env, l, r Expr) Expr {
	if isIndeterminate(l) || isIndeterminate(r) {
		return Indet()
	}

	if isNegInf(r) {
		return l
	}

	if isNegInf(l) {
		return r
	}

	if isPosInf(l) || isPosInf(r) {
		return PosInf()
	}

	if lv, ok := asConst(l); ok {
		if rv, ok := asConst(r); ok {
			if lv > rv {
				return Const(lv)
			}

			return Const(rv)
		}
	}

	if l.Equals(r) {
		return l
	}

	if ProveTrue(env, Le(l, r)) {
		return r
	}

	if ProveTrue(env, Le(r, l)) {
		return l
	}

	return &Max{l, r}
}

func simplifySelect(cond, a, b Expr) Expr {
	if isIndeterminate(cond) {
		return Indet()
	}

	if isTrueConst(cond) {
		return a
	}

	if isFalseConst(cond) {
		return b
	}

	if a.Equals(b) {
		return a
	}

	return &Select{cond, a, b}
}

// simplifyLet implements rewrite family 7: inline the binding when the
// value is a leaf (Variable/Constant) or used at most once in the body.
func simplifyLet(sym SymbolId, value, body Expr) Expr {
	if isIndeterminate(value) {
		return Indet()
	}

	_, isVar := value.(*Variable)
	_, isConst := value.(*Constant)

	if isVar || isConst || countUses(sym, body) <= 1 {
		return Substitute(body, Var(sym), value)
	}

	return &Let{sym, value, body}
}

func countUses(sym SymbolId, e Expr) int {
	count := 0
	mut := &ExprMutator{Visit: func(n Expr) (Expr, bool) {
		if v, ok := n.(*Variable); ok && v.Sym == sym {
			count++
		}

		return nil, false
	}}
	mut.MutateExpr(e)

	return count
}

// RangeOf returns a conservative [lo,hi] estimate for e given env, with nil
// endpoints meaning unbounded in that direction.  It underlies min/max
// simplification and comparison algebra; it is not required to be exact,
// only sound (the true value always lies within the returned range).
func RangeOf(env *Env, e Expr) (lo, hi *Index) {
	switch t := e.(type) {
	case *Constant:
		return &t.Value, &t.Value
	case *Variable:
		if iv, ok := env.Lookup(t.Sym); ok {
			return exprBound(iv.Min, false), exprBound(iv.Max, true)
		}

		return nil, nil
	case *Call:
		switch t.Intrinsic {
		case PositiveInfinity:
			return nil, nil
		case NegativeInfinity:
			return nil, nil
		case Abs:
			return zeroPtr(), nil
		}

		return nil, nil
	case *Binary:
		return rangeOfBinary(env, t)
	case *Min:
		l1, h1 := RangeOf(env, t.Left)
		l2, h2 := RangeOf(env, t.Right)

		return minPtr(l1, l2), minPtr(h1, h2)
	case *Max:
		l1, h1 := RangeOf(env, t.Left)
		l2, h2 := RangeOf(env, t.Right)

		return maxPtr(l1, l2), maxPtr(h1, h2)
	case *Select:
		l1, h1 := RangeOf(env, t.True)
		l2, h2 := RangeOf(env, t.False)

		return minPtr(l1, l2), maxPtr(h1, h2)
	default:
		return nil, nil
	}
}

func exprBound(e Expr, isMax bool) *Index {
	if isMax && isPosInf(e) {
		return nil
	}

	if !isMax && isNegInf(e) {
		return nil
	}

	if v, ok := asConst(e); ok {
		return &v
	}

	return nil
}

func rangeOfBinary(env *Env, b *Binary) (lo, hi *Index) {
	l1, h1 := RangeOf(env, b.Left)
	l2, h2 := RangeOf(env, b.Right)

	switch b.Op {
	case OpAdd:
		return addPtr(l1, l2), addPtr(h1, h2)
	case OpSub:
		return subPtr(l1, h2), subPtr(h1, l2)
	case OpMul:
		if v, ok := asConst(b.Right); ok && v >= 0 {
			return mulPtr(l1, v), mulPtr(h1, v)
		}

		return nil, nil
	default:
		return nil, nil
	}
}

func zeroPtr() *Index { v := Index(0); return &v }

func addPtr(a, b *Index) *Index {
	if a == nil || b == nil {
		return nil
	}

	v := *a + *b

	return &v
}

func subPtr(a, b *Index) *Index {
	if a == nil || b == nil {
		return nil
	}

	v := *a - *b

	return &v
}

func mulPtr(a *Index, k Index) *Index {
	if a == nil {
		return nil
	}

	v := *a * k

	return &v
}

func minPtr(a, b *Index) *Index {
	if a == nil || b == nil {
		return nil
	}

	if *a < *b {
		return a
	}

	return b
}

func maxPtr(a, b *Index) *Index {
	if a == nil || b == nil {
		return nil
	}

	if *a > *b {
		return a
	}

	return b
}

// ProveTrue reports whether cond can be shown, from constant folding and
// the interval ranges in env, to always evaluate to a nonzero value. A
// false return does not mean cond is false — only that it could not be
// proven true.
func ProveTrue(env *Env, cond Expr) bool {
	s := SimplifyWithEnv(env, cond)

	return isTrueConst(s)
}

// ProveFalse is the dual of ProveTrue.
func ProveFalse(env *Env, cond Expr) bool {
	s := SimplifyWithEnv(env, cond)

	return isFalseConst(s)
}
