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

// IntervalExpr is a closed interval [Min,Max] over symbolic Index
// expressions.
type IntervalExpr struct {
	Min, Max Expr
}

// Extent returns max-min+1 as an expression, unsimplified.
func (iv IntervalExpr) Extent() Expr {
	return Add(Sub(iv.Max, iv.Min), Const(1))
}

// Equals reports structural equality of the two intervals.
func (iv IntervalExpr) Equals(o IntervalExpr) bool {
	return iv.Min.Equals(o.Min) && iv.Max.Equals(o.Max)
}

// ShiftedBy returns the interval translated by delta.
func (iv IntervalExpr) ShiftedBy(delta Expr) IntervalExpr {
	return IntervalExpr{Add(iv.Min, delta), Add(iv.Max, delta)}
}

// DimExpr describes one dimension of a buffer: its bounds, its (byte)
// stride, and an optional fold factor.  FoldFactor == nil means the
// dimension is unfolded.
type DimExpr struct {
	Bounds     IntervalExpr
	Stride     Expr
	FoldFactor Expr
}

// BoxExpr is an n-dimensional symbolic region: one interval per dimension.
type BoxExpr []IntervalExpr

// Rank returns the number of dimensions in the box.
func (b BoxExpr) Rank() int { return len(b) }

// Clone returns a shallow copy of the box (the Expr trees themselves are
// immutable and safely shared).
func (b BoxExpr) Clone() BoxExpr {
	out := make(BoxExpr, len(b))
	copy(out, b)

	return out
}

// Equals reports structural equality dimension-by-dimension.
func (b BoxExpr) Equals(o BoxExpr) bool {
	if len(b) != len(o) {
		return false
	}

	for i := range b {
		if !b[i].Equals(o[i]) {
			return false
		}
	}

	return true
}

// FullBox returns a box of the given rank whose every dimension is the
// unrestricted interval [-inf, +inf], the identity element for
// intersection (used to seed a crop that has not yet been narrowed).
func FullBox(rank int) BoxExpr {
	box := make(BoxExpr, rank)
	for d := range box {
		box[d] = IntervalExpr{NegInf(), PosInf()}
	}

	return box
}

// EmptyBox returns a box of the given rank whose every dimension is the
// empty interval [+inf, -inf], suitable as the identity element for the
// running union computed during bounds inference.
func EmptyBox(rank int) BoxExpr {
	box := make(BoxExpr, rank)
	for d := range box {
		box[d] = IntervalExpr{PosInf(), NegInf()}
	}

	return box
}
