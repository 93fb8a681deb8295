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

// StmtEquals reports whether two statement trees are structurally
// identical, including bound symbol ids.  It exists because
// reflect.DeepEqual would also compare unexported mutator caches were any
// present, and because the interface-typed nil child of a Block/IfThenElse
// needs nil-safe handling.
func StmtEquals(a, b Stmt) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch x := a.(type) {
	case *Block:
		y, ok := b.(*Block)
		return ok && StmtEquals(x.A, y.A) && StmtEquals(x.B, y.B)
	case *LetStmt:
		y, ok := b.(*LetStmt)
		return ok && x.Sym == y.Sym && x.Value.Equals(y.Value) && StmtEquals(x.Body, y.Body)
	case *Loop:
		y, ok := b.(*Loop)
		return ok && x.Sym == y.Sym && x.Mode == y.Mode && x.Bounds.Equals(y.Bounds) &&
			x.Step.Equals(y.Step) && StmtEquals(x.Body, y.Body)
	case *IfThenElse:
		y, ok := b.(*IfThenElse)
		return ok && x.Cond.Equals(y.Cond) && StmtEquals(x.Then, y.Then) && StmtEquals(x.Else, y.Else)
	case *CallStmt:
		y, ok := b.(*CallStmt)
		return ok && x.Callback == y.Callback && symsEqual(x.Inputs, y.Inputs) && symsEqual(x.Outputs, y.Outputs)
	case *CopyStmt:
		y, ok := b.(*CopyStmt)
		if !ok || x.Src != y.Src || x.Dst != y.Dst || len(x.SrcX) != len(y.SrcX) {
			return false
		}

		for i := range x.SrcX {
			if !x.SrcX[i].Equals(y.SrcX[i]) {
				return false
			}
		}

		return string(x.Padding) == string(y.Padding)
	case *Allocate:
		y, ok := b.(*Allocate)
		return ok && x.Sym == y.Sym && x.Storage == y.Storage && x.ElemSize == y.ElemSize &&
			dimsEqual(x.Dims, y.Dims) && StmtEquals(x.Body, y.Body)
	case *MakeBuffer:
		y, ok := b.(*MakeBuffer)
		return ok && x.Sym == y.Sym && x.Base.Equals(y.Base) && x.ElemSize == y.ElemSize &&
			dimsEqual(x.Dims, y.Dims) && StmtEquals(x.Body, y.Body)
	case *CropBuffer:
		y, ok := b.(*CropBuffer)
		return ok && x.Sym == y.Sym && x.Bounds.Equals(y.Bounds) && StmtEquals(x.Body, y.Body)
	case *CropDim:
		y, ok := b.(*CropDim)
		return ok && x.Sym == y.Sym && x.Dim == y.Dim && x.Bounds.Equals(y.Bounds) && StmtEquals(x.Body, y.Body)
	case *SliceBuffer:
		y, ok := b.(*SliceBuffer)
		if !ok || x.Sym != y.Sym || len(x.At) != len(y.At) {
			return false
		}

		for i := range x.At {
			if !exprOptEquals(x.At[i], y.At[i]) {
				return false
			}
		}

		return StmtEquals(x.Body, y.Body)
	case *SliceDim:
		y, ok := b.(*SliceDim)
		return ok && x.Sym == y.Sym && x.Dim == y.Dim && x.At.Equals(y.At) && StmtEquals(x.Body, y.Body)
	case *TruncateRank:
		y, ok := b.(*TruncateRank)
		return ok && x.Sym == y.Sym && x.Rank == y.Rank && StmtEquals(x.Body, y.Body)
	case *Check:
		y, ok := b.(*Check)
		return ok && x.Cond.Equals(y.Cond)
	default:
		panic("ir: unknown statement variant in StmtEquals")
	}
}

func symsEqual(a, b []SymbolId) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func dimsEqual(a, b []DimExpr) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !a[i].Bounds.Equals(b[i].Bounds) || !a[i].Stride.Equals(b[i].Stride) ||
			!exprOptEquals(a[i].FoldFactor, b[i].FoldFactor) {
			return false
		}
	}

	return true
}

func exprOptEquals(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Equals(b)
}
