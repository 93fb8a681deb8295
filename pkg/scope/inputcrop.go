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
package scope

import "github.com/slinkylang/slinky/pkg/ir"

// RemoveRedundantCrops implements the input crop remover (§4.8): a
// CropBuffer/CropDim on a symbol that no enclosed CallStmt/CopyStmt ever
// writes was inserted purely to compute bounds during earlier passes, not
// to restrict what the callback sees, and can be elided. This runs after
// folding but before aliasing: aliasing's own gather step needs the
// remaining, meaningful crops undisturbed by anything downstream of it,
// but doesn't care about a bounds-only crop that was never restricting a
// callback's view in the first place.
func RemoveRedundantCrops(root ir.Stmt) ir.Stmt {
	return removeCrops(root)
}

func removeCrops(s ir.Stmt) ir.Stmt {
	if s == nil {
		return nil
	}

	switch n := s.(type) {
	case *ir.Block:
		return ir.Seq(removeCrops(n.A), removeCrops(n.B))
	case *ir.LetStmt:
		return &ir.LetStmt{Sym: n.Sym, Value: n.Value, Body: removeCrops(n.Body)}
	case *ir.Loop:
		return &ir.Loop{Sym: n.Sym, Mode: n.Mode, Bounds: n.Bounds, Step: n.Step, Body: removeCrops(n.Body)}
	case *ir.IfThenElse:
		return &ir.IfThenElse{Cond: n.Cond, Then: removeCrops(n.Then), Else: removeCrops(n.Else)}
	case *ir.CallStmt, *ir.CopyStmt, *ir.Check:
		return n
	case *ir.Allocate:
		return &ir.Allocate{Sym: n.Sym, Storage: n.Storage, ElemSize: n.ElemSize, Dims: n.Dims, Body: removeCrops(n.Body)}
	case *ir.MakeBuffer:
		return &ir.MakeBuffer{Sym: n.Sym, Base: n.Base, ElemSize: n.ElemSize, Dims: n.Dims, Body: removeCrops(n.Body)}
	case *ir.CropBuffer:
		body := removeCrops(n.Body)
		if !writesSym(body, n.Sym) {
			return body
		}

		return &ir.CropBuffer{Sym: n.Sym, Bounds: n.Bounds, Body: body}
	case *ir.CropDim:
		body := removeCrops(n.Body)
		if !writesSym(body, n.Sym) {
			return body
		}

		return &ir.CropDim{Sym: n.Sym, Dim: n.Dim, Bounds: n.Bounds, Body: body}
	case *ir.SliceBuffer:
		return &ir.SliceBuffer{Sym: n.Sym, At: n.At, Body: removeCrops(n.Body)}
	case *ir.SliceDim:
		return &ir.SliceDim{Sym: n.Sym, Dim: n.Dim, At: n.At, Body: removeCrops(n.Body)}
	case *ir.TruncateRank:
		return &ir.TruncateRank{Sym: n.Sym, Rank: n.Rank, Body: removeCrops(n.Body)}
	default:
		panic("scope: unknown statement variant")
	}
}

// writesSym reports whether any CallStmt output or CopyStmt destination
// within s is sym; this is used_as_output[sym] from §4.8.
func writesSym(s ir.Stmt, sym ir.SymbolId) bool {
	if s == nil {
		return false
	}

	switch n := s.(type) {
	case *ir.Block:
		return writesSym(n.A, sym) || writesSym(n.B, sym)
	case *ir.LetStmt:
		return writesSym(n.Body, sym)
	case *ir.Loop:
		return writesSym(n.Body, sym)
	case *ir.IfThenElse:
		return writesSym(n.Then, sym) || writesSym(n.Else, sym)
	case *ir.CallStmt:
		return containsSym(n.Outputs, sym)
	case *ir.CopyStmt:
		return n.Dst == sym
	case *ir.Allocate:
		return writesSym(n.Body, sym)
	case *ir.MakeBuffer:
		return writesSym(n.Body, sym)
	case *ir.CropBuffer:
		return writesSym(n.Body, sym)
	case *ir.CropDim:
		return writesSym(n.Body, sym)
	case *ir.SliceBuffer:
		return writesSym(n.Body, sym)
	case *ir.SliceDim:
		return writesSym(n.Body, sym)
	case *ir.TruncateRank:
		return writesSym(n.Body, sym)
	case *ir.Check:
		return false
	default:
		return false
	}
}
