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

// Package copyopt implements the copy optimizer (§4.7): CallStmt nodes
// whose callback was marked at build time as the identity function over
// its cropped region (Callback.IsCopy) are lowered to a plain CopyStmt,
// which the evaluator executes as a bulk move instead of a per-element
// callback invocation.
//
// Fusing adjacent copies (§4.7, "not required for correctness") is not
// implemented: composing two copies' source-coordinate expressions
// requires solving for a shared loop context between what may be two
// differently-shaped loop nests, which the IR does not retain enough
// information to do soundly in general.
package copyopt

import "github.com/slinkylang/slinky/pkg/ir"

// Optimize rewrites every copy-marked CallStmt in root into a CopyStmt.
func Optimize(root ir.Stmt) ir.Stmt {
	return walk(nil, root)
}

func walk(loopVars []ir.SymbolId, s ir.Stmt) ir.Stmt {
	if s == nil {
		return nil
	}

	switch n := s.(type) {
	case *ir.Block:
		return ir.Seq(walk(loopVars, n.A), walk(loopVars, n.B))
	case *ir.LetStmt:
		return &ir.LetStmt{Sym: n.Sym, Value: n.Value, Body: walk(loopVars, n.Body)}
	case *ir.Loop:
		next := make([]ir.SymbolId, len(loopVars)+1)
		copy(next, loopVars)
		next[len(loopVars)] = n.Sym

		return &ir.Loop{Sym: n.Sym, Mode: n.Mode, Bounds: n.Bounds, Step: n.Step, Body: walk(next, n.Body)}
	case *ir.IfThenElse:
		return &ir.IfThenElse{Cond: n.Cond, Then: walk(loopVars, n.Then), Else: walk(loopVars, n.Else)}
	case *ir.CallStmt:
		if n.Callback.IsCopy && len(n.Inputs) == 1 && len(n.Outputs) == 1 {
			srcX := make([]ir.Expr, len(loopVars))
			for i, v := range loopVars {
				srcX[i] = ir.Var(v)
			}

			return &ir.CopyStmt{Src: n.Inputs[0], SrcX: srcX, Dst: n.Outputs[0]}
		}

		return n
	case *ir.CopyStmt:
		return n
	case *ir.Allocate:
		return &ir.Allocate{Sym: n.Sym, Storage: n.Storage, ElemSize: n.ElemSize, Dims: n.Dims, Body: walk(loopVars, n.Body)}
	case *ir.MakeBuffer:
		return &ir.MakeBuffer{Sym: n.Sym, Base: n.Base, ElemSize: n.ElemSize, Dims: n.Dims, Body: walk(loopVars, n.Body)}
	case *ir.CropBuffer:
		return &ir.CropBuffer{Sym: n.Sym, Bounds: n.Bounds, Body: walk(loopVars, n.Body)}
	case *ir.CropDim:
		return &ir.CropDim{Sym: n.Sym, Dim: n.Dim, Bounds: n.Bounds, Body: walk(loopVars, n.Body)}
	case *ir.SliceBuffer:
		return &ir.SliceBuffer{Sym: n.Sym, At: n.At, Body: walk(loopVars, n.Body)}
	case *ir.SliceDim:
		return &ir.SliceDim{Sym: n.Sym, Dim: n.Dim, At: n.At, Body: walk(loopVars, n.Body)}
	case *ir.TruncateRank:
		return &ir.TruncateRank{Sym: n.Sym, Rank: n.Rank, Body: walk(loopVars, n.Body)}
	case *ir.Check:
		return n
	default:
		panic("copyopt: unknown statement variant")
	}
}
