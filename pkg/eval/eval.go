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
package eval

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/slinkylang/slinky/pkg/ir"
	"github.com/slinkylang/slinky/pkg/scopemap"
)

// Error codes, per §6.4.
const (
	Success           ir.Index = 0
	CheckFailed       ir.Index = -1
	AllocationFailed  ir.Index = -2
	scalarBoolTrue    ir.Index = 1
	scalarBoolFalse   ir.Index = 0
)

// Context bundles the collaborators an evaluation needs beyond the
// SymbolId scope itself: where Allocate gets memory, where Parallel loops
// get workers, and how CallStmt resolves a Callback.Name to code.
type Context struct {
	Allocator Allocator
	Pool      *Pool
	Registry  *Registry
}

// NewContext returns a Context with a default pooled allocator and an
// empty callback registry; callers still need to Register every callback
// name their pipeline's CallStmt nodes reference.
func NewContext() *Context {
	return &Context{Allocator: NewPoolAllocator(), Pool: NewPool(0), Registry: NewRegistry()}
}

// Evaluate walks root under the given initial scope (formal scalar
// arguments and formal input/output buffers, pre-bound by the caller) and
// returns the §6.4 result code.
func Evaluate(ctx context.Context, root ir.Stmt, initial map[ir.SymbolId]Value, ec *Context) ir.Index {
	scope := scopemap.New[Value]()
	for sym, v := range initial {
		scope.Set(sym, v)
	}

	return evalStmt(ctx, scope, root, ec)
}

func evalStmt(ctx context.Context, scope *scopemap.Map[Value], s ir.Stmt, ec *Context) ir.Index {
	if s == nil {
		return Success
	}

	switch n := s.(type) {
	case *ir.Block:
		if code := evalStmt(ctx, scope, n.A, ec); code != Success {
			return code
		}

		return evalStmt(ctx, scope, n.B, ec)
	case *ir.LetStmt:
		pop := scope.PushFrame()
		defer pop()

		// The buffer aliaser (pkg/alias) rewrites an eliminated Allocate into
		// a LetStmt whose Value is a bare reference to the buffer it now
		// shares storage with; propagate that binding whole rather than
		// coercing it through a scalar.
		if ref, ok := n.Value.(*ir.Variable); ok {
			if v, ok := scope.Get(ref.Sym); ok && v.Buf != nil {
				scope.Set(n.Sym, v)

				return evalStmt(ctx, scope, n.Body, ec)
			}
		}

		scope.Set(n.Sym, ScalarValue(evalExpr(scope, n.Value)))

		return evalStmt(ctx, scope, n.Body, ec)
	case *ir.Loop:
		return evalLoop(ctx, scope, n, ec)
	case *ir.IfThenElse:
		if evalExpr(scope, n.Cond) != 0 {
			return evalStmt(ctx, scope, n.Then, ec)
		}

		return evalStmt(ctx, scope, n.Else, ec)
	case *ir.CallStmt:
		return evalCall(scope, n, ec)
	case *ir.CopyStmt:
		return evalCopy(scope, n)
	case *ir.Allocate:
		return evalAllocate(ctx, scope, n, ec)
	case *ir.MakeBuffer:
		return evalMakeBuffer(ctx, scope, n, ec)
	case *ir.CropBuffer:
		buf, ok := scope.Get(n.Sym)
		if !ok || buf.Buf == nil {
			panic("eval: CropBuffer on unbound buffer symbol")
		}

		pop := scope.PushFrame()
		defer pop()

		scope.Set(n.Sym, BufferValue(cropBuffer(scope, buf.Buf, n.Bounds)))

		return evalStmt(ctx, scope, n.Body, ec)
	case *ir.CropDim:
		buf, ok := scope.Get(n.Sym)
		if !ok || buf.Buf == nil {
			panic("eval: CropDim on unbound buffer symbol")
		}

		box := make(ir.BoxExpr, len(buf.Buf.Dims))
		for d := range box {
			box[d] = ir.IntervalExpr{Min: ir.BufMin(n.Sym, d), Max: ir.BufMax(n.Sym, d)}
		}

		if n.Dim < len(box) {
			box[n.Dim] = n.Bounds
		}

		pop := scope.PushFrame()
		defer pop()

		scope.Set(n.Sym, BufferValue(cropBuffer(scope, buf.Buf, box)))

		return evalStmt(ctx, scope, n.Body, ec)
	case *ir.SliceBuffer:
		buf, ok := scope.Get(n.Sym)
		if !ok || buf.Buf == nil {
			panic("eval: SliceBuffer on unbound buffer symbol")
		}

		pop := scope.PushFrame()
		defer pop()

		scope.Set(n.Sym, BufferValue(sliceBuffer(scope, buf.Buf, n.At)))

		return evalStmt(ctx, scope, n.Body, ec)
	case *ir.SliceDim:
		buf, ok := scope.Get(n.Sym)
		if !ok || buf.Buf == nil {
			panic("eval: SliceDim on unbound buffer symbol")
		}

		at := make([]ir.Expr, len(buf.Buf.Dims))
		at[n.Dim] = n.At

		pop := scope.PushFrame()
		defer pop()

		scope.Set(n.Sym, BufferValue(sliceBuffer(scope, buf.Buf, at)))

		return evalStmt(ctx, scope, n.Body, ec)
	case *ir.TruncateRank:
		buf, ok := scope.Get(n.Sym)
		if !ok || buf.Buf == nil {
			panic("eval: TruncateRank on unbound buffer symbol")
		}

		pop := scope.PushFrame()
		defer pop()

		truncated := &ir.Buffer{Base: buf.Buf.Base, ElemSize: buf.Buf.ElemSize, Dims: buf.Buf.Dims[:n.Rank]}
		scope.Set(n.Sym, BufferValue(truncated))

		return evalStmt(ctx, scope, n.Body, ec)
	case *ir.Check:
		if evalExpr(scope, n.Cond) == 0 {
			return CheckFailed
		}

		return Success
	default:
		panic("eval: unknown statement variant")
	}
}

func evalLoop(ctx context.Context, scope *scopemap.Map[Value], n *ir.Loop, ec *Context) ir.Index {
	lo := evalExpr(scope, n.Bounds.Min)
	hi := evalExpr(scope, n.Bounds.Max)
	step := evalExpr(scope, n.Step)

	if n.Mode == ir.Parallel {
		return ec.Pool.Run(ctx, lo, hi, step, func(_ context.Context, x ir.Index) ir.Index {
			child := scope.Clone()

			pop := child.PushFrame()
			defer pop()

			child.Set(n.Sym, ScalarValue(x))

			return evalStmt(ctx, child, n.Body, ec)
		})
	}

	for x := lo; x <= hi; x += step {
		pop := scope.PushFrame()
		scope.Set(n.Sym, ScalarValue(x))
		code := evalStmt(ctx, scope, n.Body, ec)
		pop()

		if code != Success {
			return code
		}
	}

	return Success
}

func evalCall(scope *scopemap.Map[Value], n *ir.CallStmt, ec *Context) ir.Index {
	fn, ok := ec.Registry.lookup(n.Callback.Name)
	if !ok {
		panic("eval: no callback registered for \"" + n.Callback.Name + "\"")
	}

	inputs := make([]*ir.Buffer, len(n.Inputs))
	for i, sym := range n.Inputs {
		inputs[i] = mustBuffer(scope, sym)
	}

	outputs := make([]*ir.Buffer, len(n.Outputs))
	for i, sym := range n.Outputs {
		outputs[i] = mustBuffer(scope, sym)
	}

	return fn(inputs, outputs)
}

func evalCopy(scope *scopemap.Map[Value], n *ir.CopyStmt) ir.Index {
	src := mustBuffer(scope, n.Src)
	dst := mustBuffer(scope, n.Dst)

	coords := make([]ir.Index, len(dst.Dims))
	srcCoords := make([]ir.Index, len(src.Dims))

	var walk func(d int) ir.Index
	walk = func(d int) ir.Index {
		if d == len(dst.Dims) {
			// SrcX expressions are written in terms of the enclosing loop
			// variables the builder closed over, all already live in scope,
			// so they don't need dst's positional coords rebound here.
			for i, x := range n.SrcX {
				srcCoords[i] = evalExpr(scope, x)
			}

			if !inBounds(src, srcCoords) {
				if n.Padding == nil {
					panic("eval: CopyStmt read out of Src bounds with no padding")
				}

				copy(dst.At(coords), n.Padding)

				return Success
			}

			copy(dst.At(coords), src.At(srcCoords))

			return Success
		}

		dim := dst.Dims[d]
		for c := dim.Min; c < dim.Min+dim.Extent; c++ {
			coords[d] = c
			if code := walk(d + 1); code != Success {
				return code
			}
		}

		return Success
	}

	return walk(0)
}

func inBounds(buf *ir.Buffer, coords []ir.Index) bool {
	for d, c := range coords {
		dim := buf.Dims[d]
		if c < dim.Min || c >= dim.Min+dim.Extent {
			return false
		}
	}

	return true
}

func mustBuffer(scope *scopemap.Map[Value], sym ir.SymbolId) *ir.Buffer {
	v, ok := scope.Get(sym)
	if !ok || v.Buf == nil {
		panic("eval: symbol is not a bound buffer")
	}

	return v.Buf
}

func evalAllocate(ctx context.Context, scope *scopemap.Map[Value], n *ir.Allocate, ec *Context) ir.Index {
	dims, size := concreteDims(scope, n.Dims, n.ElemSize)

	base, err := ec.Allocator.Alloc(n.Storage, size)
	if err != nil {
		return AllocationFailed
	}

	defer ec.Allocator.Free(n.Storage, base)

	pop := scope.PushFrame()
	defer pop()

	scope.Set(n.Sym, BufferValue(&ir.Buffer{Base: base, ElemSize: n.ElemSize, Dims: dims}))

	return evalStmt(ctx, scope, n.Body, ec)
}

// evalMakeBuffer wraps the storage backing an already-bound buffer symbol
// (n.Base, always a Variable referencing it) under a fresh Dims layout: it
// exists for the pipeline builder to give a formal argument, bound in the
// initial scope with only Base and ElemSize known, the concrete shape
// bounds inference computed for it.
func evalMakeBuffer(ctx context.Context, scope *scopemap.Map[Value], n *ir.MakeBuffer, ec *Context) ir.Index {
	ref, ok := n.Base.(*ir.Variable)
	if !ok {
		panic("eval: MakeBuffer.Base must reference a bound buffer symbol")
	}

	base, ok := scope.Get(ref.Sym)
	if !ok || base.Buf == nil {
		panic("eval: MakeBuffer.Base does not name a bound buffer")
	}

	dims, _ := concreteDims(scope, n.Dims, n.ElemSize)

	pop := scope.PushFrame()
	defer pop()

	scope.Set(n.Sym, BufferValue(&ir.Buffer{Base: base.Buf.Base, ElemSize: n.ElemSize, Dims: dims}))

	return evalStmt(ctx, scope, n.Body, ec)
}

// concreteDims resolves a symbolic dims list to its runtime Dim form,
// deriving Stride the same way bounds inference does when it fills in
// BufferStride placeholders (pkg/bounds/infer.go): dimension 0 varies
// fastest, with stride elemSize, and each later dimension's stride is the
// product of every earlier dimension's stored (fold-aware) extent. It also
// returns the total byte size to allocate.
func concreteDims(scope *scopemap.Map[Value], dimExprs []ir.DimExpr, elemSize ir.Index) ([]ir.Dim, ir.Index) {
	dims := make([]ir.Dim, len(dimExprs))
	stride := elemSize

	for d, de := range dimExprs {
		min := evalExpr(scope, de.Bounds.Min)
		max := evalExpr(scope, de.Bounds.Max)
		extent := max - min + 1

		fold := ir.Index(0)
		if de.FoldFactor != nil {
			fold = evalExpr(scope, de.FoldFactor)
		}

		dims[d] = ir.Dim{Min: min, Extent: extent, Stride: stride, FoldFactor: fold}

		stored := extent
		if fold > 0 && fold < stored {
			stored = fold
		}

		stride *= stored
	}

	return dims, stride
}

func evalExpr(scope *scopemap.Map[Value], e ir.Expr) ir.Index {
	switch n := e.(type) {
	case *ir.Variable:
		v, ok := scope.Get(n.Sym)
		if !ok {
			panic("eval: unbound symbol " + n.Sym.String())
		}

		return v.Scalar
	case *ir.Constant:
		return n.Value
	case *ir.Wildcard:
		panic("eval: wildcard reached evaluator")
	case *ir.Binary:
		return evalBinary(scope, n)
	case *ir.Not:
		if evalExpr(scope, n.Arg) == 0 {
			return scalarBoolTrue
		}

		return scalarBoolFalse
	case *ir.Min:
		return minIdx(evalExpr(scope, n.Left), evalExpr(scope, n.Right))
	case *ir.Max:
		return maxIdx(evalExpr(scope, n.Left), evalExpr(scope, n.Right))
	case *ir.Select:
		if evalExpr(scope, n.Cond) != 0 {
			return evalExpr(scope, n.True)
		}

		return evalExpr(scope, n.False)
	case *ir.Let:
		pop := scope.PushFrame()
		defer pop()

		scope.Set(n.Sym, ScalarValue(evalExpr(scope, n.Value)))

		return evalExpr(scope, n.Body)
	case *ir.Call:
		return evalIntrinsic(scope, n)
	default:
		panic("eval: unknown expression variant")
	}
}

func evalBinary(scope *scopemap.Map[Value], n *ir.Binary) ir.Index {
	l := evalExpr(scope, n.Left)
	r := evalExpr(scope, n.Right)

	switch n.Op {
	case ir.OpAdd:
		return l + r
	case ir.OpSub:
		return l - r
	case ir.OpMul:
		return l * r
	case ir.OpDiv:
		return ir.FlooredDiv(l, r)
	case ir.OpMod:
		return ir.FlooredMod(l, r)
	case ir.OpEq:
		return boolIdx(l == r)
	case ir.OpNe:
		return boolIdx(l != r)
	case ir.OpLt:
		return boolIdx(l < r)
	case ir.OpLe:
		return boolIdx(l <= r)
	case ir.OpAnd:
		return boolIdx(l != 0 && r != 0)
	case ir.OpOr:
		return boolIdx(l != 0 || r != 0)
	default:
		panic("eval: unknown binary operator")
	}
}

func evalIntrinsic(scope *scopemap.Map[Value], n *ir.Call) ir.Index {
	switch n.Intrinsic {
	case ir.PositiveInfinity:
		return math.MaxInt64
	case ir.NegativeInfinity:
		return math.MinInt64
	case ir.Indeterminate:
		panic("eval: indeterminate value reached evaluator")
	case ir.Abs:
		v := evalExpr(scope, n.Args[0])
		if v < 0 {
			return -v
		}

		return v
	}

	buf := mustBuffer(scope, n.Args[0].(*ir.Variable).Sym)

	dim := 0
	if len(n.Args) > 1 {
		dim = int(evalExpr(scope, n.Args[1]))
	}

	switch n.Intrinsic {
	case ir.BufferRank:
		return ir.Index(buf.Rank())
	case ir.BufferElemSize:
		return buf.ElemSize
	case ir.BufferSizeBytes:
		size := buf.ElemSize
		for _, d := range buf.Dims {
			size *= d.Extent
		}

		return size
	case ir.BufferMin:
		return buf.Dims[dim].Min
	case ir.BufferMax:
		return buf.Dims[dim].Min + buf.Dims[dim].Extent - 1
	case ir.BufferExtent:
		return buf.Dims[dim].Extent
	case ir.BufferStride:
		return buf.Dims[dim].Stride
	case ir.BufferFoldFactor:
		return buf.Dims[dim].FoldFactor
	case ir.BufferAt:
		coords := make([]ir.Index, len(n.Args)-1)
		for i := 1; i < len(n.Args); i++ {
			coords[i-1] = evalExpr(scope, n.Args[i])
		}

		return readIndex(buf.At(coords))
	case ir.BufferBase:
		panic("eval: BufferBase has no Index representation at runtime")
	default:
		panic("eval: unknown intrinsic")
	}
}

func readIndex(bs []byte) ir.Index {
	switch len(bs) {
	case 1:
		return ir.Index(int8(bs[0]))
	case 2:
		return ir.Index(int16(binary.LittleEndian.Uint16(bs)))
	case 4:
		return ir.Index(int32(binary.LittleEndian.Uint32(bs)))
	case 8:
		return ir.Index(binary.LittleEndian.Uint64(bs))
	default:
		panic("eval: BufferAt on an element size debugfmt cannot decode")
	}
}

func boolIdx(b bool) ir.Index {
	if b {
		return scalarBoolTrue
	}

	return scalarBoolFalse
}

func minIdx(a, b ir.Index) ir.Index {
	if a < b {
		return a
	}

	return b
}

func maxIdx(a, b ir.Index) ir.Index {
	if a > b {
		return a
	}

	return b
}

func cropBuffer(scope *scopemap.Map[Value], buf *ir.Buffer, box ir.BoxExpr) *ir.Buffer {
	dims := make([]ir.Dim, len(buf.Dims))
	copy(dims, buf.Dims)

	base := buf.Base

	for d := range dims {
		if d >= len(box) {
			continue
		}

		lo := evalExpr(scope, box[d].Min)
		hi := evalExpr(scope, box[d].Max)

		newMin := maxIdx(dims[d].Min, lo)
		newMax := minIdx(dims[d].Min+dims[d].Extent-1, hi)
		newExtent := newMax - newMin + 1

		if newExtent < 0 {
			newExtent = 0
		}

		if dims[d].FoldFactor == 0 {
			shift := (newMin - dims[d].Min) * dims[d].Stride
			base = base[shift:]
		}

		dims[d] = ir.Dim{Min: newMin, Extent: newExtent, Stride: dims[d].Stride, FoldFactor: dims[d].FoldFactor}
	}

	return &ir.Buffer{Base: base, ElemSize: buf.ElemSize, Dims: dims}
}

func sliceBuffer(scope *scopemap.Map[Value], buf *ir.Buffer, at []ir.Expr) *ir.Buffer {
	base := buf.Base

	var dims []ir.Dim

	for d, dim := range buf.Dims {
		if d < len(at) && at[d] != nil {
			c := evalExpr(scope, at[d])
			base = base[dim.ModFold(c-dim.Min)*dim.Stride:]

			continue
		}

		dims = append(dims, dim)
	}

	return &ir.Buffer{Base: base, ElemSize: buf.ElemSize, Dims: dims}
}
