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

// Intrinsic identifies a builtin function callable via Call.  The
// BufferMin/BufferMax/BufferStride/BufferExtent/BufferFoldFactor family are
// symbolic accessors: the builder emits them against a formal buffer
// symbol, and bounds inference (pkg/bounds) later substitutes them for
// concrete expressions in terms of enclosing loop variables.
type Intrinsic uint8

// Intrinsic kinds.
const (
	PositiveInfinity Intrinsic = iota
	NegativeInfinity
	Indeterminate
	Abs
	BufferRank
	BufferBase
	BufferElemSize
	BufferSizeBytes
	BufferMin
	BufferMax
	BufferStride
	BufferFoldFactor
	BufferExtent
	BufferAt
)

var intrinsicNames = map[Intrinsic]string{
	PositiveInfinity: "positive_infinity",
	NegativeInfinity: "negative_infinity",
	Indeterminate:    "indeterminate",
	Abs:              "abs",
	BufferRank:       "buffer_rank",
	BufferBase:       "buffer_base",
	BufferElemSize:   "buffer_elem_size",
	BufferSizeBytes:  "buffer_size_bytes",
	BufferMin:        "buffer_min",
	BufferMax:        "buffer_max",
	BufferStride:     "buffer_stride",
	BufferFoldFactor: "buffer_fold_factor",
	BufferExtent:     "buffer_extent",
	BufferAt:         "buffer_at",
}

// String implements fmt.Stringer.
func (i Intrinsic) String() string {
	if name, ok := intrinsicNames[i]; ok {
		return name
	}

	return "unknown_intrinsic"
}

// IsBufferMeta reports whether the intrinsic is one of the symbolic
// buffer-metadata accessors substituted away by bounds inference.
func (i Intrinsic) IsBufferMeta() bool {
	switch i {
	case BufferRank, BufferBase, BufferElemSize, BufferSizeBytes,
		BufferMin, BufferMax, BufferStride, BufferFoldFactor, BufferExtent:
		return true
	default:
		return false
	}
}

// PosInf builds the +infinity intrinsic call.
func PosInf() Expr { return &Call{PositiveInfinity, nil} }

// NegInf builds the -infinity intrinsic call.
func NegInf() Expr { return &Call{NegativeInfinity, nil} }

// Indet builds the indeterminate-value intrinsic call, used to poison
// expressions containing a division by zero.
func Indet() Expr { return &Call{Indeterminate, nil} }

// AbsOf builds abs(x).
func AbsOf(x Expr) Expr { return &Call{Abs, []Expr{x}} }

// BufMin builds BufferMin(buf, dim).
func BufMin(buf SymbolId, dim int) Expr { return &Call{BufferMin, []Expr{Var(buf), Const(Index(dim))}} }

// BufMax builds BufferMax(buf, dim).
func BufMax(buf SymbolId, dim int) Expr { return &Call{BufferMax, []Expr{Var(buf), Const(Index(dim))}} }

// BufExtent builds BufferExtent(buf, dim).
func BufExtent(buf SymbolId, dim int) Expr {
	return &Call{BufferExtent, []Expr{Var(buf), Const(Index(dim))}}
}

// BufStride builds BufferStride(buf, dim).
func BufStride(buf SymbolId, dim int) Expr {
	return &Call{BufferStride, []Expr{Var(buf), Const(Index(dim))}}
}

// BufFoldFactor builds BufferFoldFactor(buf, dim).
func BufFoldFactor(buf SymbolId, dim int) Expr {
	return &Call{BufferFoldFactor, []Expr{Var(buf), Const(Index(dim))}}
}

// bufferMetaOf reports the (buf, dim) pair a buffer-meta call refers to, and
// whether c actually is one.
func bufferMetaOf(c *Call) (SymbolId, int, bool) {
	if !c.Intrinsic.IsBufferMeta() || len(c.Args) < 1 {
		return 0, 0, false
	}

	v, ok := c.Args[0].(*Variable)
	if !ok {
		return 0, 0, false
	}

	if len(c.Args) < 2 {
		return v.Sym, 0, true
	}

	d, ok := c.Args[1].(*Constant)
	if !ok {
		return 0, 0, false
	}

	return v.Sym, int(d.Value), true
}
