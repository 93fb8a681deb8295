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
package debugfmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/slinkylang/slinky/pkg/ir"
)

// WriteStmt renders s as a parenthesised s-expression, nil rendering as
// the empty-block atom "nil".
func WriteStmt(s ir.Stmt) string {
	var b strings.Builder
	writeStmt(&b, s)

	return b.String()
}

func writeSym(b *strings.Builder, sym ir.SymbolId) {
	fmt.Fprintf(b, "%%%d", uint32(sym))
}

func writeInterval(b *strings.Builder, iv ir.IntervalExpr) {
	b.WriteString("(iv ")
	writeExpr(b, iv.Min)
	b.WriteByte(' ')
	writeExpr(b, iv.Max)
	b.WriteByte(')')
}

func writeDims(b *strings.Builder, dims []ir.DimExpr) {
	b.WriteString("(dims")

	for _, d := range dims {
		b.WriteString(" (dim ")
		writeInterval(b, d.Bounds)
		b.WriteByte(' ')
		writeExpr(b, d.Stride)
		b.WriteByte(' ')

		if d.FoldFactor == nil {
			b.WriteString("none")
		} else {
			writeExpr(b, d.FoldFactor)
		}

		b.WriteByte(')')
	}

	b.WriteByte(')')
}

func writeStmt(b *strings.Builder, s ir.Stmt) {
	if s == nil {
		b.WriteString("nil")
		return
	}

	switch n := s.(type) {
	case *ir.Block:
		b.WriteString("(block ")
		writeStmt(b, n.A)
		b.WriteByte(' ')
		writeStmt(b, n.B)
		b.WriteByte(')')
	case *ir.LetStmt:
		b.WriteString("(let-stmt ")
		writeSym(b, n.Sym)
		b.WriteByte(' ')
		writeExpr(b, n.Value)
		b.WriteByte(' ')
		writeStmt(b, n.Body)
		b.WriteByte(')')
	case *ir.Loop:
		mode := "serial"
		if n.Mode == ir.Parallel {
			mode = "parallel"
		}

		fmt.Fprintf(b, "(loop %s ", mode)
		writeSym(b, n.Sym)
		b.WriteByte(' ')
		writeInterval(b, n.Bounds)
		b.WriteByte(' ')
		writeExpr(b, n.Step)
		b.WriteByte(' ')
		writeStmt(b, n.Body)
		b.WriteByte(')')
	case *ir.IfThenElse:
		b.WriteString("(if ")
		writeExpr(b, n.Cond)
		b.WriteByte(' ')
		writeStmt(b, n.Then)
		b.WriteByte(' ')
		writeStmt(b, n.Else)
		b.WriteByte(')')
	case *ir.CallStmt:
		fmt.Fprintf(b, "(call %s %v ", n.Callback.Name, n.Callback.IsCopy)
		writeSymList(b, n.Inputs)
		b.WriteByte(' ')
		writeSymList(b, n.Outputs)
		b.WriteByte(')')
	case *ir.CopyStmt:
		b.WriteString("(copy ")
		writeSym(b, n.Src)
		b.WriteString(" (")

		for i, x := range n.SrcX {
			if i > 0 {
				b.WriteByte(' ')
			}

			writeExpr(b, x)
		}

		b.WriteString(") ")
		writeSym(b, n.Dst)
		b.WriteByte(')')
	case *ir.Allocate:
		storage := "stack"
		if n.Storage == ir.Heap {
			storage = "heap"
		}

		b.WriteString("(allocate ")
		writeSym(b, n.Sym)
		fmt.Fprintf(b, " %s %d ", storage, n.ElemSize)
		writeDims(b, n.Dims)
		b.WriteByte(' ')
		writeStmt(b, n.Body)
		b.WriteByte(')')
	case *ir.MakeBuffer:
		b.WriteString("(make-buffer ")
		writeSym(b, n.Sym)
		b.WriteByte(' ')
		writeExpr(b, n.Base)
		fmt.Fprintf(b, " %d ", n.ElemSize)
		writeDims(b, n.Dims)
		b.WriteByte(' ')
		writeStmt(b, n.Body)
		b.WriteByte(')')
	case *ir.CropBuffer:
		b.WriteString("(crop-buffer ")
		writeSym(b, n.Sym)
		b.WriteString(" (box")

		for _, iv := range n.Bounds {
			b.WriteByte(' ')
			writeInterval(b, iv)
		}

		b.WriteString(") ")
		writeStmt(b, n.Body)
		b.WriteByte(')')
	case *ir.CropDim:
		b.WriteString("(crop-dim ")
		writeSym(b, n.Sym)
		fmt.Fprintf(b, " %d ", n.Dim)
		writeInterval(b, n.Bounds)
		b.WriteByte(' ')
		writeStmt(b, n.Body)
		b.WriteByte(')')
	case *ir.SliceBuffer:
		b.WriteString("(slice-buffer ")
		writeSym(b, n.Sym)
		b.WriteString(" (")

		for i, a := range n.At {
			if i > 0 {
				b.WriteByte(' ')
			}

			if a == nil {
				b.WriteString("none")
			} else {
				writeExpr(b, a)
			}
		}

		b.WriteString(") ")
		writeStmt(b, n.Body)
		b.WriteByte(')')
	case *ir.SliceDim:
		b.WriteString("(slice-dim ")
		writeSym(b, n.Sym)
		fmt.Fprintf(b, " %d ", n.Dim)
		writeExpr(b, n.At)
		b.WriteByte(' ')
		writeStmt(b, n.Body)
		b.WriteByte(')')
	case *ir.TruncateRank:
		b.WriteString("(truncate-rank ")
		writeSym(b, n.Sym)
		fmt.Fprintf(b, " %d ", n.Rank)
		writeStmt(b, n.Body)
		b.WriteByte(')')
	case *ir.Check:
		b.WriteString("(check ")
		writeExpr(b, n.Cond)
		fmt.Fprintf(b, " %q)", n.Message)
	default:
		panic("debugfmt: unknown statement variant")
	}
}

func writeSymList(b *strings.Builder, syms []ir.SymbolId) {
	b.WriteByte('(')

	for i, s := range syms {
		if i > 0 {
			b.WriteByte(' ')
		}

		writeSym(b, s)
	}

	b.WriteByte(')')
}

// ReadStmt parses the textual form written by WriteStmt.
func ReadStmt(s string) (ir.Stmt, error) {
	p := &sparser{parser: parser{toks: tokenize(s)}}

	st, err := p.parseStmt()
	if err != nil {
		return nil, err
	}

	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("debugfmt: trailing tokens after statement: %v", p.toks[p.pos:])
	}

	return st, nil
}

type sparser struct {
	parser
}

func (p *sparser) parseSym() (ir.SymbolId, error) {
	tok, err := p.next()
	if err != nil {
		return 0, err
	}

	if !strings.HasPrefix(tok, "%") {
		return 0, fmt.Errorf("debugfmt: expected symbol, got %q", tok)
	}

	id, err := strconv.ParseUint(tok[1:], 10, 32)

	return ir.SymbolId(id), err
}

func (p *sparser) parseInterval() (ir.IntervalExpr, error) {
	if err := p.expect("("); err != nil {
		return ir.IntervalExpr{}, err
	}

	if err := p.expectWord("iv"); err != nil {
		return ir.IntervalExpr{}, err
	}

	min, err := p.parseExpr()
	if err != nil {
		return ir.IntervalExpr{}, err
	}

	max, err := p.parseExpr()
	if err != nil {
		return ir.IntervalExpr{}, err
	}

	if err := p.expect(")"); err != nil {
		return ir.IntervalExpr{}, err
	}

	return ir.IntervalExpr{Min: min, Max: max}, nil
}

func (p *sparser) parseDims() ([]ir.DimExpr, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}

	if err := p.expectWord("dims"); err != nil {
		return nil, err
	}

	var dims []ir.DimExpr

	for {
		tok, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("debugfmt: unterminated dims")
		}

		if tok == ")" {
			p.pos++
			break
		}

		if err := p.expect("("); err != nil {
			return nil, err
		}

		if err := p.expectWord("dim"); err != nil {
			return nil, err
		}

		bounds, err := p.parseInterval()
		if err != nil {
			return nil, err
		}

		stride, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		ffTok, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("debugfmt: unterminated dim")
		}

		var fold ir.Expr

		if ffTok == "none" {
			p.pos++
		} else {
			fold, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}

		if err := p.expect(")"); err != nil {
			return nil, err
		}

		dims = append(dims, ir.DimExpr{Bounds: bounds, Stride: stride, FoldFactor: fold})
	}

	return dims, nil
}

func (p *sparser) expect(tok string) error {
	got, err := p.next()
	if err != nil {
		return err
	}

	if got != tok {
		return fmt.Errorf("debugfmt: expected %q, got %q", tok, got)
	}

	return nil
}

func (p *sparser) expectWord(word string) error { return p.expect(word) }

func (p *sparser) parseStmt() (ir.Stmt, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}

	if tok == "nil" {
		return nil, nil
	}

	if tok != "(" {
		return nil, fmt.Errorf("debugfmt: expected statement, got %q", tok)
	}

	head, err := p.next()
	if err != nil {
		return nil, err
	}

	switch head {
	case "block":
		a, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		b, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.Block{A: a, B: b})
	case "let-stmt":
		sym, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.LetStmt{Sym: sym, Value: val, Body: body})
	case "loop":
		modeTok, err := p.next()
		if err != nil {
			return nil, err
		}

		mode := ir.Serial
		if modeTok == "parallel" {
			mode = ir.Parallel
		}

		sym, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		bounds, err := p.parseInterval()
		if err != nil {
			return nil, err
		}

		step, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.Loop{Sym: sym, Mode: mode, Bounds: bounds, Step: step, Body: body})
	case "if":
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		then, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		els, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.IfThenElse{Cond: cond, Then: then, Else: els})
	case "call":
		name, err := p.next()
		if err != nil {
			return nil, err
		}

		isCopyTok, err := p.next()
		if err != nil {
			return nil, err
		}

		inputs, err := p.parseSymList()
		if err != nil {
			return nil, err
		}

		outputs, err := p.parseSymList()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.CallStmt{
			Callback: ir.Callback{Name: name, IsCopy: isCopyTok == "true"},
			Inputs:   inputs,
			Outputs:  outputs,
		})
	case "copy":
		src, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		if err := p.expect("("); err != nil {
			return nil, err
		}

		var srcX []ir.Expr

		for {
			tok, ok := p.peek()
			if !ok {
				return nil, fmt.Errorf("debugfmt: unterminated copy src-x list")
			}

			if tok == ")" {
				p.pos++
				break
			}

			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}

			srcX = append(srcX, x)
		}

		dst, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.CopyStmt{Src: src, SrcX: srcX, Dst: dst})
	case "allocate":
		sym, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		storageTok, err := p.next()
		if err != nil {
			return nil, err
		}

		storage := ir.Stack
		if storageTok == "heap" {
			storage = ir.Heap
		}

		elemSizeTok, err := p.next()
		if err != nil {
			return nil, err
		}

		elemSize, err := strconv.ParseInt(elemSizeTok, 10, 64)
		if err != nil {
			return nil, err
		}

		dims, err := p.parseDims()
		if err != nil {
			return nil, err
		}

		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.Allocate{Sym: sym, Storage: storage, ElemSize: elemSize, Dims: dims, Body: body})
	case "make-buffer":
		sym, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		base, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		elemSizeTok, err := p.next()
		if err != nil {
			return nil, err
		}

		elemSize, err := strconv.ParseInt(elemSizeTok, 10, 64)
		if err != nil {
			return nil, err
		}

		dims, err := p.parseDims()
		if err != nil {
			return nil, err
		}

		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.MakeBuffer{Sym: sym, Base: base, ElemSize: elemSize, Dims: dims, Body: body})
	case "crop-buffer":
		sym, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		if err := p.expect("("); err != nil {
			return nil, err
		}

		if err := p.expectWord("box"); err != nil {
			return nil, err
		}

		var box ir.BoxExpr

		for {
			tok, ok := p.peek()
			if !ok {
				return nil, fmt.Errorf("debugfmt: unterminated box")
			}

			if tok == ")" {
				p.pos++
				break
			}

			iv, err := p.parseInterval()
			if err != nil {
				return nil, err
			}

			box = append(box, iv)
		}

		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.CropBuffer{Sym: sym, Bounds: box, Body: body})
	case "crop-dim":
		sym, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		dimTok, err := p.next()
		if err != nil {
			return nil, err
		}

		dim, err := strconv.Atoi(dimTok)
		if err != nil {
			return nil, err
		}

		bounds, err := p.parseInterval()
		if err != nil {
			return nil, err
		}

		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.CropDim{Sym: sym, Dim: dim, Bounds: bounds, Body: body})
	case "slice-buffer":
		sym, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		if err := p.expect("("); err != nil {
			return nil, err
		}

		var at []ir.Expr

		for {
			tok, ok := p.peek()
			if !ok {
				return nil, fmt.Errorf("debugfmt: unterminated slice-buffer at list")
			}

			if tok == ")" {
				p.pos++
				break
			}

			if tok == "none" {
				p.pos++
				at = append(at, nil)

				continue
			}

			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}

			at = append(at, x)
		}

		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.SliceBuffer{Sym: sym, At: at, Body: body})
	case "slice-dim":
		sym, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		dimTok, err := p.next()
		if err != nil {
			return nil, err
		}

		dim, err := strconv.Atoi(dimTok)
		if err != nil {
			return nil, err
		}

		at, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.SliceDim{Sym: sym, Dim: dim, At: at, Body: body})
	case "truncate-rank":
		sym, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		rankTok, err := p.next()
		if err != nil {
			return nil, err
		}

		rank, err := strconv.Atoi(rankTok)
		if err != nil {
			return nil, err
		}

		body, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.TruncateRank{Sym: sym, Rank: rank, Body: body})
	case "check":
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		msgTok, err := p.next()
		if err != nil {
			return nil, err
		}

		msg, err := strconv.Unquote(msgTok)
		if err != nil {
			return nil, err
		}

		return p.closeStmt(&ir.Check{Cond: cond, Message: msg})
	default:
		return nil, fmt.Errorf("debugfmt: unknown statement head %q", head)
	}
}

func (p *sparser) parseSymList() ([]ir.SymbolId, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}

	var out []ir.SymbolId

	for {
		tok, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("debugfmt: unterminated symbol list")
		}

		if tok == ")" {
			p.pos++
			break
		}

		sym, err := p.parseSym()
		if err != nil {
			return nil, err
		}

		out = append(out, sym)
	}

	return out, nil
}

func (p *sparser) closeStmt(s ir.Stmt) (ir.Stmt, error) {
	if err := p.expect(")"); err != nil {
		return nil, err
	}

	return s, nil
}
