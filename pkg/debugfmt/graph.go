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
	"github.com/slinkylang/slinky/pkg/pipeline"
)

// WriteGraph renders p's declarative graph (§3.5) as a `slinky build`
// source file: one (buffer ...) form per BufferExpr, one (func ...) form
// per Func, referencing buffers and loop variables by their diagnostic
// name rather than by raw SymbolId, since a graph file is meant to be
// hand-written.
func WriteGraph(p *pipeline.Pipeline) string {
	var b strings.Builder

	b.WriteString("(pipeline\n")

	for _, buf := range p.Buffers {
		fmt.Fprintf(&b, "  (buffer %s %d", buf.Name, buf.ElemSize)

		for _, d := range buf.Dims {
			fmt.Fprintf(&b, " (dim %s %s)", graphWriteExpr(p.Ctx, d.Bounds.Min), graphWriteExpr(p.Ctx, d.Bounds.Max))
		}

		storage := "heap"
		if buf.Storage == ir.Stack {
			storage = "stack"
		}

		fmt.Fprintf(&b, " %s)\n", storage)
	}

	for _, f := range p.Funcs {
		fmt.Fprintf(&b, "  (func %s\n    (callback %s %v)\n", f.Name, f.Callback.Name, f.Callback.IsCopy)

		for i, sym := range f.Loops {
			mode := "serial"
			if f.LoopModes[i] == ir.Parallel {
				mode = "parallel"
			}

			fmt.Fprintf(&b, "    (loop %s %s %s %s)\n", p.Ctx.Name(sym), mode,
				graphWriteExpr(p.Ctx, f.LoopBounds[i].Min), graphWriteExpr(p.Ctx, f.LoopBounds[i].Max))
		}

		for _, in := range f.Inputs {
			fmt.Fprintf(&b, "    (input %s", p.Buffer(in.Buffer).Name)

			for _, iv := range in.Bounds {
				fmt.Fprintf(&b, " (%s %s)", graphWriteExpr(p.Ctx, iv.Min), graphWriteExpr(p.Ctx, iv.Max))
			}

			b.WriteString(")\n")
		}

		for _, out := range f.Outputs {
			fmt.Fprintf(&b, "    (output %s", p.Buffer(out.Buffer).Name)

			for _, sym := range out.Dims {
				fmt.Fprintf(&b, " %s", p.Ctx.Name(sym))
			}

			b.WriteString(")\n")
		}

		b.WriteString("  )\n")
	}

	fmt.Fprintf(&b, "  (inputs%s)\n", graphNameList(p, p.Inputs))
	fmt.Fprintf(&b, "  (outputs%s)\n", graphNameList(p, p.Outputs))
	b.WriteString(")\n")

	return b.String()
}

func graphNameList(p *pipeline.Pipeline, ids []pipeline.BufferId) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteByte(' ')
		b.WriteString(p.Buffer(id).Name)
	}

	return b.String()
}

// graphWriteExpr renders e using debugfmt's Expr syntax, but with every
// Variable printed as "$name" (its NodeContext diagnostic name) instead of
// "%<id>", so a graph file never needs to know raw symbol numbers.
func graphWriteExpr(ctx *ir.NodeContext, e ir.Expr) string {
	var b strings.Builder
	writeGraphExpr(&b, ctx, e)

	return b.String()
}

func writeGraphExpr(b *strings.Builder, ctx *ir.NodeContext, e ir.Expr) {
	if v, ok := e.(*ir.Variable); ok {
		fmt.Fprintf(b, "$%s", ctx.Name(v.Sym))
		return
	}

	// Every other variant nests only through sub-expressions, so recurse by
	// re-printing WriteExpr's structure with Variables patched afterwards
	// would double-walk the tree; instead mirror writeExpr's cases directly.
	switch n := e.(type) {
	case *ir.Constant:
		fmt.Fprintf(b, "%d", n.Value)
	case *ir.Wildcard:
		fmt.Fprintf(b, "?%d", uint32(n.Sym))
	case *ir.Binary:
		fmt.Fprintf(b, "(%s ", binOpNames[n.Op])
		writeGraphExpr(b, ctx, n.Left)
		b.WriteByte(' ')
		writeGraphExpr(b, ctx, n.Right)
		b.WriteByte(')')
	case *ir.Not:
		b.WriteString("(not ")
		writeGraphExpr(b, ctx, n.Arg)
		b.WriteByte(')')
	case *ir.Min:
		b.WriteString("(min ")
		writeGraphExpr(b, ctx, n.Left)
		b.WriteByte(' ')
		writeGraphExpr(b, ctx, n.Right)
		b.WriteByte(')')
	case *ir.Max:
		b.WriteString("(max ")
		writeGraphExpr(b, ctx, n.Left)
		b.WriteByte(' ')
		writeGraphExpr(b, ctx, n.Right)
		b.WriteByte(')')
	case *ir.Select:
		b.WriteString("(select ")
		writeGraphExpr(b, ctx, n.Cond)
		b.WriteByte(' ')
		writeGraphExpr(b, ctx, n.True)
		b.WriteByte(' ')
		writeGraphExpr(b, ctx, n.False)
		b.WriteByte(')')
	case *ir.Let:
		fmt.Fprintf(b, "(let $%s ", ctx.Name(n.Sym))
		writeGraphExpr(b, ctx, n.Value)
		b.WriteByte(' ')
		writeGraphExpr(b, ctx, n.Body)
		b.WriteByte(')')
	case *ir.Call:
		fmt.Fprintf(b, "(%s", n.Intrinsic.String())

		for _, a := range n.Args {
			b.WriteByte(' ')
			writeGraphExpr(b, ctx, a)
		}

		b.WriteByte(')')
	default:
		panic("debugfmt: unknown expression variant")
	}
}

// ReadGraph parses the textual form written by WriteGraph into a fresh
// Pipeline. opts controls which optimisation passes a later
// BuildAndOptimize call will run; ReadGraph itself only constructs the
// graph.
func ReadGraph(s string, opts pipeline.BuildOptions) (*pipeline.Pipeline, error) {
	gp := &graphParser{parser: parser{toks: tokenize(s)}, p: pipeline.New(opts), byName: map[string]pipeline.BufferId{}}

	if err := gp.parsePipeline(); err != nil {
		return nil, err
	}

	return gp.p, nil
}

type graphParser struct {
	parser
	p      *pipeline.Pipeline
	byName map[string]pipeline.BufferId
}

func (gp *graphParser) expectWord(word string) error {
	tok, err := gp.next()
	if err != nil {
		return err
	}

	if tok != word {
		return fmt.Errorf("debugfmt: expected %q, got %q", word, tok)
	}

	return nil
}

func (gp *graphParser) parsePipeline() error {
	if err := gp.expectWord("("); err != nil {
		return err
	}

	if err := gp.expectWord("pipeline"); err != nil {
		return err
	}

	for {
		tok, ok := gp.peek()
		if !ok {
			return fmt.Errorf("debugfmt: unterminated pipeline")
		}

		if tok == ")" {
			gp.pos++
			return nil
		}

		if err := gp.expectWord("("); err != nil {
			return err
		}

		head, err := gp.next()
		if err != nil {
			return err
		}

		switch head {
		case "buffer":
			if err := gp.parseBuffer(); err != nil {
				return err
			}
		case "func":
			if err := gp.parseFunc(); err != nil {
				return err
			}
		case "inputs":
			ids, err := gp.parseBufferNameList()
			if err != nil {
				return err
			}

			gp.p.Inputs = ids
		case "outputs":
			ids, err := gp.parseBufferNameList()
			if err != nil {
				return err
			}

			gp.p.Outputs = ids
		default:
			return fmt.Errorf("debugfmt: unknown pipeline form %q", head)
		}
	}
}

func (gp *graphParser) parseBufferNameList() ([]pipeline.BufferId, error) {
	var ids []pipeline.BufferId

	for {
		tok, ok := gp.peek()
		if !ok {
			return nil, fmt.Errorf("debugfmt: unterminated name list")
		}

		if tok == ")" {
			gp.pos++
			return ids, nil
		}

		name, err := gp.next()
		if err != nil {
			return nil, err
		}

		id, ok := gp.byName[name]
		if !ok {
			return nil, fmt.Errorf("debugfmt: unknown buffer %q", name)
		}

		ids = append(ids, id)
	}
}

func (gp *graphParser) parseBuffer() error {
	name, err := gp.next()
	if err != nil {
		return err
	}

	elemTok, err := gp.next()
	if err != nil {
		return err
	}

	elemSize, err := strconv.ParseInt(elemTok, 10, 64)
	if err != nil {
		return fmt.Errorf("debugfmt: bad elem size %q: %w", elemTok, err)
	}

	buf := &pipeline.BufferExpr{Name: name, ElemSize: elemSize}

	for {
		tok, ok := gp.peek()
		if !ok {
			return fmt.Errorf("debugfmt: unterminated buffer %q", name)
		}

		if tok == "heap" || tok == "stack" {
			gp.pos++

			if tok == "stack" {
				buf.Storage = ir.Stack
			}

			break
		}

		if err := gp.expectWord("("); err != nil {
			return err
		}

		if err := gp.expectWord("dim"); err != nil {
			return err
		}

		min, err := gp.parseGraphExpr()
		if err != nil {
			return err
		}

		max, err := gp.parseGraphExpr()
		if err != nil {
			return err
		}

		if err := gp.expectWord(")"); err != nil {
			return err
		}

		buf.Dims = append(buf.Dims, ir.DimExpr{Bounds: ir.IntervalExpr{Min: min, Max: max}})
	}

	if err := gp.expectWord(")"); err != nil {
		return err
	}

	id := gp.p.AddBuffer(buf)
	gp.byName[name] = id

	return nil
}

func (gp *graphParser) parseFunc() error {
	name, err := gp.next()
	if err != nil {
		return err
	}

	f := &pipeline.Func{Name: name}

	for {
		tok, err := gp.next()
		if err != nil {
			return err
		}

		if tok == ")" {
			break
		}

		if tok != "(" {
			return fmt.Errorf("debugfmt: expected '(' in func %q, got %q", name, tok)
		}

		head, err := gp.next()
		if err != nil {
			return err
		}

		switch head {
		case "callback":
			cbName, err := gp.next()
			if err != nil {
				return err
			}

			copyTok, err := gp.next()
			if err != nil {
				return err
			}

			f.Callback = ir.Callback{Name: cbName, IsCopy: copyTok == "true"}

			if err := gp.expectWord(")"); err != nil {
				return err
			}
		case "loop":
			symName, err := gp.next()
			if err != nil {
				return err
			}

			modeTok, err := gp.next()
			if err != nil {
				return err
			}

			min, err := gp.parseGraphExpr()
			if err != nil {
				return err
			}

			max, err := gp.parseGraphExpr()
			if err != nil {
				return err
			}

			if err := gp.expectWord(")"); err != nil {
				return err
			}

			mode := ir.Serial
			if modeTok == "parallel" {
				mode = ir.Parallel
			}

			f.Loops = append(f.Loops, gp.p.Ctx.Bind(symName))
			f.LoopBounds = append(f.LoopBounds, ir.IntervalExpr{Min: min, Max: max})
			f.LoopModes = append(f.LoopModes, mode)
		case "input":
			bufName, err := gp.next()
			if err != nil {
				return err
			}

			id, ok := gp.byName[bufName]
			if !ok {
				return fmt.Errorf("debugfmt: unknown buffer %q in func %q", bufName, name)
			}

			access := pipeline.InputAccess{Buffer: id}

			for {
				tok, ok := gp.peek()
				if !ok {
					return fmt.Errorf("debugfmt: unterminated input clause")
				}

				if tok == ")" {
					gp.pos++
					break
				}

				if err := gp.expectWord("("); err != nil {
					return err
				}

				min, err := gp.parseGraphExpr()
				if err != nil {
					return err
				}

				max, err := gp.parseGraphExpr()
				if err != nil {
					return err
				}

				if err := gp.expectWord(")"); err != nil {
					return err
				}

				access.Bounds = append(access.Bounds, ir.IntervalExpr{Min: min, Max: max})
			}

			f.Inputs = append(f.Inputs, access)
		case "output":
			bufName, err := gp.next()
			if err != nil {
				return err
			}

			id, ok := gp.byName[bufName]
			if !ok {
				return fmt.Errorf("debugfmt: unknown buffer %q in func %q", bufName, name)
			}

			binding := pipeline.OutputBinding{Buffer: id}

			for {
				tok, ok := gp.peek()
				if !ok {
					return fmt.Errorf("debugfmt: unterminated output clause")
				}

				if tok == ")" {
					gp.pos++
					break
				}

				symName, err := gp.next()
				if err != nil {
					return err
				}

				binding.Dims = append(binding.Dims, gp.p.Ctx.Bind(symName))
			}

			f.Outputs = append(f.Outputs, binding)
		default:
			return fmt.Errorf("debugfmt: unknown func form %q in %q", head, name)
		}
	}

	gp.p.AddFunc(f)

	return nil
}

// parseGraphExpr parses one debugfmt-syntax expression in which every
// "$name" token names a symbol resolved (and minted, if new) via the
// pipeline's own NodeContext, rather than a raw "%<id>". It otherwise
// mirrors parser.parseExpr/parseList, recursing into itself instead of the
// plain parser so "$name" leaves work at any nesting depth.
func (gp *graphParser) parseGraphExpr() (ir.Expr, error) {
	tok, err := gp.next()
	if err != nil {
		return nil, err
	}

	switch {
	case tok == "(":
		return gp.parseGraphList()
	case strings.HasPrefix(tok, "$"):
		return ir.Var(gp.p.Ctx.Bind(tok[1:])), nil
	case strings.HasPrefix(tok, "?"):
		id, err := strconv.ParseUint(tok[1:], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("debugfmt: bad wildcard %q: %w", tok, err)
		}

		return &ir.Wildcard{Sym: ir.SymbolId(id)}, nil
	default:
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("debugfmt: bad token %q: %w", tok, err)
		}

		return ir.Const(v), nil
	}
}

func (gp *graphParser) parseGraphList() (ir.Expr, error) {
	head, err := gp.next()
	if err != nil {
		return nil, err
	}

	switch head {
	case "not":
		arg, err := gp.parseGraphExpr()
		if err != nil {
			return nil, err
		}

		return gp.closeReturn(&ir.Not{Arg: arg})
	case "min", "max":
		l, err := gp.parseGraphExpr()
		if err != nil {
			return nil, err
		}

		r, err := gp.parseGraphExpr()
		if err != nil {
			return nil, err
		}

		if head == "min" {
			return gp.closeReturn(&ir.Min{Left: l, Right: r})
		}

		return gp.closeReturn(&ir.Max{Left: l, Right: r})
	case "select":
		c, err := gp.parseGraphExpr()
		if err != nil {
			return nil, err
		}

		t, err := gp.parseGraphExpr()
		if err != nil {
			return nil, err
		}

		f, err := gp.parseGraphExpr()
		if err != nil {
			return nil, err
		}

		return gp.closeReturn(&ir.Select{Cond: c, True: t, False: f})
	case "let":
		symTok, err := gp.next()
		if err != nil {
			return nil, err
		}

		if !strings.HasPrefix(symTok, "$") {
			return nil, fmt.Errorf("debugfmt: expected symbol in let, got %q", symTok)
		}

		val, err := gp.parseGraphExpr()
		if err != nil {
			return nil, err
		}

		body, err := gp.parseGraphExpr()
		if err != nil {
			return nil, err
		}

		return gp.closeReturn(&ir.Let{Sym: gp.p.Ctx.Bind(symTok[1:]), Value: val, Body: body})
	default:
		if op, ok := binOpByName[head]; ok {
			l, err := gp.parseGraphExpr()
			if err != nil {
				return nil, err
			}

			r, err := gp.parseGraphExpr()
			if err != nil {
				return nil, err
			}

			return gp.closeReturn(&ir.Binary{Op: op, Left: l, Right: r})
		}

		if intr, ok := intrinsicByName[head]; ok {
			var args []ir.Expr

			for {
				tok, ok := gp.peek()
				if !ok {
					return nil, fmt.Errorf("debugfmt: unterminated call to %q", head)
				}

				if tok == ")" {
					break
				}

				arg, err := gp.parseGraphExpr()
				if err != nil {
					return nil, err
				}

				args = append(args, arg)
			}

			return gp.closeReturn(&ir.Call{Intrinsic: intr, Args: args})
		}

		return nil, fmt.Errorf("debugfmt: unknown operator %q", head)
	}
}
