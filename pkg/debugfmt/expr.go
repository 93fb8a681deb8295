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

// Package debugfmt prints and reads the s-expression debug form used by the
// slinky CLI's `build` subcommand and by tests: a plain, deterministic
// textual rendering of Expr/Stmt trees, round-tripping exactly through
// ReadExpr(WriteExpr(e)) == e (structural equality).
package debugfmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/slinkylang/slinky/pkg/ir"
)

var binOpNames = map[ir.BinOp]string{
	ir.OpAdd: "+", ir.OpSub: "-", ir.OpMul: "*", ir.OpDiv: "div", ir.OpMod: "mod",
	ir.OpEq: "=", ir.OpNe: "!=", ir.OpLt: "<", ir.OpLe: "<=", ir.OpAnd: "and", ir.OpOr: "or",
}

var binOpByName = func() map[string]ir.BinOp {
	m := map[string]ir.BinOp{}
	for op, name := range binOpNames {
		m[name] = op
	}

	return m
}()

var intrinsicByName = func() map[string]ir.Intrinsic {
	m := map[string]ir.Intrinsic{}
	for i := ir.PositiveInfinity; i <= ir.BufferAt; i++ {
		m[i.String()] = i
	}

	return m
}()

// WriteExpr renders e as a parenthesised s-expression.
func WriteExpr(e ir.Expr) string {
	var b strings.Builder
	writeExpr(&b, e)

	return b.String()
}

func writeExpr(b *strings.Builder, e ir.Expr) {
	switch n := e.(type) {
	case *ir.Variable:
		fmt.Fprintf(b, "%%%d", uint32(n.Sym))
	case *ir.Constant:
		fmt.Fprintf(b, "%d", n.Value)
	case *ir.Wildcard:
		fmt.Fprintf(b, "?%d", uint32(n.Sym))
	case *ir.Binary:
		fmt.Fprintf(b, "(%s ", binOpNames[n.Op])
		writeExpr(b, n.Left)
		b.WriteByte(' ')
		writeExpr(b, n.Right)
		b.WriteByte(')')
	case *ir.Not:
		b.WriteString("(not ")
		writeExpr(b, n.Arg)
		b.WriteByte(')')
	case *ir.Min:
		b.WriteString("(min ")
		writeExpr(b, n.Left)
		b.WriteByte(' ')
		writeExpr(b, n.Right)
		b.WriteByte(')')
	case *ir.Max:
		b.WriteString("(max ")
		writeExpr(b, n.Left)
		b.WriteByte(' ')
		writeExpr(b, n.Right)
		b.WriteByte(')')
	case *ir.Select:
		b.WriteString("(select ")
		writeExpr(b, n.Cond)
		b.WriteByte(' ')
		writeExpr(b, n.True)
		b.WriteByte(' ')
		writeExpr(b, n.False)
		b.WriteByte(')')
	case *ir.Let:
		fmt.Fprintf(b, "(let %%%d ", uint32(n.Sym))
		writeExpr(b, n.Value)
		b.WriteByte(' ')
		writeExpr(b, n.Body)
		b.WriteByte(')')
	case *ir.Call:
		fmt.Fprintf(b, "(%s", n.Intrinsic.String())

		for _, a := range n.Args {
			b.WriteByte(' ')
			writeExpr(b, a)
		}

		b.WriteByte(')')
	default:
		panic("debugfmt: unknown expression variant")
	}
}

// ReadExpr parses the textual form written by WriteExpr.
func ReadExpr(s string) (ir.Expr, error) {
	p := &parser{toks: tokenize(s)}

	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("debugfmt: trailing tokens after expression: %v", p.toks[p.pos:])
	}

	return e, nil
}

type parser struct {
	toks []string
	pos  int
}

func tokenize(s string) []string {
	var toks []string

	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}

	inQuote, escaped := false, false

	for _, r := range s {
		switch {
		case inQuote:
			// A quoted string (a Check message) is one token, spaces and
			// parentheses included.
			cur.WriteRune(r)
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inQuote = false
			}
		case r == '"':
			cur.WriteRune(r)
			inQuote = true
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}

	flush()

	return toks
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.toks) {
		return "", false
	}

	return p.toks[p.pos], true
}

func (p *parser) next() (string, error) {
	tok, ok := p.peek()
	if !ok {
		return "", fmt.Errorf("debugfmt: unexpected end of input")
	}

	p.pos++

	return tok, nil
}

func (p *parser) parseExpr() (ir.Expr, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}

	switch {
	case tok == "(":
		return p.parseList()
	case strings.HasPrefix(tok, "%"):
		id, err := strconv.ParseUint(tok[1:], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("debugfmt: bad symbol %q: %w", tok, err)
		}

		return ir.Var(ir.SymbolId(id)), nil
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

func (p *parser) parseList() (ir.Expr, error) {
	head, err := p.next()
	if err != nil {
		return nil, err
	}

	switch head {
	case "not":
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		return p.closeReturn(&ir.Not{Arg: arg})
	case "min", "max":
		l, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		r, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		if head == "min" {
			return p.closeReturn(&ir.Min{Left: l, Right: r})
		}

		return p.closeReturn(&ir.Max{Left: l, Right: r})
	case "select":
		c, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		t, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		f, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		return p.closeReturn(&ir.Select{Cond: c, True: t, False: f})
	case "let":
		symTok, err := p.next()
		if err != nil {
			return nil, err
		}

		if !strings.HasPrefix(symTok, "%") {
			return nil, fmt.Errorf("debugfmt: expected symbol in let, got %q", symTok)
		}

		id, err := strconv.ParseUint(symTok[1:], 10, 32)
		if err != nil {
			return nil, err
		}

		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		return p.closeReturn(&ir.Let{Sym: ir.SymbolId(id), Value: val, Body: body})
	default:
		if op, ok := binOpByName[head]; ok {
			l, err := p.parseExpr()
			if err != nil {
				return nil, err
			}

			r, err := p.parseExpr()
			if err != nil {
				return nil, err
			}

			return p.closeReturn(&ir.Binary{Op: op, Left: l, Right: r})
		}

		if intr, ok := intrinsicByName[head]; ok {
			var args []ir.Expr

			for {
				tok, ok := p.peek()
				if !ok {
					return nil, fmt.Errorf("debugfmt: unterminated call to %q", head)
				}

				if tok == ")" {
					break
				}

				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}

				args = append(args, arg)
			}

			return p.closeReturn(&ir.Call{Intrinsic: intr, Args: args})
		}

		return nil, fmt.Errorf("debugfmt: unknown operator %q", head)
	}
}

func (p *parser) closeReturn(e ir.Expr) (ir.Expr, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}

	if tok != ")" {
		return nil, fmt.Errorf("debugfmt: expected ')', got %q", tok)
	}

	return e, nil
}
