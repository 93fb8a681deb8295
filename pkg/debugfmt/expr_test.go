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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slinkylang/slinky/pkg/ir"
)

func TestExprRoundTrip(t *testing.T) {
	cases := []ir.Expr{
		ir.Const(42),
		ir.Var(ir.SymbolId(3)),
		ir.Add(ir.Var(ir.SymbolId(1)), ir.Mul(ir.Const(2), ir.Var(ir.SymbolId(2)))),
		&ir.Select{Cond: ir.Lt(ir.Var(ir.SymbolId(1)), ir.Const(0)), True: ir.Const(0), False: ir.Var(ir.SymbolId(1))},
		&ir.Min{Left: ir.Const(1), Right: ir.Const(2)},
		&ir.Max{Left: ir.Const(1), Right: ir.Const(2)},
		&ir.Not{Arg: ir.Var(ir.SymbolId(1))},
		&ir.Let{Sym: ir.SymbolId(5), Value: ir.Const(3), Body: ir.Add(ir.Var(ir.SymbolId(5)), ir.Const(1))},
		ir.BufMin(ir.SymbolId(7), 0),
		ir.AbsOf(ir.Const(-4)),
	}

	for _, e := range cases {
		text := WriteExpr(e)

		got, err := ReadExpr(text)
		require.NoError(t, err, text)
		assert.True(t, e.Equals(got), "round trip mismatch for %q: got %q", text, WriteExpr(got))
	}
}

func TestReadExprRejectsTrailingTokens(t *testing.T) {
	_, err := ReadExpr("1 2")
	assert.Error(t, err)
}

func TestReadExprRejectsUnknownOperator(t *testing.T) {
	_, err := ReadExpr("(frobnicate 1 2)")
	assert.Error(t, err)
}
