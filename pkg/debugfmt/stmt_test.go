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

func TestStmtRoundTrip(t *testing.T) {
	i, x, y := ir.SymbolId(1), ir.SymbolId(2), ir.SymbolId(3)

	cases := []ir.Stmt{
		&ir.Check{Cond: ir.Lt(ir.Var(x), ir.Const(10)), Message: "x in range"},
		&ir.LetStmt{Sym: x, Value: ir.Const(1), Body: &ir.Check{Cond: ir.Var(x), Message: "ok"}},
		&ir.Loop{
			Sym:   i,
			Mode:  ir.Serial,
			Bounds: ir.IntervalExpr{Min: ir.Const(0), Max: ir.Const(9)},
			Step:  ir.Const(1),
			Body:  &ir.Check{Cond: ir.Var(i), Message: "iter"},
		},
		&ir.CallStmt{
			Callback: ir.Callback{Name: "add", IsCopy: false},
			Inputs:   []ir.SymbolId{x, y},
			Outputs:  []ir.SymbolId{i},
		},
		ir.Seq(
			&ir.Check{Cond: ir.Const(1), Message: "first"},
			&ir.Check{Cond: ir.Const(1), Message: "second"},
		),
	}

	for _, s := range cases {
		text := WriteStmt(s)

		got, err := ReadStmt(text)
		require.NoError(t, err, text)
		assert.Equal(t, WriteStmt(s), WriteStmt(got), "round trip mismatch for %q", text)
	}
}

func TestWriteStmtNil(t *testing.T) {
	assert.Equal(t, "nil", WriteStmt(nil))
}
