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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimplifyConstantFolding(t *testing.T) {
	e := Add(Const(2), Mul(Const(3), Const(4)))
	assert.Equal(t, Const(14), Simplify(e))
}

func TestSimplifyAdditiveIdentity(t *testing.T) {
	x := Var(SymbolId(1))
	assert.Equal(t, x, Simplify(Add(x, Const(0))))
	assert.Equal(t, x, Simplify(Add(Const(0), x)))
}

func TestSimplifyMultiplicativeIdentityAndAbsorption(t *testing.T) {
	x := Var(SymbolId(1))
	assert.Equal(t, x, Simplify(Mul(x, Const(1))))
	assert.Equal(t, Const(0), Simplify(Mul(x, Const(0))))
	assert.Equal(t, Const(0), Simplify(Mul(Const(0), x)))
}

func TestSimplifyFlooredDivMod(t *testing.T) {
	assert.Equal(t, Index(-2), FlooredDiv(-3, 2))
	assert.Equal(t, Index(1), FlooredMod(-3, 2))
	assert.Equal(t, Index(-1), FlooredMod(3, -2))
}

func TestSimplifyIsIdempotent(t *testing.T) {
	x := Var(SymbolId(1))
	e := Add(Mul(x, Const(1)), Sub(Const(5), Const(5)))

	once := Simplify(e)
	twice := Simplify(once)

	assert.True(t, once.Equals(twice))
}

func TestSimplifyComparisonAlgebra(t *testing.T) {
	assert.Equal(t, Const(1), Simplify(Lt(Const(1), Const(2))))
	assert.Equal(t, Const(0), Simplify(Lt(Const(2), Const(1))))
}
