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
package pipeline

import (
	log "github.com/sirupsen/logrus"

	"github.com/slinkylang/slinky/pkg/alias"
	"github.com/slinkylang/slinky/pkg/bounds"
	"github.com/slinkylang/slinky/pkg/copyopt"
	"github.com/slinkylang/slinky/pkg/ir"
	"github.com/slinkylang/slinky/pkg/scope"
	"github.com/slinkylang/slinky/pkg/slide"
)

// BuildAndOptimize runs Build, then every optimisation pass in the §2/§4
// order: bounds inference, slide-and-fold, input crop removal, a
// simplify+reduce-scopes pass, buffer aliasing, copy optimisation, and a
// second simplify+reduce-scopes pass, skipping whichever ones p.Options
// disables.
//
// Input crop removal runs before aliasing, not after: it strips crops
// around symbols nothing writes, which is exactly the shape aliasing's own
// gather step needs gone so it can see straight through to a consumer's
// real demand. Running the pair of simplify/reduce-scopes passes twice
// matters for the same reason every other pass here does its own
// Simplify-on-the-way-out — aliasing and copy optimisation both expect an
// already-simplified, already-scope-reduced tree walking in, not just
// walking out.
func (p *Pipeline) BuildAndOptimize() (ir.Stmt, error) {
	root, err := p.Build()
	if err != nil {
		return nil, err
	}

	formals := make([]bounds.FormalInput, 0, len(p.Inputs))
	for _, id := range p.Inputs {
		buf := p.Buffer(id)
		formals = append(formals, bounds.FormalInput{Sym: buf.Sym, Rank: buf.Rank()})
	}

	root, err = bounds.Infer(root, formals, p.Options.NoChecks)
	if err != nil {
		return nil, err
	}

	log.WithField("pass", "optimize").Debug("bounds inferred")

	if !p.Options.NoSlideAndFold {
		root = slide.Fold(root)
	}

	if !p.Options.NoInputCropRemoval {
		root = scope.RemoveRedundantCrops(root)
	}

	root = ir.SimplifyStmt(root)

	if !p.Options.NoScopeReduction {
		root = scope.Reduce(root)
	}

	if !p.Options.NoAliasing {
		root = alias.Eliminate(root)
	}

	if !p.Options.NoCopyOptimisation {
		root = copyopt.Optimize(root)
	}

	root = ir.SimplifyStmt(root)

	if !p.Options.NoScopeReduction {
		root = scope.Reduce(root)
	}

	return root, nil
}
