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

	"golang.org/x/sync/errgroup"

	"github.com/slinkylang/slinky/pkg/ir"
)

// Pool dispatches a Parallel loop's iterations to a bounded set of
// goroutines. It wraps errgroup.Group the way a dedicated thread pool
// would: iterations are submitted as they're reached, at most Workers run
// concurrently, and the first iteration to return a nonzero code cancels
// the rest (§5, cooperative cancellation) without waiting for iterations
// that have not started yet.
type Pool struct {
	Workers int
}

// NewPool returns a Pool bounded to n concurrent workers. n <= 0 means
// unbounded (one goroutine per iteration).
func NewPool(n int) *Pool {
	return &Pool{Workers: n}
}

// callbackError carries a nonzero callback return code through errgroup,
// which only propagates error values.
type callbackError struct{ code ir.Index }

func (e *callbackError) Error() string { return "eval: parallel iteration returned nonzero" }

// Run executes fn(sym) for every sym in [lo, hi] (inclusive) in steps of
// step, across the pool's workers, and returns the first nonzero code any
// iteration produced, or 0 if all iterations returned 0.
func (p *Pool) Run(ctx context.Context, lo, hi, step ir.Index, fn func(ctx context.Context, x ir.Index) ir.Index) ir.Index {
	g, gctx := errgroup.WithContext(ctx)

	if p != nil && p.Workers > 0 {
		g.SetLimit(p.Workers)
	}

	for x := lo; x <= hi; x += step {
		x := x

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			if code := fn(gctx, x); code != 0 {
				return &callbackError{code: code}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if cbErr, ok := err.(*callbackError); ok {
			return cbErr.code
		}

		return -1
	}

	return 0
}
