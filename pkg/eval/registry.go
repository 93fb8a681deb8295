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

import "github.com/slinkylang/slinky/pkg/ir"

// CallbackFunc is the Go form of the user callback contract (§6.1): read
// any cell of inputs, write exactly the declared output region of
// outputs, return 0 for success or a nonzero code to abort evaluation.
type CallbackFunc func(inputs, outputs []*ir.Buffer) ir.Index

// Registry maps a Callback's diagnostic Name to the Go function that
// implements it. The IR itself never stores function values, so every
// evaluation needs a Registry populated with every name the pipeline's
// CallStmt nodes reference.
type Registry struct {
	fns map[string]CallbackFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fns: map[string]CallbackFunc{}}
}

// Register binds name to fn, overwriting any previous binding.
func (r *Registry) Register(name string, fn CallbackFunc) {
	r.fns[name] = fn
}

func (r *Registry) lookup(name string) (CallbackFunc, bool) {
	fn, ok := r.fns[name]

	return fn, ok
}
