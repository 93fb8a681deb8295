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

// BuildOptions controls which optimisation passes BuildAndOptimize applies
// (Build itself runs none). Every pass
// is independently toggleable so a caller debugging one pass can disable the
// others.
type BuildOptions struct {
	// NoChecks omits the runtime bounds Check nodes emitted in §4.3 step 5.
	NoChecks bool
	// NoSlideAndFold disables §4.4 entirely; every allocation keeps its
	// full inferred extent and no producer is rewritten incrementally.
	NoSlideAndFold bool
	// NoAliasing disables §4.5; every intermediate keeps its own storage.
	NoAliasing bool
	// NoScopeReduction disables §4.6; scoping nodes keep their full
	// original body rather than being tightened around the substatement
	// that needs them.
	NoScopeReduction bool
	// NoCopyOptimisation disables §4.7; identity callbacks stay as
	// CallStmt rather than being promoted to CopyStmt.
	NoCopyOptimisation bool
	// NoInputCropRemoval disables §4.8.
	NoInputCropRemoval bool
}

// OptimisationLevels provides canned configurations, indexed by
// aggressiveness, for callers that want a single -O flag rather than a
// struct of individually named toggles.
var OptimisationLevels = []BuildOptions{
	// Level 0: nothing disabled.
	{},
	// Level 1: skip only the (expensive, debugging-oriented) runtime
	// checks; every structural optimisation still runs.
	{NoChecks: true},
}

// DefaultOptions is the recommended configuration for production builds.
var DefaultOptions = OptimisationLevels[0]
