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

import "fmt"

// ErrorKind classifies a build-time failure so a caller can report a
// specific, actionable diagnostic instead of an opaque error string.
type ErrorKind uint8

// Build-time error kinds.
const (
	GraphCycle ErrorKind = iota
	UnboundedAllocation
	UnresolvedBounds
)

var errorKindNames = map[ErrorKind]string{
	GraphCycle:          "graph cycle",
	UnboundedAllocation: "unbounded allocation",
	UnresolvedBounds:    "unresolved bounds",
}

// Loc is an optional source-location annotation attached to a BuildError
// during graph construction, for diagnostics only.
type Loc struct {
	File string
	Line int
}

// BuildError is returned by build-time passes (pipeline construction,
// bounds inference).  It always names the offending symbol so a caller can
// report a useful diagnostic.
type BuildError struct {
	Kind   ErrorKind
	Sym    SymbolId
	Detail string
	Loc    *Loc
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	name := errorKindNames[e.Kind]
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (symbol %s)", name, e.Detail, e.Sym)
	}

	return fmt.Sprintf("%s: symbol %s", name, e.Sym)
}

// NewBuildError constructs a BuildError with the given kind, symbol and
// detail message.
func NewBuildError(kind ErrorKind, sym SymbolId, detail string) *BuildError {
	return &BuildError{Kind: kind, Sym: sym, Detail: detail}
}
