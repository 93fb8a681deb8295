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

// SymbolId is a dense integer identifying a variable, loop index or buffer
// within a NodeContext.  Symbols live in the domain [0,N) for whatever N a
// given context has minted so far.
type SymbolId uint32

// InvalidSymbol is returned by lookups which fail to find a matching name.
const InvalidSymbol SymbolId = ^SymbolId(0)

// String implements fmt.Stringer, printing a symbol as "%<id>" when no name
// is known to the caller.  Diagnostics which have access to a NodeContext
// should prefer NodeContext.Name instead.
func (s SymbolId) String() string {
	return fmt.Sprintf("%%%d", uint32(s))
}

// NodeContext maps names to SymbolId values (and back), and mints fresh
// symbols on demand.  String text is retained only for diagnostics; the IR
// itself refers exclusively to SymbolId values.
type NodeContext struct {
	names []string
	index map[string]SymbolId
}

// NewNodeContext returns an empty context.
func NewNodeContext() *NodeContext {
	return &NodeContext{index: make(map[string]SymbolId)}
}

// Lookup returns the SymbolId bound to name, or InvalidSymbol if none exists.
func (c *NodeContext) Lookup(name string) SymbolId {
	if id, ok := c.index[name]; ok {
		return id
	}

	return InvalidSymbol
}

// Name returns the diagnostic name of id, or its numeric form if the symbol
// was minted anonymously.
func (c *NodeContext) Name(id SymbolId) string {
	if int(id) < len(c.names) && c.names[id] != "" {
		return c.names[id]
	}

	return id.String()
}

// Fresh mints a brand new, previously unused symbol with an optional
// diagnostic name (pass "" for an anonymous symbol).
func (c *NodeContext) Fresh(name string) SymbolId {
	id := SymbolId(len(c.names))
	c.names = append(c.names, name)

	if name != "" {
		c.index[name] = id
	}

	return id
}

// Bind returns the existing symbol for name, minting a fresh one if this is
// the first time name has been seen.
func (c *NodeContext) Bind(name string) SymbolId {
	if id := c.Lookup(name); id != InvalidSymbol {
		return id
	}

	return c.Fresh(name)
}

// Len returns the number of symbols minted so far, i.e. the current domain
// size N such that all live SymbolId values lie in [0,N).
func (c *NodeContext) Len() int {
	return len(c.names)
}
