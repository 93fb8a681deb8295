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
	"fmt"
	"math/bits"
	"sync"

	"github.com/slinkylang/slinky/pkg/ir"
)

// Allocator is what Allocate (§4.9) obtains buffer storage from. Callers
// running parallel loops that contain an Allocate must supply a
// thread-safe implementation (§5, "Allocators must be thread-safe").
type Allocator interface {
	// Alloc returns a zeroed byte slice of at least size bytes.
	Alloc(storage ir.StorageClass, size ir.Index) ([]byte, error)
	// Free returns a slice previously obtained from Alloc.
	Free(storage ir.StorageClass, buf []byte)
}

// AllocationFailedError is returned by an Allocator that cannot satisfy a
// request; the evaluator maps it to the -2 AllocationFailed error code.
type AllocationFailedError struct {
	Size ir.Index
}

func (e *AllocationFailedError) Error() string {
	return fmt.Sprintf("eval: allocation of %d bytes failed", e.Size)
}

// PoolAllocator is the default Allocator: a size-class-bucketed sync.Pool,
// safe for concurrent use from parallel loop iterations. Stack and Heap
// requests are served identically; the distinction exists in the IR to let
// a caller-supplied Allocator specialise if it wants to (e.g. a bump-arena
// for Stack, a real heap for Heap), which PoolAllocator does not need to.
type PoolAllocator struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

// NewPoolAllocator returns a ready-to-use PoolAllocator.
func NewPoolAllocator() *PoolAllocator {
	return &PoolAllocator{pools: map[int]*sync.Pool{}}
}

// Alloc implements Allocator.
func (a *PoolAllocator) Alloc(_ ir.StorageClass, size ir.Index) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}

	class := sizeClass(size)

	a.mu.Lock()
	p, ok := a.pools[class]
	if !ok {
		p = &sync.Pool{New: func() any { return make([]byte, class) }}
		a.pools[class] = p
	}
	a.mu.Unlock()

	buf := p.Get().([]byte)[:class]
	for i := range buf {
		buf[i] = 0
	}

	return buf[:size], nil
}

// Free implements Allocator.
func (a *PoolAllocator) Free(_ ir.StorageClass, buf []byte) {
	if buf == nil {
		return
	}

	class := cap(buf)

	a.mu.Lock()
	p, ok := a.pools[class]
	a.mu.Unlock()

	if ok {
		p.Put(buf[:class])
	}
}

// sizeClass rounds size up to the next power of two, bucketing pool
// entries so that a modest number of distinct allocation shapes reuses
// storage instead of growing the pool key space unboundedly.
func sizeClass(size ir.Index) int {
	if size <= 1 {
		return 1
	}

	return 1 << bits.Len64(uint64(size-1))
}
