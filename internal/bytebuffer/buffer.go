// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bytebuffer implements a random-access growable byte container,
// the in-memory analogue of the local temporary file that
// gcsproxy.MutableObject buffers dirty writes in (see mutable_content.go in
// the teacher repo): here the cache authority registry needs the bytes to
// survive past any single handle's lifetime and to be replayed during
// Restore, so they live in RAM rather than on disk.
package bytebuffer

import "sync"

// initialCapacity is the pre-grow size for a freshly created buffer,
// chosen per spec §4.5 ("Initial small buffers are pre-grown to 4 KiB to
// reduce reallocation").
const initialCapacity = 4096

// Buffer is a random-access byte array safe for concurrent readData/
// writeData/peekData calls from a single owning goroutine at a time; per
// spec §5 the only required guarantee is that a peek is never mutated
// through while outstanding, which Buffer enforces with peekCount.
type Buffer struct {
	mu        sync.Mutex
	data      []byte
	size      int
	peekCount int
}

// New returns an empty buffer pre-grown to 4 KiB of capacity.
func New() *Buffer {
	return &Buffer{data: make([]byte, 0, initialCapacity)}
}

// Size returns the number of logical bytes currently stored.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity is an allocation hint; it may exceed Size.
func (b *Buffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cap(b.data)
}

// WriteData writes src into the buffer starting at offset, growing
// capacity and size as needed. It returns the number of bytes written
// (always len(src), writes never short-write).
func (b *Buffer) WriteData(src []byte, offset int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.peekCount > 0 {
		panic("bytebuffer: WriteData called while a peek is outstanding")
	}

	end := offset + len(src)
	b.growTo(end)

	copy(b.data[offset:end], src)
	if end > b.size {
		b.size = end
	}

	return len(src)
}

// ReadData reads up to length bytes starting at offset into dst (which must
// have capacity length), returning the number of bytes copied. Bytes past
// the current size read as zero, matching spec §4.2.
func (b *Buffer) ReadData(dst []byte, offset int, length int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset >= b.size {
		for i := 0; i < length && i < len(dst); i++ {
			dst[i] = 0
		}
		return min(length, len(dst))
	}

	avail := b.size - offset
	n := length
	if n > avail {
		n = avail
	}
	if n > len(dst) {
		n = len(dst)
	}

	copy(dst[:n], b.data[offset:offset+n])

	// Zero-extend the remainder of the requested range, if any.
	for i := n; i < length && i < len(dst); i++ {
		dst[i] = 0
	}
	if length > n {
		return min(length, len(dst))
	}
	return n
}

// PeekData borrows a contiguous read-only view of [offset, offset+length)
// without copying. The caller must call ReleasePeek before any further
// mutation of the buffer; the buffer enforces this by panicking on a write
// while a peek is outstanding rather than racing silently.
func (b *Buffer) PeekData(offset, length int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := offset + length
	if end > b.size {
		end = b.size
	}
	if offset >= end {
		b.peekCount++
		return nil
	}

	b.peekCount++
	return b.data[offset:end]
}

// ReleasePeek ends a borrow started by PeekData.
func (b *Buffer) ReleasePeek() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.peekCount == 0 {
		panic("bytebuffer: ReleasePeek without a matching PeekData")
	}
	b.peekCount--
}

// Resize truncates or zero-extends the buffer to exactly n bytes.
func (b *Buffer) Resize(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.peekCount > 0 {
		panic("bytebuffer: Resize called while a peek is outstanding")
	}

	if n <= b.size {
		b.data = b.data[:n]
		b.size = n
		return
	}

	b.growTo(n)
	b.size = n
}

// growTo ensures cap(data) >= n, doubling (starting from initialCapacity)
// rather than growing exactly to n each time.
func (b *Buffer) growTo(n int) {
	if n <= cap(b.data) {
		b.ensureLen(n)
		return
	}

	newCap := cap(b.data)
	if newCap == 0 {
		newCap = initialCapacity
	}
	for newCap < n {
		newCap *= 2
	}

	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
	b.ensureLen(n)
}

// ensureLen extends b.data (within capacity) to length n, zero-filling the
// newly exposed tail.
func (b *Buffer) ensureLen(n int) {
	if n <= len(b.data) {
		return
	}
	old := len(b.data)
	b.data = b.data[:n]
	for i := old; i < n; i++ {
		b.data[i] = 0
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
