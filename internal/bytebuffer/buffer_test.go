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

package bytebuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenRead(t *testing.T) {
	b := New()

	n := b.WriteData([]byte("hello"), 0)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, b.Size())

	dst := make([]byte, 5)
	got := b.ReadData(dst, 0, 5)
	assert.Equal(t, 5, got)
	assert.Equal(t, "hello", string(dst))
}

func TestRead_PastSizeReturnsZero(t *testing.T) {
	b := New()
	b.WriteData([]byte("ab"), 0)

	dst := make([]byte, 4)
	got := b.ReadData(dst, 0, 4)
	assert.Equal(t, 4, got)
	assert.Equal(t, []byte{'a', 'b', 0, 0}, dst)
}

func TestRead_WhollyPastSize(t *testing.T) {
	b := New()
	b.WriteData([]byte("ab"), 0)

	dst := make([]byte, 4)
	got := b.ReadData(dst, 10, 4)
	assert.Equal(t, 4, got)
	assert.Equal(t, []byte{0, 0, 0, 0}, dst)
}

func TestWrite_GrowsCapacityPastInitial(t *testing.T) {
	b := New()
	big := make([]byte, initialCapacity*3)
	for i := range big {
		big[i] = byte(i)
	}

	b.WriteData(big, 0)
	assert.Equal(t, len(big), b.Size())
	assert.GreaterOrEqual(t, b.Capacity(), len(big))

	dst := make([]byte, len(big))
	b.ReadData(dst, 0, len(dst))
	assert.Equal(t, big, dst)
}

func TestWrite_Sparse(t *testing.T) {
	b := New()
	b.WriteData([]byte("z"), 10)
	assert.Equal(t, 11, b.Size())

	dst := make([]byte, 11)
	b.ReadData(dst, 0, 11)
	assert.Equal(t, byte('z'), dst[10])
	for i := 0; i < 10; i++ {
		assert.Equal(t, byte(0), dst[i])
	}
}

func TestPeekData_ContiguousAndRelease(t *testing.T) {
	b := New()
	b.WriteData([]byte("0123456789"), 0)

	view := b.PeekData(2, 4)
	require.Equal(t, []byte("2345"), view)
	b.ReleasePeek()

	// A further write is fine once the peek is released.
	b.WriteData([]byte("X"), 2)
}

func TestPeekData_TruncatedAtSize(t *testing.T) {
	b := New()
	b.WriteData([]byte("abc"), 0)

	view := b.PeekData(1, 100)
	assert.Equal(t, []byte("bc"), view)
	b.ReleasePeek()
}

func TestWriteData_PanicsWhilePeekOutstanding(t *testing.T) {
	b := New()
	b.WriteData([]byte("abc"), 0)
	b.PeekData(0, 1)

	assert.Panics(t, func() {
		b.WriteData([]byte("z"), 0)
	})

	b.ReleasePeek()
}

func TestResize_TruncateAndZeroExtend(t *testing.T) {
	b := New()
	b.WriteData([]byte("abcdef"), 0)

	b.Resize(3)
	assert.Equal(t, 3, b.Size())
	dst := make([]byte, 3)
	b.ReadData(dst, 0, 3)
	assert.Equal(t, "abc", string(dst))

	b.Resize(5)
	assert.Equal(t, 5, b.Size())
	dst = make([]byte, 5)
	b.ReadData(dst, 0, 5)
	assert.Equal(t, []byte{'a', 'b', 'c', 0, 0}, dst)
}
