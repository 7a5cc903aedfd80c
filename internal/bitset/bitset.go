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

// Package bitset provides a concurrent, NUMA-placeable bit array used as
// the backing store for the sieve's sharded Bloom filters. Sets and tests
// use relaxed atomics, matching the lock-free access pattern worker
// goroutines need when many of them hammer the same filter.
package bitset

import (
	"fmt"
	"sync/atomic"
)

const wordBits = 64

// BitArray is a fixed-size array of bits supporting concurrent,
// non-blocking Set and Test. The zero value is not usable; construct with
// New or NewOnNode.
type BitArray struct {
	words []atomic.Uint64
	nbits uint64
}

// New allocates a BitArray able to hold at least nbits bits, portably
// (a plain Go slice of atomic words; no huge pages, no NUMA placement).
// Use NewOnNode on Linux for the huge-page-backed, NUMA-pinned variant.
func New(nbits uint64) *BitArray {
	nwords := (nbits + wordBits - 1) / wordBits
	return &BitArray{
		words: make([]atomic.Uint64, nwords),
		nbits: nbits,
	}
}

// Len returns the number of addressable bits.
func (b *BitArray) Len() uint64 { return b.nbits }

func (b *BitArray) checkRange(index uint64) {
	if index >= b.nbits {
		panic(fmt.Sprintf("bitset: index %d out of range [0, %d)", index, b.nbits))
	}
}

// Set atomically sets the bit at index.
func (b *BitArray) Set(index uint64) {
	b.checkRange(index)
	word, bit := index/wordBits, index%wordBits
	b.words[word].Or(uint64(1) << bit)
}

// Test reports whether the bit at index is set.
func (b *BitArray) Test(index uint64) bool {
	b.checkRange(index)
	word, bit := index/wordBits, index%wordBits
	return b.words[word].Load()&(uint64(1)<<bit) != 0
}

// words64 exposes the underlying words for bulk operations (the cross-OR
// merge). Only package-internal callers may use this; it does
// not copy.
func (b *BitArray) words64() []atomic.Uint64 { return b.words }
