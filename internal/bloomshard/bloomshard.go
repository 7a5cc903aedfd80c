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

// Package bloomshard implements a concurrent Bloom filter tuned for many
// goroutines hammering the same bit array from different NUMA nodes.
//
// Unlike a classic Bloom filter, where each of the k hashes addresses a
// uniformly random bit, Filter takes its hashes in pairs and confines the
// second hash of each pair to a narrow window picked by the first
// ("locality bunching"). That trades a
// theoretically optimal false-positive rate for far fewer last-level
// cache misses per lookup, since a key's bits land in the same or an
// adjacent cache line instead of scattered across the whole array.
package bloomshard

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/grayprod/ssp-sieve/internal/bitset"
)

// localWindowBits is the base-2 log of the window width: once a hash has
// picked a neighborhood, the key's next hash is confined to the aligned
// 2^localWindowBits = 256-bit window containing it.
const localWindowBits = 8

// localWindowMask masks an index down to its offset within the window.
const localWindowMask = (1 << localWindowBits) - 1

// localIndexes is the number of hashes (including the first) that stay
// within the same 256-bit window before a key's next hash is free to land
// anywhere in the filter again.
const localIndexes = 2

// Filter is a concurrent, fixed-size Bloom filter over uint64 keys. The
// zero value is not usable; construct with New or NewOnNode.
type Filter struct {
	bits   *bitset.BitArray
	seeds  []uint64
	mask   uint64
	hashes int
}

// New constructs a Filter able to hold approximately nbits bits of state
// and nhashes hash functions. nbits is rounded up to the next power of
// two, matching the masking scheme bitSelector needs to stay a cheap AND
// instead of a modulo.
func New(nbits uint64, nhashes int) *Filter {
	return newFilter(bitset.New(roundUpPow2(nbits)), nhashes, roundUpPow2(nbits)-1)
}

// NewOnNode behaves like New but places the backing bit array's pages on
// the given NUMA node where the platform supports it.
func NewOnNode(nbits uint64, nhashes int, node int) (*Filter, error) {
	size := roundUpPow2(nbits)
	b, err := bitset.NewOnNode(size, node)
	if err != nil {
		return nil, fmt.Errorf("bloomshard: %w", err)
	}
	return newFilter(b, nhashes, size-1), nil
}

func newFilter(b *bitset.BitArray, nhashes int, mask uint64) *Filter {
	if nhashes < 1 {
		nhashes = 1
	}
	seeds := make([]uint64, nhashes)
	for i := range seeds {
		// Fixed, distinct seeds keep two Filters built with the same
		// (size, nhashes) pair structurally identical, which CrossOr
		// below requires.
		seeds[i] = xxhash.Sum64String(fmt.Sprintf("bloomshard-seed-%d", i))
	}
	return &Filter{bits: b, seeds: seeds, mask: mask, hashes: nhashes}
}

func roundUpPow2(n uint64) uint64 {
	if n < 1 {
		n = 1
	}
	shift := bits.Len64(n) - 1
	if uint64(1)<<shift < n {
		shift++
	}
	return uint64(1) << shift
}

// bitSelector yields the k bit indexes a key maps to, bunching each run of
// localIndexes of them into the same 256-bit neighborhood of the array. It is the Go counterpart of the per-key hash-index iterator
// the filter's locality scheme is built around.
type bitSelector struct {
	f        *Filter
	key      uint64
	i        int
	locality uint64
	haveLoc  bool
	local    int
}

func (f *Filter) selector(key uint64) *bitSelector {
	return &bitSelector{f: f, key: key}
}

func (s *bitSelector) next() (uint64, bool) {
	if s.i >= len(s.f.seeds) {
		return 0, false
	}

	h := hashWithSeed(s.key, s.f.seeds[s.i])
	s.i++

	var offset, mask uint64
	if s.haveLoc {
		offset, mask = s.locality, localWindowMask
	} else {
		offset, mask = 0, s.f.mask
	}

	index := (h & mask) + offset

	s.local++
	if s.local >= localIndexes {
		s.haveLoc = false
		s.local = 0
	} else {
		s.locality = index &^ localWindowMask
		s.haveLoc = true
	}

	return index & s.f.mask, true
}

// hashWithSeed mixes seed into key and returns a 64-bit digest. xxhash's
// Sum64 over an 8-byte little-endian encoding of key^seed stands in for
// the per-instance RandomState hasher the filter's hash functions used to
// be seeded from.
func hashWithSeed(key, seed uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key^seed)
	return xxhash.Sum64(buf[:])
}

// Put inserts key into f.
func (f *Filter) Put(key uint64) {
	s := f.selector(key)
	for {
		idx, ok := s.next()
		if !ok {
			return
		}
		f.bits.Set(idx)
	}
}

// MaybePresent reports whether key may have been inserted into f. A false
// result is certain; a true result may be a false positive.
func (f *Filter) MaybePresent(key uint64) bool {
	s := f.selector(key)
	for {
		idx, ok := s.next()
		if !ok {
			return true
		}
		if !f.bits.Test(idx) {
			return false
		}
	}
}

// CrossOr merges f and g in place: afterwards both hold the union of
// their prior contents. f and g must have been built with the same size
// and hash count.
func (f *Filter) CrossOr(g *Filter) error {
	if f.mask != g.mask {
		return fmt.Errorf("bloomshard: cross-or size mismatch: mask %#x vs %#x", f.mask, g.mask)
	}
	if f.hashes != g.hashes {
		return fmt.Errorf("bloomshard: cross-or hash-count mismatch: %d vs %d", f.hashes, g.hashes)
	}
	return bitset.CrossOr(f.bits, g.bits)
}

// Len returns the number of bits backing the filter.
func (f *Filter) Len() uint64 { return f.mask + 1 }
