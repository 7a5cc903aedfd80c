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

// Package grayprod enumerates modular subset products of a fixed element
// set in Gray-code order, so each step costs one mulmod instead of
// recomputing the whole product from scratch.
package grayprod

import (
	"math/bits"

	"github.com/grayprod/ssp-sieve/internal/modarith"
)

// ProductSet holds the elements a subset product is taken over, plus their
// precomputed modular inverses (needed to "remove" an element when a
// Gray-code step clears its bit).
type ProductSet struct {
	elems   []uint64
	inverse []uint64
	modulus modarith.Modulus
}

// NewProductSet builds a ProductSet over elems under modulus. It panics if
// any element has no inverse under modulus, since Gray-code stepping must
// be able to divide an element back out.
func NewProductSet(elems []uint64, modulus modarith.Modulus) *ProductSet {
	inv := modarith.Inverses(modulus, elems)
	cp := make([]uint64, len(elems))
	copy(cp, elems)
	return &ProductSet{elems: cp, inverse: inv, modulus: modulus}
}

// Len returns the number of elements in the set.
func (ps *ProductSet) Len() int { return len(ps.elems) }

// toGray converts a binary index to its Gray codeword.
func toGray(v uint64) uint64 {
	return v ^ (v >> 1)
}

// subsetProd computes the subset product directly from the mask v, taking
// elems[i] into the product when bit i of v is set. Used only to seed a
// Product at an arbitrary start index; each step thereafter is one mulmod.
func subsetProd(v uint64, ps *ProductSet) uint64 {
	accum := uint64(1)
	for i, e := range ps.elems {
		if v&(1<<uint(i)) != 0 {
			accum = ps.modulus.Mulmod(accum, e)
		}
	}
	return accum
}

// Product walks the subset products of a ProductSet over a contiguous range
// of Gray-code indices, advancing one index (and one mulmod) per call to
// Next.
type Product struct {
	set       *ProductSet
	index     uint64
	end       uint64
	val       uint64
	exhausted bool
}

// NewProduct returns a Product walking codeword indices [start, end) of ps.
// start and end are binary indices into the codeword sequence, not
// codewords themselves. It panics if start > end, if the set has 64 or
// more elements (the full subset space would need end = 2^64, which
// doesn't fit in a uint64 index), or if end exceeds 2^len(elems).
func NewProduct(ps *ProductSet, start, end uint64) *Product {
	if start > end {
		panic("grayprod: start > end")
	}
	if ps.Len() >= 64 {
		panic("grayprod: product set too large for a 64-bit index space")
	}
	if end > uint64(1)<<uint(ps.Len()) {
		panic("grayprod: end exceeds 2^len(elems)")
	}
	if start == end {
		return &Product{set: ps, index: start, end: end, exhausted: true}
	}

	val := subsetProd(toGray(start), ps)
	return &Product{set: ps, index: start, end: end, val: val}
}

// Next returns the next (gray codeword, subset product) pair and advances
// the iterator. The second return value is false once the range is
// exhausted.
func (p *Product) Next() (codeword, value uint64, ok bool) {
	if p.exhausted {
		return 0, 0, false
	}

	curGray := toGray(p.index)
	curVal := p.val

	nextIndex := p.index + 1
	if nextIndex >= p.end {
		p.exhausted = true
		return curGray, curVal, true
	}

	nextGray := toGray(nextIndex)
	diff := curGray ^ nextGray
	bit := 63 - bits.LeadingZeros64(diff)

	var twiddle uint64
	if nextGray&diff != 0 {
		// Bit flipped 0 -> 1: bring the element into the product.
		twiddle = p.set.elems[bit]
	} else {
		// Bit flipped 1 -> 0: divide the element back out.
		twiddle = p.set.inverse[bit]
	}

	p.val = p.set.modulus.Mulmod(curVal, twiddle)
	p.index = nextIndex

	return curGray, curVal, true
}
