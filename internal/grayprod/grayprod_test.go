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

package grayprod

import (
	"math/bits"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayprod/ssp-sieve/internal/modarith"
)

type pair struct {
	codeword uint64
	value    uint64
}

// referenceRange recomputes every subset product in [start, end) directly
// from the mask, independent of the Gray-code stepping under test.
func referenceRange(ps *ProductSet, start, end uint64) []pair {
	out := make([]pair, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, pair{i, subsetProd(i, ps)})
	}
	return out
}

func collect(p *Product) []pair {
	var out []pair
	for {
		cw, v, ok := p.Next()
		if !ok {
			break
		}
		out = append(out, pair{cw, v})
	}
	return out
}

func sortByCodeword(ps []pair) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].codeword < ps[j].codeword })
}

func testElems(n int) []uint64 {
	r := rand.New(rand.NewSource(42))
	elems := make([]uint64, n)
	for i := range elems {
		// Redraw until the element has an inverse under the fixed modulus,
		// since NewProductSet panics on an element with none.
		for {
			v := r.Uint64() % modarith.M
			if _, ok := (modarith.FixedM{}).Inverse(v); ok {
				elems[i] = v
				break
			}
		}
	}
	return elems
}

func TestProductMatchesReferenceAndGrayAdjacency(t *testing.T) {
	m := modarith.FixedM{}
	ps := NewProductSet(testElems(6), m)

	gray := collect(NewProduct(ps, 0, 0x10))
	require.Len(t, gray, 0x10)

	for i := 0; i < len(gray)-1; i++ {
		diff := gray[i].codeword ^ gray[i+1].codeword
		assert.Equalf(t, 1, bits.OnesCount64(diff), "adjacent codewords %d differ by %d bits", i, bits.OnesCount64(diff))
	}

	sortByCodeword(gray)
	reference := referenceRange(ps, 0, 0x10)
	sortByCodeword(reference)
	assert.Equal(t, reference, gray)
}

func TestProductCustomRange(t *testing.T) {
	m := modarith.FixedM{}
	ps := NewProductSet(testElems(20), m)

	p := NewProduct(ps, 0x1000, 0x1200)
	got := collect(p)
	assert.Len(t, got, 0x200)

	for _, pr := range got {
		assert.Equal(t, subsetProd(pr.codeword, ps), pr.value)
	}
}

func TestProductEmptyRange(t *testing.T) {
	m := modarith.FixedM{}
	ps := NewProductSet(testElems(4), m)

	p := NewProduct(ps, 5, 5)
	_, _, ok := p.Next()
	assert.False(t, ok)
}

func TestProductPanicsOnOversizedSet(t *testing.T) {
	m := modarith.FixedM{}
	ps := NewProductSet(testElems(64), m)

	assert.Panics(t, func() {
		NewProduct(ps, 0, 1)
	})
}
