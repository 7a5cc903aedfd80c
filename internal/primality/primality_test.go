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

package primality

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeMultiplyMatchesSequential(t *testing.T) {
	factors := []*big.Int{
		big.NewInt(2), big.NewInt(3), big.NewInt(5), big.NewInt(7),
		big.NewInt(11), big.NewInt(13), big.NewInt(17),
	}

	want := big.NewInt(1)
	for _, f := range factors {
		want.Mul(want, f)
	}

	got := treeMultiply(factors)
	assert.Equal(t, 0, want.Cmp(got))
}

func TestTreeMultiplyEmpty(t *testing.T) {
	got := treeMultiply(nil)
	assert.Equal(t, 0, big.NewInt(1).Cmp(got))
}

// TestMulRoutesThroughBigfftAboveCrossover forces mul's combined operand
// size past bigfftCrossoverBits so the bigfft.Mul branch actually runs,
// and checks its result against math/big's own multiply.
func TestMulRoutesThroughBigfftAboveCrossover(t *testing.T) {
	a := new(big.Int).Lsh(big.NewInt(1), 1200)
	a.Sub(a, big.NewInt(1))
	b := new(big.Int).Lsh(big.NewInt(1), 1100)
	b.Sub(b, big.NewInt(3))

	require.GreaterOrEqual(t, a.BitLen()+b.BitLen(), bigfftCrossoverBits)

	want := new(big.Int).Mul(a, b)
	got := mul(a, b)
	assert.Equal(t, 0, want.Cmp(got))
}

func TestCheckPrimeBelowMinNRejected(t *testing.T) {
	// No T1/T2 bits set: candidate is 2+1=3, far below DefaultMinN.
	_, ok := CheckPrime([]uint64{5, 7}, []uint64{11, 13}, 0, 0, DefaultMinN)
	assert.False(t, ok)
}

func TestCheckPrimeReconstructsFactors(t *testing.T) {
	t1 := []uint64{1000003, 1000033}
	t2 := []uint64{1000037, 1000537}

	// A minN of 1 only gates ProbablyPrime, not size, so this exercises
	// true-positive reconstruction without needing a 2^512-scale product.
	got, ok := CheckPrime(t1, t2, 0b11, 0b11, big.NewInt(1))
	require.True(t, !ok || len(got.Factors) == 5)

	if ok {
		product := big.NewInt(1)
		for _, f := range got.Factors {
			product.Mul(product, f)
		}
		want := new(big.Int).Add(product, big.NewInt(1))
		assert.Equal(t, 0, want.Cmp(got.Value))
	}
}

func TestValuesToMultiplySelectsMaskedElements(t *testing.T) {
	t1 := []uint64{11, 13, 17}
	t2 := []uint64{19, 23, 29}

	vals := valuesToMultiply(t1, t2, 0b101, 0b010)
	// 2, then t1[0]=11 and t1[2]=17, then t2[1]=23.
	require.Len(t, vals, 4)
	assert.Equal(t, int64(2), vals[0].Int64())
	assert.Equal(t, int64(11), vals[1].Int64())
	assert.Equal(t, int64(17), vals[2].Int64())
	assert.Equal(t, int64(23), vals[3].Int64())
}
