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

package candset

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayprod/ssp-sieve/internal/modarith"
)

func TestRHasExactly64Elements(t *testing.T) {
	require.Len(t, R, 64)
	require.Len(t, T1, 32)
	require.Len(t, T2, 32)
}

func TestRElementsAreDistinctAndInRange(t *testing.T) {
	seen := make(map[uint64]bool)
	for _, r := range R {
		assert.False(t, seen[r], "duplicate element %d", r)
		seen[r] = true
		assert.GreaterOrEqual(t, r, MinR)
		assert.LessOrEqual(t, r, MaxR)
	}
}

func TestREveryElementDividesMMinusOne(t *testing.T) {
	m := new(big.Int).SetUint64(modarith.M)
	for _, r := range R {
		rMinus1 := new(big.Int).SetUint64(r - 1)
		rem := new(big.Int).Mod(m, rMinus1)
		assert.Zerof(t, rem.Sign(), "r=%d does not have r-1 dividing M", r)
	}
}

func TestREveryElementIsPrime(t *testing.T) {
	for _, r := range R {
		assert.True(t, new(big.Int).SetUint64(r).ProbablyPrime(15), "r=%d not prime", r)
	}
}

func TestT1T2InverseAreTrueInverses(t *testing.T) {
	m := modarith.FixedM{}
	for i, v := range T1 {
		assert.Equal(t, uint64(1), m.Mulmod(v, T1Inverse[i]))
	}
	for i, v := range T2 {
		assert.Equal(t, uint64(1), m.Mulmod(v, T2Inverse[i]))
	}
}

func TestCheckDivisorRejectsOutOfRange(t *testing.T) {
	assert.False(t, CheckDivisor(1))
	assert.False(t, CheckDivisor(MaxR+2))
}

func TestCheckDivisorRejectsNonPrime(t *testing.T) {
	assert.False(t, CheckDivisor(341)) // 341 = 11*31
}
