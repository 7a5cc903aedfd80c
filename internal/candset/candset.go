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

// Package candset derives the fixed candidate set R: the 64 odd primes r
// such that r-1 divides the sieve's modulus M, r falls in (MinR, MaxR),
// and r matches a fixed table of Jacobi-symbol residues. R splits into
// two halves, T1 and T2, that the rest of the sieve takes subset products
// over.
package candset

import (
	"fmt"
	"math/big"

	"github.com/grayprod/ssp-sieve/internal/modarith"
)

// MinR and MaxR bound the admissible candidates: 256 < r < 2^60.
const (
	MinR uint64 = 256
	MaxR uint64 = 1152921504606846976
)

// legendrePair is one (base, expected Jacobi symbol) constraint a
// candidate r must satisfy.
type legendrePair struct {
	base  int64
	coeff int
}

// legendreTable is the fixed set of Jacobi-symbol constraints a member of
// R must satisfy against every listed base.
var legendreTable = []legendrePair{
	{2, -1}, {3, 1}, {5, 1}, {7, -1}, {11, -1}, {13, 1}, {17, 1},
	{19, -1}, {23, -1}, {29, 1}, {31, -1}, {37, 1}, {41, 1},
}

// oddPrimeFactors lists the nine odd primes that divide M exactly once;
// the subset-product search below takes subsets of them. 5, 7 and 11,
// which divide M to higher powers, are covered by primePowerChoices.
var oddPrimeFactors = []uint64{13, 17, 19, 23, 29, 31, 37, 41, 61}

// primePowerChoices enumerates the prime-power combinations of 5, 7 and
// 11 dividing M (5^0..5^3, 7^0..7^2, 11^0..11^2).
func primePowerChoices() []uint64 {
	fives := []uint64{1, 5, 25, 125}
	sevens := []uint64{1, 7, 49}
	elevens := []uint64{1, 11, 121}

	out := make([]uint64, 0, len(fives)*len(sevens)*len(elevens))
	for _, f := range fives {
		for _, s := range sevens {
			for _, e := range elevens {
				out = append(out, f*s*e)
			}
		}
	}
	return out
}

// R is the 64-element candidate set, built once and reused by every
// caller. Building it is cheap relative to the sieve proper (about
// eighteen thousand candidate checks, not the 2^64-scale subset-product
// search),
// so it runs eagerly at package init rather than being memoized lazily.
var R = buildR()

// T1 and T2 are the two halves of R the gray-code enumerators run over.
var (
	T1 = append([]uint64(nil), R[0:32]...)
	T2 = append([]uint64(nil), R[32:64]...)
)

// T1Inverse and T2Inverse are the modular inverses of T1 and T2 under the
// fixed modulus, used to seed Phase T1's gray-code walk over
// subset-product reciprocals instead of the products themselves.
var (
	T1Inverse = modarith.Inverses(modarith.FixedM{}, T1)
	T2Inverse = modarith.Inverses(modarith.FixedM{}, T2)
)

// buildR enumerates every candidate built from a non-empty subset of
// oddPrimeFactors and a prime-power choice, keeping the ones that pass
// CheckDivisor, and expects exactly 64 to survive (the count the
// underlying number-theoretic argument guarantees). It panics if the
// full search yields any other count, which would indicate the fixed
// modulus M no longer matches its intended factorization.
func buildR() []uint64 {
	primePowers := primePowerChoices()
	n := len(oddPrimeFactors)

	seen := make(map[uint64]bool)
	var results []uint64

	for mask := uint64(1); mask < uint64(1)<<uint(n); mask++ {
		primeSsp := uint64(1)
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				primeSsp *= oddPrimeFactors[i]
			}
		}

		for _, pp := range primePowers {
			candidate := 2*pp*primeSsp + 1
			if !CheckDivisor(candidate) {
				continue
			}
			if seen[candidate] {
				continue
			}
			seen[candidate] = true
			results = append(results, candidate)
		}
	}

	if len(results) != 64 {
		panic(fmt.Sprintf("candset: expected 64 candidates, found %d", len(results)))
	}
	return results
}

// CheckDivisor reports whether r qualifies for membership in R: it lies
// strictly between MinR and MaxR, is a probable prime, and matches every
// constraint in legendreTable.
func CheckDivisor(r uint64) bool {
	if r <= MinR || r >= MaxR {
		return false
	}

	rBig := new(big.Int).SetUint64(r)
	if !rBig.ProbablyPrime(15) {
		return false
	}

	for _, pair := range legendreTable {
		base := big.NewInt(pair.base)
		if big.Jacobi(base, rBig) != pair.coeff {
			return false
		}
	}

	return true
}
