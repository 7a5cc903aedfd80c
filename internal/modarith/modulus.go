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

// Package modarith provides modular arithmetic over u64 residues, either
// for an arbitrary modulus or for the one fixed 64-bit modulus this sieve
// is tuned for.
package modarith

import (
	"fmt"
	"math/big"
	"math/bits"
)

// A Modulus performs add, multiply and inverse over residues modulo some
// fixed value. Implementations must guarantee that Mulmod and Addmod of
// any two operands below the modulus return a result below the modulus.
type Modulus interface {
	Addmod(a, b uint64) uint64
	Mulmod(a, b uint64) uint64
	Inverse(v uint64) (uint64, bool)
}

// BasicDivisor is a Modulus implementation for an arbitrary modulus,
// using a 128-bit modulo for each multiply. It exists for portability and
// for cross-validating FixedM in tests; the sieve itself runs under FixedM.
type BasicDivisor struct {
	m uint64
}

// NewBasicDivisor returns a Modulus for the given modulus.
func NewBasicDivisor(m uint64) BasicDivisor {
	return BasicDivisor{m: m}
}

// Addmod returns (a+b) mod m.
func (d BasicDivisor) Addmod(a, b uint64) uint64 {
	return addmod(a, b, d.m)
}

// addmod computes (a+b) mod m for a, b < m, where m may be close enough to
// 2^64 that a+b overflows a uint64 (M itself is ~1.19e19, so two residues
// below M can sum past 2^64-1). bits.Add64 carries the overflow bit
// explicitly instead of silently wrapping.
func addmod(a, b, m uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		// True sum is sum+2^64, which is < 2m since a,b < m; one
		// subtraction of m (performed in the wrapped domain) suffices.
		return sum - m
	}
	if sum >= m {
		sum -= m
	}
	return sum
}

// Mulmod returns (a*b) mod m.
func (d BasicDivisor) Mulmod(a, b uint64) uint64 {
	hi, lo := mul64(a, b)
	_, rem := div128by64(hi, lo, d.m)
	return rem
}

// Inverse returns w such that w*v ≡ 1 (mod m), if it exists.
func (d BasicDivisor) Inverse(v uint64) (uint64, bool) {
	return modInverse(v, d.m)
}

// Inverses returns the elementwise modular inverse of xs under m. It
// panics if any element has no inverse, matching the fatal-precondition
// error taxonomy for arithmetic impossibilities.
func Inverses(m Modulus, xs []uint64) []uint64 {
	ys := make([]uint64, len(xs))
	for i, x := range xs {
		inv, ok := m.Inverse(x)
		if !ok {
			panic(fmt.Sprintf("modarith: no inverse for %d", x))
		}
		ys[i] = inv
	}
	return ys
}

// modInverse computes the modular inverse of v modulo m. M is close to
// 2^64, so the extended-Euclid bookkeeping needs more than int64 range;
// math/big.Int.ModInverse is the stdlib equivalent of the signed-128-bit
// extended Euclidean algorithm the original ran via its modinverse crate.
func modInverse(v, m uint64) (uint64, bool) {
	if m == 0 {
		return 0, false
	}

	vBig := new(big.Int).SetUint64(v % m)
	mBig := new(big.Int).SetUint64(m)

	inv := new(big.Int).ModInverse(vBig, mBig)
	if inv == nil {
		return 0, false // gcd(v, m) != 1: no inverse
	}
	return inv.Uint64(), true
}
