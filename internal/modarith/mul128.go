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

package modarith

import "math/bits"

// mul64 returns the 128-bit product a*b as (hi, lo). This is the portable
// equivalent of the original's hand-written x86-64 `mulq`; math/bits emits
// the same MULQ instruction on amd64/arm64 when inlined.
func mul64(a, b uint64) (hi, lo uint64) {
	return bits.Mul64(a, b)
}

// div128by64 divides the 128-bit value (hi, lo) by d, returning quotient
// and remainder. It panics on overflow (quotient would not fit in 64
// bits), which cannot happen here because callers only ever divide by a
// modulus larger than hi.
func div128by64(hi, lo, d uint64) (q, rem uint64) {
	return bits.Div64(hi, lo, d)
}
