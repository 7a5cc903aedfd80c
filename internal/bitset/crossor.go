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

package bitset

import (
	"fmt"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"
)

// unrollNarrow and unrollWide are how many uint64 words cross-OR
// processes per loop iteration. Wider unrolling pays off on CPUs with deep out-of-order
// execution windows and 256-bit+ SIMD, which cpuid.CPU reports; on
// narrower cores the extra unrolling is harmless but doesn't help, so
// the two paths are split only where it's measurably worth it.
const (
	unrollNarrow = 4
	unrollWide   = 8
)

// stripeWords caps the amount of work (in 64-bit words) handed to a
// single goroutine, matching the original's 128MiB job-size chunking for
// cross_or so the merge parallelizes across many small jobs instead of
// running one goroutine per CPU on giant spans.
const stripeWords = (128 << 20) / 8

// CrossOr merges a and b in place: afterwards both contain the bitwise OR
// of their prior contents. a and b must have the same length. Equal
// length stripes are processed concurrently; cpuid.CPU decides the
// per-goroutine word-unrolling factor once, up front.
func CrossOr(a, b *BitArray) error {
	if a.nbits != b.nbits {
		return fmt.Errorf("bitset: cross-or length mismatch: %d vs %d", a.nbits, b.nbits)
	}

	aw, bw := a.words64(), b.words64()
	unroll := unrollNarrow
	if cpuid.CPU.Has(cpuid.AVX2) || cpuid.CPU.Has(cpuid.AVX512F) {
		unroll = unrollWide
	}

	var g errgroup.Group
	for off := 0; off < len(aw); off += stripeWords {
		end := off + stripeWords
		if end > len(aw) {
			end = len(aw)
		}
		off, end := off, end
		g.Go(func() error {
			crossOrStripe(aw[off:end], bw[off:end], unroll)
			return nil
		})
	}
	return g.Wait()
}

// crossOrStripe ORs aw[i] and bw[i] pairwise, storing the union back into
// both, unroll words at a time.
func crossOrStripe(aw, bw []atomic.Uint64, unroll int) {
	n := len(aw)
	i := 0
	for ; i+unroll <= n; i += unroll {
		for j := 0; j < unroll; j++ {
			orPair(&aw[i+j], &bw[i+j])
		}
	}
	for ; i < n; i++ {
		orPair(&aw[i], &bw[i])
	}
}

// orPair computes val := a|b once (a single relaxed load from each side)
// and stores it back into both, so callers don't pay for two loads per
// side under contention.
func orPair(a, b *atomic.Uint64) {
	val := a.Load() | b.Load()
	a.Store(val)
	b.Store(val)
}
