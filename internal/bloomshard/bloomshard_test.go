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

package bloomshard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoFalseNegative(t *testing.T) {
	f := New(1<<10, 2)

	for i := uint64(0); i < 16; i++ {
		f.Put(i)
	}
	for i := uint64(0); i < 16; i++ {
		assert.True(t, f.MaybePresent(i))
	}
}

// TestFalsePositiveRateInBounds checks that a filter of size 8192 with
// k=4, loaded with items 0..1024 and probed against 10000..200000, has
// an empirical false-positive rate in [0.02, 0.028] — the same band a
// textbook (non-bunched) k=4 filter at this load factor would produce.
// Locality bunching only correlates the positions within each pair of
// hashes sharing a 256-bit window; at this size and load the
// collision probability inside a 256-bit window is low enough that the
// measured rate still lands in the classic band, with margin tight
// enough to catch a broken hash or indexing scheme.
func TestFalsePositiveRateInBounds(t *testing.T) {
	f := New(1<<13, 4)

	for i := uint64(0); i < 1024; i++ {
		f.Put(i)
	}
	for i := uint64(0); i < 1024; i++ {
		require.True(t, f.MaybePresent(i))
	}

	var falsePositives, total int
	for i := uint64(10000); i < 200000; i++ {
		if f.MaybePresent(i) {
			falsePositives++
		}
		total++
	}

	rate := float64(falsePositives) / float64(total)
	assert.GreaterOrEqualf(t, rate, 0.02, "rate=%f", rate)
	assert.LessOrEqualf(t, rate, 0.028, "rate=%f", rate)
}

func TestCrossOrUnion(t *testing.T) {
	a := New(1<<12, 2)
	b := New(1<<12, 2)

	for i := uint64(0); i < 64; i++ {
		a.Put(i)
	}
	for i := uint64(1000); i < 1064; i++ {
		b.Put(i)
	}

	require.NoError(t, a.CrossOr(b))

	for i := uint64(0); i < 64; i++ {
		assert.True(t, a.MaybePresent(i))
		assert.True(t, b.MaybePresent(i))
	}
	for i := uint64(1000); i < 1064; i++ {
		assert.True(t, a.MaybePresent(i))
		assert.True(t, b.MaybePresent(i))
	}
}

func TestCrossOrMismatch(t *testing.T) {
	a := New(1<<12, 2)
	b := New(1<<13, 2)
	assert.Error(t, a.CrossOr(b))

	c := New(1<<12, 3)
	assert.Error(t, a.CrossOr(c))
}

func TestRoundUpPow2(t *testing.T) {
	assert.Equal(t, uint64(1), roundUpPow2(0))
	assert.Equal(t, uint64(1024), roundUpPow2(1000))
	assert.Equal(t, uint64(1024), roundUpPow2(1024))
	assert.Equal(t, uint64(2048), roundUpPow2(1025))
}
