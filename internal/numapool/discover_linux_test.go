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

//go:build linux

package numapool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCPUList(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3}, parseCPUList("0-3"))
	assert.Equal(t, []int{0, 1, 2, 3, 8, 12, 13, 14, 15}, parseCPUList("0-3,8,12-15"))
	assert.Nil(t, parseCPUList(""))
	assert.Equal(t, []int{5}, parseCPUList("5"))
}

func TestDiscoverNodesNeverEmpty(t *testing.T) {
	specs := discoverNodes()
	assert.NotEmpty(t, specs)
	for _, s := range specs {
		assert.NotEmpty(t, s.cpus)
	}
}
