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

package numapool

import "golang.org/x/sync/errgroup"

// RunContextFree runs tasks with up to maxConcurrency active at a time,
// for work with no per-NUMA-node state to thread through (the final
// re-sieve phase re-derives everything it needs from its task range, so
// pinning it to a node-local context buys nothing). It returns the first
// error any task reports, after every task has finished running — tasks
// in flight are never interrupted mid-loop.
func RunContextFree(tasks []func() error, maxConcurrency int) error {
	var g errgroup.Group
	if maxConcurrency > 0 {
		g.SetLimit(maxConcurrency)
	}
	for _, task := range tasks {
		task := task
		g.Go(task)
	}
	return g.Wait()
}
