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

// Package numapool runs closures against a small number of long-lived,
// per-NUMA-node contexts, pinning one worker goroutine per CPU so that a
// context built "on" a node is only ever touched by workers running on
// that node.
//
// Two constructors are exposed: New builds the simple variant, a single
// context shared by runtime.NumCPU() unpinned workers; NewNUMA builds the
// NUMA-aware variant, discovering nodes and CPU masks and pinning one
// worker per CPU to its node's context.
package numapool

import (
	"sync"
)

// Task is a unit of work a Pool runs against one node's context.
type Task[C any] func(ctx *C)

// Result pairs a node id with the context that accumulated work done on
// that node, returned by Join.
type Result[C any] struct {
	NodeID  int
	Context C
}

type nodeSpec struct {
	id   int
	cpus []int
}

type nodeInfo[C any] struct {
	id      int
	cpus    []int
	context *C
}

// workItem is either a task to run, or the join sentinel.
type workItem[C any] struct {
	task Task[C]
	join bool
}

// queue is the MPMC work queue shared by every worker in a Pool. The
// join sentinel is re-pushed to the head by each worker that dequeues it,
// so that every worker observes termination exactly once; the sentinel
// stays in the queue after the last worker exits.
type queue[C any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []workItem[C]
}

func newQueue[C any]() *queue[C] {
	q := &queue[C]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue[C]) push(item workItem[C]) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *queue[C]) pop() workItem[C] {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		q.cond.Wait()
	}

	item := q.items[0]
	q.items = q.items[1:]

	if item.join {
		q.items = append([]workItem[C]{item}, q.items...)
		q.cond.Signal()
	}

	return item
}

// Pool distributes tasks across pinned workers that each operate on one
// node's context.
type Pool[C any] struct {
	nodes []*nodeInfo[C]
	q     *queue[C]
	wg    sync.WaitGroup
}

// New builds the simple variant: a single context built by calling
// ctor(0), shared by workers that are not pinned to any particular CPU.
func New[C any](ctor func(node int) C) *Pool[C] {
	return newPool([]nodeSpec{{id: 0, cpus: sequentialCPUs()}}, ctor, false)
}

// NewNUMA builds the NUMA-aware variant. It discovers nodes and their CPU
// masks (via sysfs on Linux) and constructs one context per node by
// calling ctor(nodeID); one worker is spawned per CPU, pinned to that
// CPU, and routed to its node's context. On platforms without NUMA
// discovery, or if sysfs can't be read, it transparently falls back to
// the single-node shape New builds.
func NewNUMA[C any](ctor func(node int) C) *Pool[C] {
	specs := discoverNodes()
	return newPool(specs, ctor, true)
}

func newPool[C any](specs []nodeSpec, ctor func(node int) C, pinned bool) *Pool[C] {
	p := &Pool[C]{q: newQueue[C]()}

	for _, spec := range specs {
		ctx := ctor(spec.id)
		p.nodes = append(p.nodes, &nodeInfo[C]{id: spec.id, cpus: spec.cpus, context: &ctx})
	}

	for _, node := range p.nodes {
		for _, cpu := range node.cpus {
			p.wg.Add(1)
			node, cpu := node, cpu
			go func() {
				defer p.wg.Done()
				if pinned {
					pinToCPU(cpu)
				}
				worker(node, p.q)
			}()
		}
	}

	return p
}

func worker[C any](node *nodeInfo[C], q *queue[C]) {
	for {
		item := q.pop()
		if item.join {
			return
		}
		item.task(node.context)
	}
}

// Execute enqueues task to run on whichever worker dequeues it next.
func (p *Pool[C]) Execute(task Task[C]) {
	p.q.push(workItem[C]{task: task})
}

// Join pushes the termination sentinel, waits for every worker to exit,
// and returns each node's final context.
func (p *Pool[C]) Join() []Result[C] {
	p.q.push(workItem[C]{join: true})
	p.wg.Wait()

	results := make([]Result[C], len(p.nodes))
	for i, n := range p.nodes {
		results[i] = Result[C]{NodeID: n.id, Context: *n.context}
	}
	return results
}
