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

// Package progress reports throughput for long-running phases of the
// sieve. Many goroutines each hold a Handle and batch their increments
// locally before flushing to the shared Reporter, so the hot path never
// contends on a shared counter more often than the adaptive interval
// calls for.
package progress

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Reporter tracks progress toward a known total amount of work and
// prints periodic rate estimates. The zero value is not usable;
// construct with New.
type Reporter struct {
	desc      string
	start     time.Time
	interval  atomic.Uint64
	counter   atomic.Uint64
	total     uint64
	closeOnce func()
}

// New returns a Reporter for a phase named desc expected to process total
// units of work.
func New(desc string, total uint64) *Reporter {
	r := &Reporter{desc: desc, start: time.Now(), total: total}
	r.interval.Store(1000)
	return r
}

// Close prints a final summary line. Callers invoke it when the phase
// completes; it is not automatic, since Go has no Drop.
func (r *Reporter) Close() {
	fmt.Printf("[%s] completed %d in %s\n", r.desc, r.counter.Load(), time.Since(r.start))
}

// Handle is a per-goroutine progress writer obtained from a Reporter.
// Handles are not safe for concurrent use by multiple goroutines; each
// goroutine doing work should hold its own.
type Handle struct {
	reporter   *Reporter
	lastReport time.Time
	interval   uint64
	local      uint64
}

// Handle returns a new per-goroutine Handle reporting into r.
func (r *Reporter) Handle() *Handle {
	return &Handle{reporter: r, lastReport: time.Now(), interval: 10000}
}

// Report adds increment units of completed work to the handle's local
// count, flushing to the shared Reporter (and possibly printing a rate
// update) once the local count clears the handle's adaptive interval.
func (h *Handle) Report(increment uint64) {
	h.local += increment
	if h.local >= h.interval {
		h.push()
	}
}

// Close flushes any remaining local count. Callers must call Close when
// they stop using a Handle, or its last increments are lost.
func (h *Handle) Close() {
	h.reporter.reportUp(h.local)
	h.local = 0
}

// push flushes the handle's local count and re-targets its reporting
// interval so that, at the observed flush rate, the next flush lands
// roughly one second later: fast enough to feel live, slow enough not to
// dominate the work it's measuring. Each retarget scales the interval by
// at most a factor of four up or down.
func (h *Handle) push() {
	elapsedMs := uint64(time.Since(h.lastReport).Milliseconds())
	if elapsedMs == 0 {
		elapsedMs = 1
	}

	ratio := 1000.0 / float64(elapsedMs)
	if ratio < 0.25 {
		ratio = 0.25
	} else if ratio > 4.0 {
		ratio = 4.0
	}

	h.interval = uint64(float64(h.interval) * ratio)
	if h.interval == 0 {
		h.interval = 1
	}

	h.reporter.reportUp(h.local)
	h.local = 0
	h.lastReport = time.Now()
}

// reportUp adds count to the reporter's shared counter and, if the
// addition crosses a multiple of the current display interval, prints a
// rate update and retunes that interval for next time.
func (r *Reporter) reportUp(count uint64) {
	interval := r.interval.Load()
	if interval == 0 {
		interval = 1
	}
	prior := r.counter.Add(count) - count

	if prior/interval != (prior+count)/interval {
		r.display(interval)
	}
}

func (r *Reporter) display(oldInterval uint64) {
	cur := r.counter.Load()
	elapsedMs := uint64(time.Since(r.start).Milliseconds())
	if elapsedMs == 0 {
		elapsedMs = 1
	}
	rate := float64(cur) / float64(elapsedMs) * 1000.0

	newInterval := uint64(rate)
	if newInterval > oldInterval*4 {
		newInterval = oldInterval * 4
	}
	if newInterval < 100 {
		newInterval = 100
	}

	r.interval.CompareAndSwap(oldInterval, newInterval)

	remain := "unknown"
	if rate > 0 && r.total > cur {
		remain = fmt.Sprintf("%.1fs", float64(r.total-cur)/rate)
	}
	fmt.Printf("[%s] %d (%.1f/s, %s remain)\n", r.desc, cur, rate, remain)
}
