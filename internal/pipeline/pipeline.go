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

// Package pipeline wires the Gray-code subset-product enumerator, the
// sharded Bloom filter and the NUMA thread pool together into the
// sieve's three ordered phases: build a Bloom index over T1_INVERSE's
// subset products (Phase T1), probe it with T2's subset products to
// collect candidate matches (Phase T2), then re-walk T1_INVERSE to
// confirm each match and run the bignum primality test (Phase Final).
package pipeline

import (
	"fmt"
	"math/big"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/grayprod/ssp-sieve/internal/bloomshard"
	"github.com/grayprod/ssp-sieve/internal/grayprod"
	"github.com/grayprod/ssp-sieve/internal/modarith"
	"github.com/grayprod/ssp-sieve/internal/numapool"
	"github.com/grayprod/ssp-sieve/internal/primality"
	"github.com/grayprod/ssp-sieve/internal/progress"
)

// Default sizing for a full-scale run: a 2^39-bit (64GiB) Bloom filter
// with two hashes per insertion, work for each phase split into 2^16
// tasks so a task is small enough to load-balance well but large enough
// that per-task overhead stays negligible.
const (
	DefaultFilterBits   uint64 = 1 << 39
	DefaultFilterHashes        = 2
	DefaultTaskCount    uint64 = 1 << 16
)

// Config controls the size of a Run. The zero value is not usable;
// callers should start from DefaultConfig and override only what they
// need (tests shrink every field to keep a full pipeline run fast).
type Config struct {
	FilterBits   uint64
	FilterHashes int
	TaskCount    uint64
	Modulus      modarith.Modulus
	MinN         *big.Int
}

// DefaultConfig returns the full-scale sizing described by
// DefaultFilterBits, DefaultFilterHashes and DefaultTaskCount, running
// over the sieve's fixed modulus with primality.DefaultMinN as the
// reconstructed candidate's minimum size.
func DefaultConfig() Config {
	return Config{
		FilterBits:   DefaultFilterBits,
		FilterHashes: DefaultFilterHashes,
		TaskCount:    DefaultTaskCount,
		Modulus:      modarith.FixedM{},
		MinN:         primality.DefaultMinN,
	}
}

// Summary holds the confirmed pseudoprimes together with accounting about
// how many plausible matches along the way weren't: false positives from the
// Bloom filter's probabilistic Phase T2 stage (expected, and reconciled
// at the real subset-product granularity by Phase Final) are distinct
// from T3 misses (value matched exactly in Phase Final but the
// reconstructed n failed the size/primality check).
type Summary struct {
	Found         []*primality.Pseudoprime
	T2Matches     int
	T3Misses      int
	BloomFalsePos int
}

// Run executes all three phases in order over t1Inverse and t2 (typically
// candset.T1Inverse and candset.T2). Phase Final re-enumerates
// t1Inverse's subset products, the same domain Phase T1 built its Bloom
// index over, and uses t1Forward = candset.T1 only to reconstruct the
// un-inverted factors once a match is found. Run returns every confirmed
// pseudoprime found.
func Run(cfg Config, t1Inverse, t2, t1Forward []uint64) (*Summary, error) {
	filters, err := runBloomT1(cfg, t1Inverse)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: phase T1")
	}

	t2map, err := runBuildT2(cfg, filters, t2)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: phase T2")
	}

	summary, err := runFinalSieve(cfg, t2map, t1Inverse, t1Forward, t2)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline: final sieve")
	}
	summary.T2Matches = len(t2map)
	summary.BloomFalsePos = summary.T2Matches - summary.T3Misses - len(summary.Found)
	return summary, nil
}

// runBloomT1 computes every subset product of t1 and inserts it into a
// per-NUMA-node Bloom shard, then cross-ORs the shards together so every
// shard ends up holding the full union.
func runBloomT1(cfg Config, t1 []uint64) (map[int]*bloomshard.Filter, error) {
	totalWork := uint64(1) << uint(len(t1))
	reporter := progress.New("bloom_t1", totalWork)
	defer reporter.Close()

	productSet := grayprod.NewProductSet(t1, cfg.Modulus)
	perTask := totalWork / cfg.TaskCount
	if perTask == 0 {
		perTask = 1
	}

	pool := numapool.NewNUMA(func(node int) *bloomshard.Filter {
		f, err := bloomshard.NewOnNode(cfg.FilterBits, cfg.FilterHashes, node)
		if err != nil {
			f = bloomshard.New(cfg.FilterBits, cfg.FilterHashes)
		}
		return f
	})

	var g errgroup.Group
	for i := uint64(0); i < cfg.TaskCount; i++ {
		start := perTask * i
		end := start + perTask
		if i == cfg.TaskCount-1 || end > totalWork {
			end = totalWork
		}
		if start >= end {
			continue
		}

		done := make(chan struct{})
		pool.Execute(func(filter **bloomshard.Filter) {
			defer close(done)

			handle := reporter.Handle()
			defer handle.Close()

			iter := grayprod.NewProduct(productSet, start, end)
			for {
				_, v, ok := iter.Next()
				if !ok {
					break
				}
				(*filter).Put(v)
				handle.Report(1)
			}
		})
		g.Go(func() error {
			<-done
			return nil
		})
	}
	// Waiting here (rather than going straight to pool.Join) is what lets
	// a future failing task's error surface through errgroup instead of
	// silently vanishing into the pool's internal WaitGroup.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := pool.Join()
	if len(results) > 2 {
		return nil, fmt.Errorf("pipeline: cross-or merge only supports up to 2 NUMA shards, got %d", len(results))
	}

	if len(results) == 2 {
		if err := results[0].Context.CrossOr(results[1].Context); err != nil {
			return nil, err
		}
	}

	filters := make(map[int]*bloomshard.Filter, len(results))
	for _, r := range results {
		filters[r.NodeID] = r.Context
	}
	return filters, nil
}

// runBuildT2 computes every subset product of t2 and, for each one found
// (possibly) present in the nearest Bloom shard, records a mapping from
// that subset product's value to the t2 mask that produced it.
func runBuildT2(cfg Config, filters map[int]*bloomshard.Filter, t2 []uint64) (map[uint64]uint32, error) {
	if len(filters) == 0 {
		return nil, errors.New("pipeline: no bloom shards available from phase T1")
	}

	totalWork := uint64(1) << uint(len(t2))
	reporter := progress.New("t2_map", totalWork)
	defer reporter.Close()

	productSet := grayprod.NewProductSet(t2, cfg.Modulus)
	perTask := totalWork / cfg.TaskCount
	if perTask == 0 {
		perTask = 1
	}

	var fallback *bloomshard.Filter
	for _, f := range filters {
		fallback = f
		break
	}

	pool := numapool.NewNUMA(func(node int) *bloomshard.Filter {
		if f, ok := filters[node]; ok {
			return f
		}
		return fallback
	})

	var mu sync.Mutex
	t2map := make(map[uint64]uint32)

	var g errgroup.Group
	for i := uint64(0); i < cfg.TaskCount; i++ {
		start := perTask * i
		end := start + perTask
		if i == cfg.TaskCount-1 || end > totalWork {
			end = totalWork
		}
		if start >= end {
			continue
		}

		done := make(chan struct{})
		pool.Execute(func(filter **bloomshard.Filter) {
			defer close(done)

			handle := reporter.Handle()
			defer handle.Close()

			var local []struct {
				mask uint32
				ssp  uint64
			}

			iter := grayprod.NewProduct(productSet, start, end)
			for {
				mask, v, ok := iter.Next()
				if !ok {
					break
				}
				if (*filter).MaybePresent(v) {
					local = append(local, struct {
						mask uint32
						ssp  uint64
					}{uint32(mask), v})
				}
				handle.Report(1)
			}

			if len(local) == 0 {
				return
			}
			mu.Lock()
			for _, l := range local {
				t2map[l.ssp] = l.mask
			}
			mu.Unlock()
		})
		g.Go(func() error {
			<-done
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	pool.Join()
	return t2map, nil
}

// runFinalSieve re-walks t1Inverse's subset products — the same domain
// Phase T1 indexed and Phase T2 probed — and, for every value also
// present in t2map, reconstructs the candidate from t1Forward's
// un-inverted factors (selected by the same mask the inverse walk
// produced) and t2's, then primality-tests it.
func runFinalSieve(cfg Config, t2map map[uint64]uint32, t1Inverse, t1Forward, t2 []uint64) (*Summary, error) {
	totalWork := uint64(1) << uint(len(t1Inverse))
	reporter := progress.New("final_sieve", totalWork)
	defer reporter.Close()

	productSet := grayprod.NewProductSet(t1Inverse, cfg.Modulus)
	perTask := totalWork / cfg.TaskCount
	if perTask == 0 {
		perTask = 1
	}

	var mu sync.Mutex
	var found []*primality.Pseudoprime
	var t3Misses int

	var tasks []func() error
	for i := uint64(0); i < cfg.TaskCount; i++ {
		start := perTask * i
		end := start + perTask
		if i == cfg.TaskCount-1 || end > totalWork {
			end = totalWork
		}
		if start >= end {
			continue
		}

		start, end := start, end
		tasks = append(tasks, func() error {
			handle := reporter.Handle()
			defer handle.Close()

			var localFound []*primality.Pseudoprime
			var localMisses int

			iter := grayprod.NewProduct(productSet, start, end)
			for {
				t1Mask, v, ok := iter.Next()
				if !ok {
					break
				}
				t2Mask, hit := t2map[v]
				if !hit {
					handle.Report(1)
					continue
				}

				pp, ok := primality.CheckPrime(t1Forward, t2, uint32(t1Mask), t2Mask, cfg.MinN)
				if ok {
					localFound = append(localFound, pp)
				} else {
					localMisses++
				}
				handle.Report(1)
			}

			if len(localFound) == 0 && localMisses == 0 {
				return nil
			}
			mu.Lock()
			found = append(found, localFound...)
			t3Misses += localMisses
			mu.Unlock()
			return nil
		})
	}

	// The final re-sieve needs no per-NUMA-node state (t2map and the
	// product set are read-only, shared by every task), so it runs as a
	// plain bounded fan-out rather than through the NUMA-pinned pool.
	if err := numapool.RunContextFree(tasks, runtime.NumCPU()); err != nil {
		return nil, err
	}

	return &Summary{
		Found:    found,
		T3Misses: t3Misses,
	}, nil
}
