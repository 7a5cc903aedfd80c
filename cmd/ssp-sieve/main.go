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

// Command ssp-sieve runs the three-phase meet-in-the-middle pseudoprime
// sieve: it builds a Bloom index over the modular subset products of
// T1's inverses,
// probes it with T2's subset products, then re-sieves and bignum-checks
// every match. It takes no arguments and prints one line per confirmed
// pseudoprime, followed by a summary line, before exiting.
package main

import (
	"fmt"
	"log"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/grayprod/ssp-sieve/internal/candset"
	"github.com/grayprod/ssp-sieve/internal/pipeline"
)

func main() {
	log.SetFlags(log.LstdFlags)

	start := time.Now()

	cfg := pipeline.DefaultConfig()
	log.Printf("filter bits: %d, hashes: %d, tasks: %d", cfg.FilterBits, cfg.FilterHashes, cfg.TaskCount)
	log.Printf("|T1|=%d |T2|=%d", len(candset.T1), len(candset.T2))

	summary, err := pipeline.Run(cfg, candset.T1Inverse, candset.T2, candset.T1)
	if err != nil {
		color.Red("sieve failed: %v", err)
		panic(errors.Wrap(err, "ssp-sieve"))
	}

	for _, pp := range summary.Found {
		fmt.Printf("Found passing prime %s, vector %s\n", pp.Value.String(), factorVector(pp.Factors))
	}

	log.Printf("T2 matches: %d, T3 misses: %d, bloom false positives: %d",
		summary.T2Matches, summary.T3Misses, summary.BloomFalsePos)

	fmt.Printf("Total time: %ss, primes found: %d\n", strconv.FormatFloat(time.Since(start).Seconds(), 'f', -1, 64), len(summary.Found))
}

// factorVector renders factors as the decimal vector literal
// "[f0, f1, ...]" the sieve's output contract specifies.
func factorVector(factors []*big.Int) string {
	parts := make([]string, len(factors))
	for i, f := range factors {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
