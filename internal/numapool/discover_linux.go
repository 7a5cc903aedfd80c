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
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const nodeSysfsRoot = "/sys/devices/system/node"

// discoverNodes reads /sys/devices/system/node/node*/cpulist to find the
// NUMA nodes present on this machine and the CPUs attached to each one.
// If sysfs can't be read, or no nodes are found, it falls back to a
// single synthetic node spanning every logical CPU.
func discoverNodes() []nodeSpec {
	entries, err := os.ReadDir(nodeSysfsRoot)
	if err != nil {
		return []nodeSpec{{id: 0, cpus: sequentialCPUs()}}
	}

	var specs []nodeSpec
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "node") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(name, "node"))
		if err != nil {
			continue
		}

		cpulist, err := os.ReadFile(filepath.Join(nodeSysfsRoot, name, "cpulist"))
		if err != nil {
			continue
		}
		cpus := parseCPUList(strings.TrimSpace(string(cpulist)))
		if len(cpus) == 0 {
			continue
		}

		specs = append(specs, nodeSpec{id: id, cpus: cpus})
	}

	if len(specs) == 0 {
		return []nodeSpec{{id: 0, cpus: sequentialCPUs()}}
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].id < specs[j].id })
	return specs
}

// parseCPUList parses a Linux cpulist string such as "0-3,8,12-15" into a
// slice of CPU numbers, in the order the list gives them.
func parseCPUList(s string) []int {
	var cpus []int
	if s == "" {
		return cpus
	}
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loN, err1 := strconv.Atoi(lo)
			hiN, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil {
				continue
			}
			for c := loN; c <= hiN; c++ {
				cpus = append(cpus, c)
			}
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				continue
			}
			cpus = append(cpus, n)
		}
	}
	return cpus
}

// pinToCPU locks the calling goroutine to its current OS thread and sets
// that thread's CPU affinity to the single given CPU. It is called once,
// at the top of each pinned worker goroutine, before the goroutine starts
// pulling tasks off the shared queue.
func pinToCPU(cpu int) {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	// Best-effort: an affinity failure (e.g. insufficient privilege, or
	// the CPU having been hot-unplugged since discovery) leaves the
	// worker unpinned rather than aborting the whole pool.
	_ = unix.SchedSetaffinity(0, &set)
}
