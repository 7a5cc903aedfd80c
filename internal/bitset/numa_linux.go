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

package bitset

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sysMoveArray is the move_pages(2) syscall number for the target
// architecture. x/sys/unix does not wrap move_pages directly, so the call
// is issued via unix.Syscall6 with the raw number, matching libnuma's
// move_pages shim that the original program linked against.
const sysMoveArray = unix.SYS_MOVE_PAGES

// mpolMFMove is MPOL_MF_MOVE from linux/mempolicy.h.
const mpolMFMove = 1 << 1

// NewOnNode allocates a BitArray backed by huge-page-aligned anonymous
// memory and attempts to migrate its pages to the given NUMA node via
// move_pages(2). Page migration is best-effort: a failure to migrate a
// page (ENOENT/EFAULT, or no huge pages available) is tolerated the same
// way the pinned-page walk in the originating sieve tolerated unmapped
// pages, but mmap failure itself is fatal, since the filter cannot run
// without its backing store.
func NewOnNode(nbits uint64, node int) (*BitArray, error) {
	nwords := (nbits + wordBits - 1) / wordBits
	nbytes := int(nwords) * 8
	if nbytes == 0 {
		nbytes = 8
	}

	flags := unix.MAP_ANONYMOUS | unix.MAP_PRIVATE
	data, err := unix.Mmap(-1, 0, nbytes, unix.PROT_READ|unix.PROT_WRITE, flags|hugetlbFlag())
	if err != nil {
		// Huge pages may be unavailable on this system; fall back to a
		// normal anonymous mapping rather than failing the whole run.
		data, err = unix.Mmap(-1, 0, nbytes, unix.PROT_READ|unix.PROT_WRITE, flags)
		if err != nil {
			return nil, fmt.Errorf("bitset: mmap %d bytes: %w", nbytes, err)
		}
	}

	if err := migratePages(data, node); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("bitset: migrate pages to node %d: %w", node, err)
	}

	words := unsafe.Slice((*atomic.Uint64)(unsafe.Pointer(&data[0])), nwords)
	return &BitArray{words: words, nbits: nbits}, nil
}

func hugetlbFlag() int {
	const mapHugeShift = 26
	const pageSizeShift30 = 30 // request 1GiB huge pages where supported
	return unix.MAP_HUGETLB | (pageSizeShift30 << mapHugeShift)
}

// migratePages walks data one page at a time and asks the kernel to move
// each page to node. A page the kernel declines to move because it isn't
// mapped yet (ENOENT) or because the address isn't valid for migration
// (EFAULT) is tolerated — the filter still works, just without the
// locality win on that page — but any other failure, from the syscall
// itself or reported back in status[0], aborts the migration.
func migratePages(data []byte, node int) error {
	pageSize := unix.Getpagesize()
	if pageSize <= 0 {
		return nil
	}

	for off := 0; off < len(data); off += pageSize {
		addr := uintptr(unsafe.Pointer(&data[off]))
		pages := [1]unsafe.Pointer{unsafe.Pointer(addr)}
		nodes := [1]int32{int32(node)}
		status := [1]int32{-1}

		_, _, errno := unix.Syscall6(
			sysMoveArray,
			0, // current process
			1, // one page at a time
			uintptr(unsafe.Pointer(&pages[0])),
			uintptr(unsafe.Pointer(&nodes[0])),
			uintptr(unsafe.Pointer(&status[0])),
			uintptr(mpolMFMove),
		)
		if errno != 0 {
			return fmt.Errorf("move_pages: %w", errno)
		}

		s := status[0]
		if s < 0 && s != -int32(unix.ENOENT) && s != -int32(unix.EFAULT) {
			return fmt.Errorf("move_pages: page at offset %d: status %d", off, s)
		}
	}
	return nil
}
