//go:build linux && (amd64 || arm64)

package ringbuf

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// alloc reserves size*(count+1) bytes of virtual address space, then maps
// the same memfd-backed pages repeatedly over that range so that byte i
// and byte i+size alias the same physical page. The result is that any
// read or write of up to size bytes, starting at any offset within the
// first size*count bytes, lands in a single contiguous slice — the
// "magic" in magic ring buffer.
func alloc(minSize uint64, count int) (*Ring, error) {
	pageSize := uint64(unix.Getpagesize())
	size := roundUpPage(minSize, pageSize)
	total := size * uint64(count+1)

	// 1. Reserve a hole in the address space, big enough for count+1
	// repetitions, so the fixed mmaps below land contiguously.
	base, err := mmapReserve(total)
	if err != nil {
		return nil, fmt.Errorf("ringbuf: reserve address space: %w", err)
	}

	// 2. Back the ring with an anonymous, in-memory file so it can be
	// mapped MAP_SHARED more than once.
	fd, err := unix.MemfdCreate("obsidian-ringbuf", 0)
	if err != nil {
		munmapAt(base, total)
		return nil, fmt.Errorf("ringbuf: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		munmapAt(base, total)
		return nil, fmt.Errorf("ringbuf: ftruncate: %w", err)
	}

	// 3. Drop the reservation and re-map the memfd count+1 times, fixed,
	// back-to-back across the reserved range. Each slice aliases the same
	// physical pages.
	if err := munmapAt(base, total); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ringbuf: unmap reservation: %w", err)
	}
	mapped := 0
	for i := 0; i <= count; i++ {
		addr := base + uintptr(i)*uintptr(size)
		if _, err := mmapFixed(addr, size, fd); err != nil {
			for j := 0; j < mapped; j++ {
				munmapAt(base+uintptr(j)*uintptr(size), size)
			}
			unix.Close(fd)
			return nil, fmt.Errorf("ringbuf: mmap slot %d: %w", i, err)
		}
		mapped++
	}

	mem := unsafe.Slice((*byte)(unsafe.Pointer(base)), total)

	r := &Ring{
		size:    size,
		count:   count,
		mem:     mem,
		aliased: true,
	}
	r.closer = func() error {
		var firstErr error
		if err := munmapAt(base, total); err != nil {
			firstErr = err
		}
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}
	return r, nil
}

func roundUpPage(n, pageSize uint64) uint64 {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

func mmapReserve(total uint64) (uintptr, error) {
	addr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		0,
		uintptr(total),
		unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS,
		^uintptr(0), // fd = -1
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	return addr, nil
}

func mmapFixed(addr uintptr, size uint64, fd int) (uintptr, error) {
	got, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_FIXED,
		uintptr(fd),
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	if got != addr {
		munmapAt(got, size)
		return 0, fmt.Errorf("ringbuf: kernel placed mapping at %x, wanted %x", got, addr)
	}
	return got, nil
}

func munmapAt(addr uintptr, size uint64) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, uintptr(size), 0)
	if errno != 0 {
		return errno
	}
	return nil
}
