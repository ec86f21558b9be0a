//go:build !(linux && (amd64 || arm64))

package ringbuf

// alloc provides a portable ring for platforms (or architectures) without
// the memfd double-mapping trick. There is no virtual-memory aliasing, so
// View is unavailable; ReadAt/WriteAt perform the wrap-around copy
// instead. The contiguity property from §3 of the spec still holds
// observationally (property 3 in the testable-properties list), just not
// for free.
func alloc(minSize uint64, count int) (*Ring, error) {
	const pageSize = 4096
	size := roundUpPage(minSize, pageSize)

	// Only one logical copy is kept; ReadAt/WriteAt wrap modulo size
	// instead of relying on a second (or count-th) aliased copy.
	mem := make([]byte, size)

	return &Ring{
		size:    size,
		count:   count,
		mem:     mem,
		aliased: false,
	}, nil
}

func roundUpPage(n, pageSize uint64) uint64 {
	return (n + pageSize - 1) &^ (pageSize - 1)
}
