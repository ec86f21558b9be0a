// Package ringbuf implements the "magic" ring buffer used as the
// per-session read staging area: a byte buffer whose backing memory is
// mapped so that a window of up to SlotSize() bytes, starting at any
// offset, is contiguous — no wrap-around branch or copy is needed in the
// hot read/write path.
//
// On Linux amd64 and arm64 this is done for real, with a memfd-backed
// region mapped count+1 times in a row so adjacent copies alias the same
// physical pages (see ring_linux.go); if a mapping fails there, Alloc
// returns an error. Every other build target uses a plain buffer with
// modular reads/writes instead (ring_other.go); the aliasing
// property then holds only through ReadAt/WriteAt, not through View, and
// the cost is a copy on any window that straddles the wrap point.
package ringbuf

import "fmt"

// Ring is a page-sized byte buffer, conceptually repeated count+1 times.
type Ring struct {
	size    uint64 // bytes per repetition (the logical ring capacity)
	count   int
	mem     []byte
	aliased bool
	closer  func() error
}

// Alloc reserves a ring of at least minSize bytes, repeated count times.
// minSize is rounded up to the platform page size. count must be >= 1.
func Alloc(minSize uint64, count int) (*Ring, error) {
	if minSize == 0 {
		return nil, fmt.Errorf("ringbuf: minSize must be > 0")
	}
	if count < 1 {
		return nil, fmt.Errorf("ringbuf: count must be >= 1, got %d", count)
	}
	return alloc(minSize, count)
}

// SlotSize returns the logical capacity of the ring (one repetition).
func (r *Ring) SlotSize() uint64 { return r.size }

// Count returns the number of repetitions beyond the first.
func (r *Ring) Count() int { return r.count }

// Aliased reports whether View is backed by true virtual-memory aliasing
// (Linux) as opposed to the portable ReadAt/WriteAt fallback.
func (r *Ring) Aliased() bool { return r.aliased }

// View returns a contiguous slice of n bytes starting at ring-relative
// offset off (off must be < size*count, n must be <= size). It is a
// zero-copy window directly into the backing pages and is only valid
// when Aliased() is true; callers on a non-aliased ring must use
// ReadAt/WriteAt instead.
func (r *Ring) View(off, n uint64) []byte {
	if !r.aliased {
		panic("ringbuf: View requires an aliased ring; use ReadAt/WriteAt")
	}
	if n > r.size {
		panic("ringbuf: View window larger than one slot")
	}
	return r.mem[off : off+n]
}

// ReadAt copies len(p) bytes starting at ring-relative offset off into p,
// wrapping at SlotSize() as needed. Works on both aliased and fallback
// rings (on an aliased ring it degrades to a single copy, since the
// backing memory is already contiguous).
func (r *Ring) ReadAt(off uint64, p []byte) {
	if uint64(len(p)) > r.size {
		panic("ringbuf: ReadAt window larger than one slot")
	}
	if r.aliased {
		copy(p, r.mem[off:off+uint64(len(p))])
		return
	}
	m := off % r.size
	n := copy(p, r.mem[m:r.size])
	if n < len(p) {
		copy(p[n:], r.mem[:len(p)-n])
	}
}

// WriteAt writes p starting at ring-relative offset off, wrapping at
// SlotSize() as needed. See ReadAt.
func (r *Ring) WriteAt(off uint64, p []byte) {
	if uint64(len(p)) > r.size {
		panic("ringbuf: WriteAt window larger than one slot")
	}
	if r.aliased {
		copy(r.mem[off:off+uint64(len(p))], p)
		return
	}
	m := off % r.size
	n := copy(r.mem[m:r.size], p)
	if n < len(p) {
		copy(r.mem[:len(p)-n], p[n:])
	}
}

// Close releases the ring's backing memory.
func (r *Ring) Close() error {
	if r.closer == nil {
		return nil
	}
	closer := r.closer
	r.closer = nil
	return closer()
}
