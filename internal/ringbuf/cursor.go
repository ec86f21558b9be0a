package ringbuf

// Cursor layers a producer (write) and consumer (read) counter over a
// Ring. Both counters are monotonically non-decreasing 64-bit counts of
// total bytes ever produced/consumed; wrapping to a physical offset is
// always done mod the ring's slot size, at the point of use, never stored.
//
// Invariant: write >= read, and write-read <= ring.SlotSize() — the
// session never lets the kernel write more than one ring's worth of
// unconsumed bytes ahead of the decoder.
type Cursor struct {
	ring  *Ring
	read  uint64
	write uint64
}

// NewCursor returns a fresh cursor over ring, both counters at zero.
func NewCursor(ring *Ring) *Cursor {
	return &Cursor{ring: ring}
}

// Ring returns the underlying ring.
func (c *Cursor) Ring() *Ring { return c.ring }

// Read returns the current read counter.
func (c *Cursor) Read() uint64 { return c.read }

// Write returns the current write counter.
func (c *Cursor) Write() uint64 { return c.write }

// Readable returns the number of bytes available to read.
func (c *Cursor) Readable() uint64 { return c.write - c.read }

// Writable returns the number of bytes of free space left to write into.
func (c *Cursor) Writable() uint64 { return c.ring.SlotSize() - c.Readable() }

// ReadOffset is the ring-relative offset of the next unread byte.
func (c *Cursor) ReadOffset() uint64 { return c.read % c.ring.SlotSize() }

// WriteOffset is the ring-relative offset of the next free byte.
func (c *Cursor) WriteOffset() uint64 { return c.write % c.ring.SlotSize() }

// ReadableView returns a zero-copy contiguous view of the readable span.
// Only valid when the ring is aliased (see Ring.Aliased); the decode hot
// path is expected to run only on such rings.
func (c *Cursor) ReadableView() []byte {
	return c.ring.View(c.ReadOffset(), c.Readable())
}

// WritableView returns a zero-copy contiguous view of the writable span,
// i.e. the destination a recv should be queued into. Only valid on an
// aliased ring.
func (c *Cursor) WritableView() []byte {
	return c.ring.View(c.WriteOffset(), c.Writable())
}

// CopyReadable copies len(dst) readable bytes into dst without advancing
// the read counter. Works on both aliased and fallback rings.
func (c *Cursor) CopyReadable(dst []byte) {
	if uint64(len(dst)) > c.Readable() {
		panic("ringbuf: CopyReadable request exceeds readable span")
	}
	c.ring.ReadAt(c.ReadOffset(), dst)
}

// CopyWritable writes src into the writable span without advancing the
// write counter. Works on both aliased and fallback rings.
func (c *Cursor) CopyWritable(src []byte) {
	if uint64(len(src)) > c.Writable() {
		panic("ringbuf: CopyWritable request exceeds writable span")
	}
	c.ring.WriteAt(c.WriteOffset(), src)
}

// AdvanceRead marks n more bytes as consumed.
func (c *Cursor) AdvanceRead(n uint64) {
	if n > c.Readable() {
		panic("ringbuf: AdvanceRead beyond readable span")
	}
	c.read += n
}

// AdvanceWrite marks n more bytes as produced (e.g. after a recv
// completion reports n bytes landed in the writable span).
func (c *Cursor) AdvanceWrite(n uint64) {
	if n > c.Writable() {
		panic("ringbuf: AdvanceWrite beyond writable span")
	}
	c.write += n
}
