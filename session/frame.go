// Package session implements the frame registry (C5) and session table
// (C6): the fixed-capacity arenas the I/O engine draws from for every
// in-flight kernel operation and every live connection.
package session

import (
	"fmt"
	"unsafe"

	"github.com/blockwire/obsidian/internal/pool"
	"golang.org/x/sys/unix"
)

// Kind identifies the kernel operation a Frame describes.
type Kind uint8

const (
	KindAccept Kind = iota
	KindReceive
	KindSend
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindAccept:
		return "accept"
	case KindReceive:
		return "receive"
	case KindSend:
		return "send"
	case KindClose:
		return "close"
	default:
		return "unknown"
	}
}

// Ref is a stable (index, generation) handle onto a Table row, carried by
// a Frame in place of a raw row pointer. Table bumps a row's generation on
// release, so a handler that resolves a Ref against the table after a
// forced teardown and row reuse observes the mismatch and can discard the
// late completion instead of acting on a connection that is no longer
// there — see Table.Resolve.
type Ref struct {
	Index      int32
	Generation uint32
}

// NoSession is carried by frames with no owning row: pre-assignment ACCEPT
// frames and the listening socket's own CLOSE frame.
var NoSession = Ref{Index: -1}

// Valid reports whether r names an actual table row.
func (r Ref) Valid() bool { return r.Index >= 0 }

// AcceptPayload holds the kernel-filled remote address from an ACCEPT
// completion.
type AcceptPayload struct {
	Addr    unix.RawSockaddrInet4
	AddrLen uint32
}

// ReceivePayload describes an outstanding recv: its destination and total
// capacity. BytesIn is not written by the engine; a short read's resume
// point is the session cursor's write offset, not a per-frame count.
type ReceivePayload struct {
	Buf     []byte
	BytesIn int
}

// SendPayload describes an outstanding send and its partial-completion
// progress.
type SendPayload struct {
	Buf      []byte
	BytesOut int
}

// Frame describes one in-flight kernel operation. Its address is the
// opaque user-data word carried on the submission (see UserData); the
// frame pool never grows or relocates cells, so that address is stable
// for the frame's lifetime, submit through completion.
type Frame struct {
	Kind    Kind
	Session Ref
	TraceID uint64
	Accept  AcceptPayload
	Receive ReceivePayload
	Send    SendPayload
}

// Registry is the C5 frame allocator: a fixed pool of Frame records plus
// the registry's own monotonic trace counter, used only for diagnostics.
type Registry struct {
	pool  *pool.Pool[Frame]
	trace uint64
}

// NewRegistry creates a registry with room for exactly capacity in-flight
// frames.
func NewRegistry(capacity int) (*Registry, error) {
	p, err := pool.New[Frame](capacity)
	if err != nil {
		return nil, fmt.Errorf("session: new frame registry: %w", err)
	}
	return &Registry{pool: p}, nil
}

// Create allocates a frame of the given kind bound to sess (NoSession for
// a pre-assignment accept or the listener's own close), and bumps the
// trace counter. Returns nil on pool exhaustion; callers must treat that
// as resource-exhaustion and refuse to submit, never submit with a nil
// user-data pointer.
func (reg *Registry) Create(kind Kind, sess Ref) *Frame {
	f := reg.pool.Alloc()
	if f == nil {
		return nil
	}
	reg.trace++
	f.Kind = kind
	f.Session = sess
	f.TraceID = reg.trace
	f.Accept = AcceptPayload{}
	f.Receive = ReceivePayload{}
	f.Send = SendPayload{}
	return f
}

// Release returns f to the pool. Must be called exactly once per frame,
// after its completion has been fully handled (testable property 1).
func (reg *Registry) Release(f *Frame) {
	reg.pool.Free(f)
}

// InUse returns the number of frames currently outstanding.
func (reg *Registry) InUse() int { return reg.pool.InUse() }

// Cap returns the registry's fixed frame capacity.
func (reg *Registry) Cap() int { return reg.pool.Cap() }

// UserData packs a frame's address into the opaque 64-bit word the kernel
// echoes back unmodified on completion.
func UserData(f *Frame) uint64 {
	return uint64(uintptr(unsafe.Pointer(f)))
}

// FrameFromUserData recovers the frame pointer from a completion's
// user-data word. Only ever called with a word this process produced via
// UserData for a frame still live in the registry.
//
//go:nocheckptr
func FrameFromUserData(ud uint64) *Frame {
	return (*Frame)(unsafe.Pointer(uintptr(ud)))
}
