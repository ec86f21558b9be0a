// Package engine implements the I/O engine (C7): submission of
// accept/recv/send/close operations over io_uring and dispatch of their
// completions, wiring together the frame registry, session table,
// protocol codec, and protocol state machine.
package engine

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/blockwire/obsidian/config"
	"github.com/blockwire/obsidian/gameplay"
	"github.com/blockwire/obsidian/internal/bufpool"
	"github.com/blockwire/obsidian/internal/iouring"
	"github.com/blockwire/obsidian/internal/ringbuf"
	"github.com/blockwire/obsidian/logging"
	"github.com/blockwire/obsidian/protostate"
	"github.com/blockwire/obsidian/session"
	"github.com/blockwire/obsidian/wire"
)

// ringSlotSize and ringSlotCount size each session's magic ring buffer: a
// 64KiB window is comfortably larger than any client-sent legacy packet.
// Every packet, CHUNK_DATA included, is decoded from the ring's readable
// view, so a CHUNK_DATA body larger than the window (the decoder accepts up
// to wire.MaxChunkDataBytes) never finishes decoding.
const (
	ringSlotSize  = 64 * 1024
	ringSlotCount = 4
)

// Engine owns the listening socket, the io_uring instance, and the C5/C6
// arenas. It is single-owner and not safe for concurrent use — the whole
// point of the cooperative-loop design is that only Run's goroutine ever
// touches it.
type Engine struct {
	ring         *iouring.IOUring
	frames       *session.Registry
	sessions     *session.Table
	listenFD     int32
	log          logging.Logger
	collaborator gameplay.Collaborator
	idleTimeout  time.Duration
}

// Start binds the listening socket, sets up io_uring, allocates the frame
// registry and session table per cfg, queues the standing accept, and
// submits it.
func Start(cfg config.Config, log logging.Logger, collaborator gameplay.Collaborator) (*Engine, error) {
	if collaborator == nil {
		collaborator = gameplay.Discard{}
	}

	queueDepth := cfg.QueueDepth
	if queueDepth == 0 {
		queueDepth = config.Default().QueueDepth
	}
	framePoolSize := cfg.FramePoolSize
	if framePoolSize == 0 {
		framePoolSize = config.Default().FramePoolSize
	}

	listenFD, err := bindListen(cfg.ListenAddr, cfg.AcceptBacklog)
	if err != nil {
		return nil, err
	}

	ring, err := iouring.NewIOUring(queueDepth)
	if err != nil {
		unix.Close(listenFD)
		return nil, fmt.Errorf("engine: io_uring setup: %w", err)
	}

	frames, err := session.NewRegistry(framePoolSize)
	if err != nil {
		ring.Close()
		unix.Close(listenFD)
		return nil, err
	}

	sessions, err := session.NewTable(cfg.MaxConnections)
	if err != nil {
		ring.Close()
		unix.Close(listenFD)
		return nil, err
	}

	e := &Engine{
		ring:         ring,
		frames:       frames,
		sessions:     sessions,
		listenFD:     int32(listenFD),
		log:          log,
		collaborator: collaborator,
		idleTimeout:  cfg.IdleTimeout,
	}

	e.queueAccept()
	if err := e.submit(); err != nil {
		ring.Close()
		unix.Close(listenFD)
		return nil, fmt.Errorf("engine: initial submit: %w", err)
	}
	return e, nil
}

// Run drains completions and dispatches them forever, submitting whatever
// new operations each batch queued, until WaitCQE or Submit reports an
// error.
func (e *Engine) Run() error {
	for {
		cqe, err := e.ring.WaitCQE()
		if err != nil {
			return fmt.Errorf("engine: wait cqe: %w", err)
		}
		e.handleCompletion(cqe)
		e.ring.AdvanceCQ()

		for {
			next := e.ring.PeekCQE()
			if next == nil {
				break
			}
			e.handleCompletion(next)
			e.ring.AdvanceCQ()
		}

		if err := e.submit(); err != nil {
			return fmt.Errorf("engine: submit: %w", err)
		}
		e.sweepIdle()
	}
}

// Stats exposes session table occupancy for periodic accounting.
func (e *Engine) Stats() session.Stats { return e.sessions.Stats() }

// Close tears down the io_uring instance. The listening socket is not
// closed here, and no engine code path queues a CLOSE frame for it.
func (e *Engine) Close() error { return e.ring.Close() }

func (e *Engine) submit() error {
	if _, errno := e.ring.Submit(); errno != 0 {
		return errno
	}
	return nil
}

// sweepIdle closes any session that has had no recv activity for longer
// than idleTimeout. This is the supplemented feature resolving spec.md
// §9's idle-timeout open question.
func (e *Engine) sweepIdle() {
	if e.idleTimeout <= 0 {
		return
	}
	cutoff := time.Now().Add(-e.idleTimeout).UnixNano()
	e.sessions.ForEachActive(func(ref session.Ref, row *session.Row) {
		if row.Status == session.StatusDisconnecting {
			return
		}
		if row.LastActiveNanos != 0 && row.LastActiveNanos < cutoff {
			e.log.Info("closing idle session", logging.Str("username", row.Username))
			row.Status = session.StatusDisconnecting
			e.queueClose(ref, row.Socket)
		}
	})
}

// peekSQEOrRelease fetches a submission slot for f, releasing f and
// logging at WARN on exhaustion instead of ever submitting a nil
// user-data pointer (the resource-exhaustion policy from spec.md §7).
func (e *Engine) peekSQEOrRelease(f *session.Frame, op string) *iouring.IOUringSQE {
	sqe := e.ring.PeekSQE(true)
	if sqe == nil {
		e.log.Warn("submission queue full, dropping operation", logging.Str("op", op))
		e.frames.Release(f)
		return nil
	}
	return sqe
}

func (e *Engine) queueAccept() {
	f := e.frames.Create(session.KindAccept, session.NoSession)
	if f == nil {
		e.log.Warn("frame pool exhausted, cannot queue accept")
		return
	}
	f.Accept.AddrLen = uint32(unsafe.Sizeof(f.Accept.Addr))
	sqe := e.peekSQEOrRelease(f, "accept")
	if sqe == nil {
		return
	}
	sqe.Opcode = iouring.IORING_OP_ACCEPT
	sqe.Fd = e.listenFD
	sqe.Addr = uint64(uintptr(unsafe.Pointer(&f.Accept.Addr)))
	sqe.Off = uint64(uintptr(unsafe.Pointer(&f.Accept.AddrLen)))
	sqe.UserData = session.UserData(f)
	e.ring.AdvanceSQ()
}

func (e *Engine) queueRecv(ref session.Ref, fd int32, row *session.Row) {
	view := row.Cursor.WritableView()
	if len(view) == 0 {
		e.log.Warn("ring buffer full before recv could be queued", logging.Int("fd", int(fd)))
		return
	}
	f := e.frames.Create(session.KindReceive, ref)
	if f == nil {
		e.log.Warn("frame pool exhausted, closing session", logging.Int("fd", int(fd)))
		e.queueClose(ref, fd)
		return
	}
	f.Receive.Buf = view
	sqe := e.peekSQEOrRelease(f, "recv")
	if sqe == nil {
		return
	}
	sqe.Opcode = iouring.IORING_OP_RECV
	sqe.Fd = fd
	sqe.Addr = uint64(uintptr(unsafe.Pointer(&view[0])))
	sqe.Len = uint32(len(view))
	sqe.UserData = session.UserData(f)
	e.ring.AdvanceSQ()
}

// queueRecvOffset is spec.md §4.7's named resume operation. Under the
// cursor abstraction it collapses onto queueRecv: the ring's write cursor
// already marks where the kernel should continue, and the unconsumed tail
// a short decode left behind never moves (Design Notes §9).
func (e *Engine) queueRecvOffset(ref session.Ref, fd int32, row *session.Row) {
	e.queueRecv(ref, fd, row)
}

func (e *Engine) queueSend(f *session.Frame, fd int32) {
	remaining := f.Send.Buf[f.Send.BytesOut:]
	sqe := e.peekSQEOrRelease(f, "send")
	if sqe == nil {
		return
	}
	sqe.Opcode = iouring.IORING_OP_SEND
	sqe.Fd = fd
	sqe.Addr = uint64(uintptr(unsafe.Pointer(&remaining[0])))
	sqe.Len = uint32(len(remaining))
	sqe.UserData = session.UserData(f)
	e.ring.AdvanceSQ()
}

func (e *Engine) sendPacket(ref session.Ref, row *session.Row, p wire.Packet) {
	buf := bufpool.Malloc(wire.EncodedSize(p))
	wire.Encode(buf, p)

	f := e.frames.Create(session.KindSend, ref)
	if f == nil {
		e.log.Warn("frame pool exhausted, dropping reply", logging.Str("username", row.Username))
		return
	}
	f.Send.Buf = buf
	e.queueSend(f, row.Socket)
	row.BytesOut += uint64(len(buf))
}

func (e *Engine) queueClose(ref session.Ref, fd int32) {
	f := e.frames.Create(session.KindClose, ref)
	if f == nil {
		e.log.Error("frame pool exhausted, cannot queue close", logging.Int("fd", int(fd)))
		return
	}
	sqe := e.peekSQEOrRelease(f, "close")
	if sqe == nil {
		return
	}
	sqe.Opcode = iouring.IORING_OP_CLOSE
	sqe.Fd = fd
	sqe.UserData = session.UserData(f)
	e.ring.AdvanceSQ()
}

func (e *Engine) handleCompletion(cqe *iouring.IOUringCQE) {
	if cqe.UserData == 0 {
		return
	}
	f := session.FrameFromUserData(cqe.UserData)
	switch f.Kind {
	case session.KindAccept:
		e.onAccept(f, cqe.Res)
	case session.KindReceive:
		e.onReceive(f, cqe.Res)
	case session.KindSend:
		e.onSend(f, cqe.Res)
	case session.KindClose:
		e.onClose(f, cqe.Res)
	}
}

func (e *Engine) onAccept(f *session.Frame, res int32) {
	addr := f.Accept.Addr
	e.frames.Release(f)

	if res < 0 {
		e.log.Error("accept completion failed", logging.Int("errno", int(-res)))
		e.queueAccept()
		return
	}

	fd := int32(res)
	ref, row, ok := e.sessions.Claim(fd)
	if !ok {
		e.log.Warn("session table full, dropping accepted connection")
		unix.Close(int(fd))
		e.queueAccept()
		return
	}

	row.RemoteAddr, row.RemotePort = sockaddrToHost(addr)
	ring, err := ringbuf.Alloc(ringSlotSize, ringSlotCount)
	if err != nil {
		e.log.Error("ring buffer allocation failed, closing session", logging.Err(err))
		e.sessions.Release(ref)
		unix.Close(int(fd))
		e.queueAccept()
		return
	}
	row.Ring = ring
	row.Cursor = ringbuf.NewCursor(ring)
	row.LastActiveNanos = time.Now().UnixNano()

	e.queueRecv(ref, fd, row)
	e.queueAccept()
}

func (e *Engine) onReceive(f *session.Frame, res int32) {
	ref := f.Session
	e.frames.Release(f)

	row, ok := e.sessions.Resolve(ref)
	if !ok {
		return // stale completion against an already-released session
	}

	if res < 0 {
		errno := syscall.Errno(-res)
		if errno == syscall.EBADF {
			return // peer or server already closed; benign
		}
		e.log.Error("recv failed", logging.Err(errno))
		e.queueClose(ref, row.Socket)
		return
	}
	if res == 0 {
		e.log.Info("peer closed connection", logging.Str("username", row.Username))
		e.queueClose(ref, row.Socket)
		return
	}

	n := uint64(res)
	row.Cursor.AdvanceWrite(n)
	row.BytesIn += n
	row.LastActiveNanos = time.Now().UnixNano()
	e.drainDecode(ref, row)
}

func (e *Engine) drainDecode(ref session.Ref, row *session.Row) {
	for {
		view := row.Cursor.ReadableView()
		if len(view) == 0 {
			e.queueRecv(ref, row.Socket, row)
			return
		}
		pkt, res := wire.DecodeClientPacket(view)
		switch res.Kind {
		case wire.Consumed:
			row.Cursor.AdvanceRead(uint64(res.N))
			e.dispatch(ref, row, pkt)
			if row.Status == session.StatusDisconnecting {
				return
			}
		case wire.Need:
			e.queueRecvOffset(ref, row.Socket, row)
			return
		case wire.Invalid:
			e.log.Warn("decoder rejected malformed packet", logging.Str("username", row.Username))
			e.emitDisconnectAndClose(ref, row, "malformed packet")
			return
		}
	}
}

func (e *Engine) dispatch(ref session.Ref, row *session.Row, pkt wire.Packet) {
	switch pkt.(type) {
	case wire.HandshakeRequest, wire.AuthRequest, wire.Heartbeat:
		out := protostate.Dispatch(row, pkt, e.log)
		for _, p := range out.Replies {
			e.sendPacket(ref, row, p)
		}
		if out.Disconnect {
			row.Status = session.StatusDisconnecting
			e.queueClose(ref, row.Socket)
		}
	default:
		e.collaborator.HandlePacket(ref.Index, pkt)
	}
}

func (e *Engine) emitDisconnectAndClose(ref session.Ref, row *session.Row, reason string) {
	row.Status = session.StatusDisconnecting
	e.sendPacket(ref, row, wire.Disconnect{Message: reason})
	e.queueClose(ref, row.Socket)
}

func (e *Engine) onSend(f *session.Frame, res int32) {
	if res < 0 {
		errno := syscall.Errno(-res)
		ref := f.Session
		buf := f.Send.Buf
		e.frames.Release(f)
		bufpool.Free(buf)
		if errno == syscall.EBADF {
			return
		}
		e.log.Error("send failed", logging.Err(errno))
		if row, ok := e.sessions.Resolve(ref); ok {
			e.queueClose(ref, row.Socket)
		}
		return
	}

	f.Send.BytesOut += int(res)
	if f.Send.BytesOut >= len(f.Send.Buf) {
		bufpool.Free(f.Send.Buf)
		e.frames.Release(f)
		return
	}

	// partial send: continue from bytes_out until buffer_size, resolving
	// spec.md §9's partial-send open question instead of dropping the tail.
	row, ok := e.sessions.Resolve(f.Session)
	if !ok {
		bufpool.Free(f.Send.Buf)
		e.frames.Release(f)
		return
	}
	e.queueSend(f, row.Socket)
}

func (e *Engine) onClose(f *session.Frame, res int32) {
	ref := f.Session
	e.frames.Release(f)
	if ref.Valid() {
		e.sessions.Release(ref)
	}
	if res < 0 {
		e.log.Warn("close completion reported an error", logging.Int("errno", int(-res)))
	}
}
