package engine

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/blockwire/obsidian/gameplay"
	"github.com/blockwire/obsidian/internal/iouring"
	"github.com/blockwire/obsidian/internal/ringbuf"
	"github.com/blockwire/obsidian/logging"
	"github.com/blockwire/obsidian/session"
	"github.com/blockwire/obsidian/wire"
	"github.com/stretchr/testify/require"
)

// skipIfUnsupported skips when a ring cannot be set up: these tests
// submit real operations against a real ring and need kernel support.
func skipIfUnsupported(t *testing.T) {
	t.Helper()
	ring, err := iouring.NewIOUring(2)
	if err != nil {
		t.Skip("io_uring not supported in this environment")
	}
	ring.Close()
}

// newTestEngine wires an Engine against a real io_uring instance with no
// listening socket (listenFD -1, since these tests drive completions
// directly rather than through bindListen/queueAccept), plus a connected
// AF_UNIX stream pair standing in for a client socket.
func newTestEngine(t *testing.T) (e *Engine, serverFD, peerFD int) {
	t.Helper()
	skipIfUnsupported(t)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})

	ring, err := iouring.NewIOUring(32)
	require.NoError(t, err)
	t.Cleanup(func() { ring.Close() })

	frames, err := session.NewRegistry(32)
	require.NoError(t, err)
	sessions, err := session.NewTable(4)
	require.NoError(t, err)

	e = &Engine{
		ring:         ring,
		frames:       frames,
		sessions:     sessions,
		listenFD:     -1,
		log:          logging.Default(),
		collaborator: gameplay.Discard{},
	}
	return e, fds[0], fds[1]
}

func claimRow(t *testing.T, e *Engine, fd int, status session.Status) (session.Ref, *session.Row) {
	t.Helper()
	ref, row, ok := e.sessions.Claim(int32(fd))
	require.True(t, ok)
	ring, err := ringbuf.Alloc(4096, 2)
	require.NoError(t, err)
	t.Cleanup(func() { ring.Close() })
	row.Ring = ring
	row.Cursor = ringbuf.NewCursor(ring)
	row.Status = status
	return ref, row
}

func fillRecv(t *testing.T, row *session.Row, pkt wire.Packet) {
	t.Helper()
	buf := make([]byte, wire.EncodedSize(pkt))
	wire.Encode(buf, pkt)
	view := row.Cursor.WritableView()
	require.GreaterOrEqual(t, len(view), len(buf))
	copy(view, buf)
	row.Cursor.AdvanceWrite(uint64(len(buf)))
}

func readAll(t *testing.T, fd int, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	for len(out) < n {
		buf := make([]byte, n-len(out))
		read, err := unix.Read(fd, buf)
		require.NoError(t, err)
		require.Greater(t, read, 0)
		out = append(out, buf[:read]...)
	}
	return out
}

// TestDrainDecodeHandshakeSendsResponse exercises the S1 happy path through
// the engine itself: a full HandshakeRequest lands in the ring buffer,
// drainDecode consumes it in one pass, dispatches it to protostate, and the
// reply is queued and submitted over a real socket.
func TestDrainDecodeHandshakeSendsResponse(t *testing.T) {
	e, serverFD, peerFD := newTestEngine(t)
	ref, row := claimRow(t, e, serverFD, session.StatusHandshaking)

	fillRecv(t, row, wire.HandshakeRequest{Name: "Steve"})
	e.drainDecode(ref, row)
	require.NoError(t, e.submit())

	want := make([]byte, wire.EncodedSize(wire.HandshakeResponse{Unknown: "-"}))
	wire.Encode(want, wire.HandshakeResponse{Unknown: "-"})
	got := readAll(t, peerFD, len(want))
	require.Equal(t, want, got)
	require.Equal(t, session.StatusAuthenticating, row.Status)
}

// TestDrainDecodeMalformedPacketDisconnects covers the Invalid branch: an
// unknown tag byte must produce a Disconnect reply and tear the session
// down rather than being silently dropped.
func TestDrainDecodeMalformedPacketDisconnects(t *testing.T) {
	e, serverFD, peerFD := newTestEngine(t)
	ref, row := claimRow(t, e, serverFD, session.StatusConnected)

	view := row.Cursor.WritableView()
	view[0] = 0xFE // no decoder registers this tag
	row.Cursor.AdvanceWrite(1)

	e.drainDecode(ref, row)
	require.NoError(t, e.submit())

	require.Equal(t, session.StatusDisconnecting, row.Status)

	disc := make([]byte, 1)
	read, err := unix.Read(peerFD, disc)
	require.NoError(t, err)
	require.Equal(t, byte(wire.TagDisconnect), disc[:read][0])
}

// TestDrainDecodeShortReadRequeuesRecv is scenario S4: a truncated
// HandshakeRequest leaves the decoder asking for more bytes, which must
// not be treated as Invalid and must not advance row.Status.
func TestDrainDecodeShortReadRequeuesRecv(t *testing.T) {
	e, serverFD, _ := newTestEngine(t)
	ref, row := claimRow(t, e, serverFD, session.StatusHandshaking)

	full := make([]byte, wire.EncodedSize(wire.HandshakeRequest{Name: "Steve"}))
	wire.Encode(full, wire.HandshakeRequest{Name: "Steve"})
	view := row.Cursor.WritableView()
	copy(view, full[:len(full)-1])
	row.Cursor.AdvanceWrite(uint64(len(full) - 1))

	e.drainDecode(ref, row)

	require.Equal(t, session.StatusHandshaking, row.Status, "a short read must not dispatch a partial packet")
	require.Equal(t, uint64(len(full)-1), row.Cursor.Readable(), "the partial bytes must stay in the ring for the next recv")
	require.Equal(t, uint32(1), e.ring.PendingSQEs(), "a short read must queue a follow-up recv")
}

// TestOnSendContinuesPartialWrite exercises the partial-send continuation:
// onSend must re-queue the remainder of a frame's buffer instead of
// dropping it once fewer bytes land than were requested.
func TestOnSendContinuesPartialWrite(t *testing.T) {
	e, serverFD, peerFD := newTestEngine(t)
	ref, row := claimRow(t, e, serverFD, session.StatusConnected)

	payload := []byte("this is not the whole reply")
	f := e.frames.Create(session.KindSend, ref)
	require.NotNil(t, f)
	f.Send.Buf = payload

	half := len(payload) / 2
	e.onSend(f, int32(half)) // simulates a completion reporting only the first half sent
	require.Equal(t, half, f.Send.BytesOut, "onSend must record progress instead of treating res as the whole transfer")
	require.NoError(t, e.submit())

	cqe, err := e.ring.WaitCQE()
	require.NoError(t, err)
	require.Equal(t, int32(len(payload)-half), cqe.Res, "the re-queued send must cover exactly the remainder")
	e.ring.AdvanceCQ()

	got := readAll(t, peerFD, len(payload)-half)
	require.Equal(t, payload[half:], got, "only the unsent tail must have actually reached the wire")
	_ = row
}

// TestOnCloseReleasesSession ensures a CLOSE completion frees the session
// row so a stale completion against the same ref is later rejected.
func TestOnCloseReleasesSession(t *testing.T) {
	e, serverFD, _ := newTestEngine(t)
	ref, _ := claimRow(t, e, serverFD, session.StatusConnected)

	f := e.frames.Create(session.KindClose, ref)
	require.NotNil(t, f)
	e.onClose(f, 0)

	_, ok := e.sessions.Resolve(ref)
	require.False(t, ok, "a released session must reject its old ref")
}
