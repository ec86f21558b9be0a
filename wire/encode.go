package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodedSize returns the exact number of bytes Encode will write for p,
// tag byte included. This replaces the legacy "probe with a null buffer"
// idiom: callers size a buffer once, then Encode into it, instead of
// calling the encoder twice.
func EncodedSize(p Packet) int {
	switch v := p.(type) {
	case Heartbeat:
		return 1
	case AuthResponse:
		return 1 + 4 + strSize(v.Unknown0) + strSize(v.Unknown1)
	case HandshakeResponse:
		return 1 + strSize(v.Unknown)
	case Time:
		return 1 + 8
	case PlayerTransformResponse:
		return 1 + 8*4 + 4*2 + 1
	case Chunk:
		return 1 + 4 + 4 + 1
	case ChunkData:
		return 1 + 4 + 2 + 4 + 1 + 1 + 1 + 4 + len(v.Data)
	case Disconnect:
		return 1 + strSize(v.Message)
	// request-direction packets are encodable too (useful for tests and
	// for a bot/client harness exercising this codec from the other
	// side); sizes mirror their decode bodies.
	case AuthRequest:
		return 1 + 4 + strSize(v.Username) + strSize(v.Password)
	case HandshakeRequest:
		return 1 + strSize(v.Name)
	case PlayerGrounded:
		return 1 + 1
	case PlayerPosition:
		return 1 + 8*4 + 1
	case PlayerRotation:
		return 1 + 4*2 + 1
	case PlayerTransformRequest:
		return 1 + 8*4 + 4*2 + 1
	default:
		panic(fmt.Sprintf("wire: EncodedSize: unknown packet type %T", p))
	}
}

func strSize(s string) int { return 2 + len(s) }

// Encode writes p into buf, which must be at least EncodedSize(p) bytes,
// and returns the number of bytes written.
func Encode(buf []byte, p Packet) int {
	if len(buf) < EncodedSize(p) {
		panic("wire: Encode: buffer too small, call EncodedSize first")
	}
	buf[0] = byte(p.Tag())
	w := writer{buf: buf, off: 1}

	switch v := p.(type) {
	case Heartbeat:
		// no body

	case AuthResponse:
		w.i32(v.EntityID)
		w.str(v.Unknown0)
		w.str(v.Unknown1)

	case HandshakeResponse:
		w.str(v.Unknown)

	case Time:
		w.i64(v.Ticks)

	case PlayerTransformResponse:
		// wire order: x, head_y, y, z (swapped relative to the request)
		w.f64(v.X)
		w.f64(v.HeadY)
		w.f64(v.Y)
		w.f64(v.Z)
		w.f32(v.Yaw)
		w.f32(v.Pitch)
		w.bool8(v.Grounded)

	case Chunk:
		w.i32(v.X)
		w.i32(v.Z)
		w.bool8(v.Initialize)

	case ChunkData:
		w.i32(v.X)
		w.i16(v.Y)
		w.i32(v.Z)
		w.u8(v.XSize)
		w.u8(v.YSize)
		w.u8(v.ZSize)
		w.i32(int32(len(v.Data)))
		w.raw(v.Data)

	case Disconnect:
		w.str(v.Message)

	case AuthRequest:
		w.i32(v.ProtocolVersion)
		w.str(v.Username)
		w.str(v.Password)

	case HandshakeRequest:
		w.str(v.Name)

	case PlayerGrounded:
		w.bool8(v.Grounded)

	case PlayerPosition:
		w.f64(v.X)
		w.f64(v.Y)
		w.f64(v.HeadY)
		w.f64(v.Z)
		w.bool8(v.Grounded)

	case PlayerRotation:
		w.f32(v.Yaw)
		w.f32(v.Pitch)
		w.bool8(v.Grounded)

	case PlayerTransformRequest:
		w.f64(v.X)
		w.f64(v.Y)
		w.f64(v.HeadY)
		w.f64(v.Z)
		w.f32(v.Yaw)
		w.f32(v.Pitch)
		w.bool8(v.Grounded)

	default:
		panic(fmt.Sprintf("wire: Encode: unknown packet type %T", p))
	}

	return w.off
}

// writer is the mirror of reader: an append-only cursor over a
// pre-sized destination buffer.
type writer struct {
	buf []byte
	off int
}

func (w *writer) u8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *writer) bool8(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) i16(v int16) {
	binary.BigEndian.PutUint16(w.buf[w.off:], uint16(v))
	w.off += 2
}

func (w *writer) i32(v int32) {
	binary.BigEndian.PutUint32(w.buf[w.off:], uint32(v))
	w.off += 4
}

func (w *writer) i64(v int64) {
	binary.BigEndian.PutUint64(w.buf[w.off:], uint64(v))
	w.off += 8
}

func (w *writer) f32(v float32) {
	binary.BigEndian.PutUint32(w.buf[w.off:], math.Float32bits(v))
	w.off += 4
}

func (w *writer) f64(v float64) {
	binary.BigEndian.PutUint64(w.buf[w.off:], math.Float64bits(v))
	w.off += 8
}

func (w *writer) raw(v []byte) {
	copy(w.buf[w.off:], v)
	w.off += len(v)
}

func (w *writer) str(s string) {
	binary.BigEndian.PutUint16(w.buf[w.off:], uint16(len(s)))
	w.off += 2
	w.off += copy(w.buf[w.off:], s)
}
