package wire

import (
	"encoding/binary"
	"math"
)

// reader is an incremental cursor over a not-yet-complete packet body. It
// never copies; every field read is a direct slice of the caller's
// buffer. A field read that runs past the end of buf reports how many
// more bytes are needed to read that field — not the packet's eventual
// total, which for variable-length packets (an embedded string) can only
// be known once its length prefix has itself been read. Once the prefix
// is read, the remaining amount is exact.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) u8() (v byte, need int, ok bool) {
	if r.remaining() < 1 {
		return 0, 1 - r.remaining(), false
	}
	v = r.buf[r.off]
	r.off++
	return v, 0, true
}

func (r *reader) bool8() (v bool, need int, ok bool) {
	b, need, ok := r.u8()
	return b != 0, need, ok
}

func (r *reader) i16() (v int16, need int, ok bool) {
	if r.remaining() < 2 {
		return 0, 2 - r.remaining(), false
	}
	v = int16(binary.BigEndian.Uint16(r.buf[r.off:]))
	r.off += 2
	return v, 0, true
}

func (r *reader) i32() (v int32, need int, ok bool) {
	if r.remaining() < 4 {
		return 0, 4 - r.remaining(), false
	}
	v = int32(binary.BigEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return v, 0, true
}

func (r *reader) i64() (v int64, need int, ok bool) {
	if r.remaining() < 8 {
		return 0, 8 - r.remaining(), false
	}
	v = int64(binary.BigEndian.Uint64(r.buf[r.off:]))
	r.off += 8
	return v, 0, true
}

func (r *reader) f32() (v float32, need int, ok bool) {
	bits, need, ok := r.u32()
	if !ok {
		return 0, need, false
	}
	return math.Float32frombits(bits), 0, true
}

func (r *reader) f64() (v float64, need int, ok bool) {
	bits, need, ok := r.u64()
	if !ok {
		return 0, need, false
	}
	return math.Float64frombits(bits), 0, true
}

func (r *reader) u32() (v uint32, need int, ok bool) {
	if r.remaining() < 4 {
		return 0, 4 - r.remaining(), false
	}
	v = binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, 0, true
}

func (r *reader) u64() (v uint64, need int, ok bool) {
	if r.remaining() < 8 {
		return 0, 8 - r.remaining(), false
	}
	v = binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, 0, true
}

// bytesN reads exactly n raw bytes.
func (r *reader) bytesN(n int) (v []byte, need int, ok bool) {
	if r.remaining() < n {
		return nil, n - r.remaining(), false
	}
	v = r.buf[r.off : r.off+n]
	r.off += n
	return v, 0, true
}

// str reads a u16-length-prefixed UTF-8 string, rejecting (invalid) any
// stated length over maxLen.
func (r *reader) str(maxLen int) (v string, need int, ok bool, invalid bool) {
	if r.remaining() < 2 {
		return "", 2 - r.remaining(), false, false
	}
	n := int(binary.BigEndian.Uint16(r.buf[r.off:]))
	if n > maxLen {
		return "", 0, false, true
	}
	if r.remaining() < 2+n {
		return "", (2 + n) - r.remaining(), false, false
	}
	v = string(r.buf[r.off+2 : r.off+2+n])
	r.off += 2 + n
	return v, 0, true, false
}

// DecodeClientPacket reads the tag byte and dispatches to the per-kind
// decoder, returning the decoded packet and its Result. On anything but
// Consumed, the returned Packet is nil.
func DecodeClientPacket(buf []byte) (Packet, Result) {
	if len(buf) < 1 {
		return nil, NeedResult(1)
	}
	tag := Tag(buf[0])
	body := buf[1:]

	switch tag {
	case TagHeartbeat:
		return Heartbeat{}, ConsumedResult(1)
	case TagAuthentication:
		p, res := decodeAuthRequest(body)
		return p, withTag(res)
	case TagHandshake:
		p, res := decodeHandshakeRequest(body)
		return p, withTag(res)
	case TagPlayerGrounded:
		p, res := decodePlayerGrounded(body)
		return p, withTag(res)
	case TagPlayerPosition:
		p, res := decodePlayerPosition(body)
		return p, withTag(res)
	case TagPlayerRotation:
		p, res := decodePlayerRotation(body)
		return p, withTag(res)
	case TagPlayerTransform:
		p, res := decodePlayerTransformRequest(body)
		return p, withTag(res)
	case TagChunk:
		p, res := decodeChunk(body)
		return p, withTag(res)
	case TagChunkData:
		p, res := decodeChunkData(body)
		return p, withTag(res)
	case TagTime:
		p, res := decodeTime(body)
		return p, withTag(res)
	case TagDisconnect:
		p, res := decodeDisconnect(body)
		return p, withTag(res)
	default:
		return nil, InvalidResult()
	}
}

func decodeAuthRequest(body []byte) (Packet, Result) {
	r := reader{buf: body}
	version, need, ok := r.i32()
	if !ok {
		return nil, NeedResult(need)
	}
	username, need, ok, invalid := r.str(MaxUsernameLen)
	if invalid {
		return nil, InvalidResult()
	}
	if !ok {
		return nil, NeedResult(need)
	}
	password, need, ok, invalid := r.str(MaxPasswordLen)
	if invalid {
		return nil, InvalidResult()
	}
	if !ok {
		return nil, NeedResult(need)
	}
	return AuthRequest{ProtocolVersion: version, Username: username, Password: password}, ConsumedResult(r.off)
}

func decodeHandshakeRequest(body []byte) (Packet, Result) {
	r := reader{buf: body}
	name, need, ok, invalid := r.str(MaxUsernameLen)
	if invalid {
		return nil, InvalidResult()
	}
	if !ok {
		return nil, NeedResult(need)
	}
	return HandshakeRequest{Name: name}, ConsumedResult(r.off)
}

func decodePlayerGrounded(body []byte) (Packet, Result) {
	r := reader{buf: body}
	grounded, need, ok := r.bool8()
	if !ok {
		return nil, NeedResult(need)
	}
	return PlayerGrounded{Grounded: grounded}, ConsumedResult(r.off)
}

func decodePlayerPosition(body []byte) (Packet, Result) {
	r := reader{buf: body}
	x, need, ok := r.f64()
	if !ok {
		return nil, NeedResult(need)
	}
	y, need, ok := r.f64()
	if !ok {
		return nil, NeedResult(need)
	}
	headY, need, ok := r.f64()
	if !ok {
		return nil, NeedResult(need)
	}
	z, need, ok := r.f64()
	if !ok {
		return nil, NeedResult(need)
	}
	grounded, need, ok := r.bool8()
	if !ok {
		return nil, NeedResult(need)
	}
	return PlayerPosition{X: x, Y: y, HeadY: headY, Z: z, Grounded: grounded}, ConsumedResult(r.off)
}

func decodePlayerRotation(body []byte) (Packet, Result) {
	r := reader{buf: body}
	yaw, need, ok := r.f32()
	if !ok {
		return nil, NeedResult(need)
	}
	pitch, need, ok := r.f32()
	if !ok {
		return nil, NeedResult(need)
	}
	grounded, need, ok := r.bool8()
	if !ok {
		return nil, NeedResult(need)
	}
	return PlayerRotation{Yaw: yaw, Pitch: pitch, Grounded: grounded}, ConsumedResult(r.off)
}

func decodePlayerTransformRequest(body []byte) (Packet, Result) {
	r := reader{buf: body}
	x, need, ok := r.f64()
	if !ok {
		return nil, NeedResult(need)
	}
	y, need, ok := r.f64()
	if !ok {
		return nil, NeedResult(need)
	}
	headY, need, ok := r.f64()
	if !ok {
		return nil, NeedResult(need)
	}
	z, need, ok := r.f64()
	if !ok {
		return nil, NeedResult(need)
	}
	yaw, need, ok := r.f32()
	if !ok {
		return nil, NeedResult(need)
	}
	pitch, need, ok := r.f32()
	if !ok {
		return nil, NeedResult(need)
	}
	grounded, need, ok := r.bool8()
	if !ok {
		return nil, NeedResult(need)
	}
	return PlayerTransformRequest{X: x, Y: y, HeadY: headY, Z: z, Yaw: yaw, Pitch: pitch, Grounded: grounded}, ConsumedResult(r.off)
}

func decodeChunk(body []byte) (Packet, Result) {
	r := reader{buf: body}
	x, need, ok := r.i32()
	if !ok {
		return nil, NeedResult(need)
	}
	z, need, ok := r.i32()
	if !ok {
		return nil, NeedResult(need)
	}
	initialize, need, ok := r.bool8()
	if !ok {
		return nil, NeedResult(need)
	}
	return Chunk{X: x, Z: z, Initialize: initialize}, ConsumedResult(r.off)
}

func decodeChunkData(body []byte) (Packet, Result) {
	r := reader{buf: body}
	x, need, ok := r.i32()
	if !ok {
		return nil, NeedResult(need)
	}
	y, need, ok := r.i16()
	if !ok {
		return nil, NeedResult(need)
	}
	z, need, ok := r.i32()
	if !ok {
		return nil, NeedResult(need)
	}
	xSize, need, ok := r.u8()
	if !ok {
		return nil, NeedResult(need)
	}
	ySize, need, ok := r.u8()
	if !ok {
		return nil, NeedResult(need)
	}
	zSize, need, ok := r.u8()
	if !ok {
		return nil, NeedResult(need)
	}
	compressedSize, need, ok := r.i32()
	if !ok {
		return nil, NeedResult(need)
	}
	if compressedSize < 0 || compressedSize > MaxChunkDataBytes {
		return nil, InvalidResult()
	}
	data, need, ok := r.bytesN(int(compressedSize))
	if !ok {
		return nil, NeedResult(need)
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	return ChunkData{X: x, Y: y, Z: z, XSize: xSize, YSize: ySize, ZSize: zSize, Data: owned}, ConsumedResult(r.off)
}

func decodeTime(body []byte) (Packet, Result) {
	r := reader{buf: body}
	ticks, need, ok := r.i64()
	if !ok {
		return nil, NeedResult(need)
	}
	return Time{Ticks: ticks}, ConsumedResult(r.off)
}

func decodeDisconnect(body []byte) (Packet, Result) {
	r := reader{buf: body}
	msg, need, ok, invalid := r.str(math.MaxUint16)
	if invalid {
		return nil, InvalidResult()
	}
	if !ok {
		return nil, NeedResult(need)
	}
	return Disconnect{Message: msg}, ConsumedResult(r.off)
}
