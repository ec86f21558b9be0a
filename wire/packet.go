// Package wire implements the pre-Netty Minecraft packet codec: a set of
// pure encode/decode functions, network byte order throughout, no I/O.
//
// Decoding follows the three-state convention from the spec this codec
// implements: every decode attempt yields exactly one of "consumed N
// bytes", "need K more bytes to make progress", or "invalid, disconnect".
// It is modeled here as the Result sum type (see result.go) rather than
// as a bare int, per the redesign note that the numeric convention is a
// wire detail of the legacy source, not of the public API — see
// result.go's doc comment for the legacy numeric mapping kept for parity
// with the spec's own worked examples.
package wire

// Tag identifies a packet's wire type — the one byte every packet leads
// with.
type Tag byte

const (
	TagHeartbeat      Tag = 0x00
	TagAuthentication Tag = 0x01
	TagHandshake      Tag = 0x02
	TagTime           Tag = 0x04
	TagPlayerGrounded Tag = 0x0A
	TagPlayerPosition Tag = 0x0B
	TagPlayerRotation Tag = 0x0C
	TagPlayerTransform Tag = 0x0D
	TagChunk          Tag = 0x32
	TagChunkData      Tag = 0x33
	TagDisconnect     Tag = 0xFF
)

// MaxUsernameLen and MaxPasswordLen are the wire-level sanity caps from
// the spec: decoders reject (Invalid) any longer length-prefix rather
// than trusting the client's stated length.
const (
	MaxUsernameLen = 16
	MaxPasswordLen = 32
)

// MaxChunkDataBytes caps the compressed_size field of CHUNK_DATA so a
// corrupt or hostile 4-byte length can't force a multi-gigabyte
// allocation before the decoder even knows whether the bytes exist. No
// legacy chunk ever compresses anywhere near this large.
const MaxChunkDataBytes = 2 << 20 // 2 MiB

// Packet is implemented by every decoded or encodable packet body.
type Packet interface {
	Tag() Tag
}

// Heartbeat is the empty keep-alive packet, tag 0x00, mirrored by the
// server on receipt. Direction: both.
type Heartbeat struct{}

func (Heartbeat) Tag() Tag { return TagHeartbeat }

// AuthRequest is the client->server AUTHENTICATION packet.
type AuthRequest struct {
	ProtocolVersion int32
	Username        string
	Password        string
}

func (AuthRequest) Tag() Tag { return TagAuthentication }

// AuthResponse is the server->client AUTHENTICATION reply.
type AuthResponse struct {
	EntityID int32
	Unknown0 string
	Unknown1 string
}

func (AuthResponse) Tag() Tag { return TagAuthentication }

// HandshakeRequest is the client->server HANDSHAKE packet.
type HandshakeRequest struct {
	Name string
}

func (HandshakeRequest) Tag() Tag { return TagHandshake }

// HandshakeResponse is the server->client HANDSHAKE reply.
type HandshakeResponse struct {
	Unknown string
}

func (HandshakeResponse) Tag() Tag { return TagHandshake }

// Time is the server->client tick broadcast.
type Time struct {
	Ticks int64
}

func (Time) Tag() Tag { return TagTime }

// PlayerGrounded is the client->server on-ground flag update.
type PlayerGrounded struct {
	Grounded bool
}

func (PlayerGrounded) Tag() Tag { return TagPlayerGrounded }

// PlayerPosition is the client->server position update.
type PlayerPosition struct {
	X, Y, HeadY, Z float64
	Grounded       bool
}

func (PlayerPosition) Tag() Tag { return TagPlayerPosition }

// PlayerRotation is the client->server look update.
type PlayerRotation struct {
	Yaw, Pitch float32
	Grounded   bool
}

func (PlayerRotation) Tag() Tag { return TagPlayerRotation }

// PlayerTransformRequest is the client->server combined position+look
// update.
type PlayerTransformRequest struct {
	X, Y, HeadY, Z float64
	Yaw, Pitch     float32
	Grounded       bool
}

func (PlayerTransformRequest) Tag() Tag { return TagPlayerTransform }

// PlayerTransformResponse is the server->client combined position+look
// update. Same fields as the request, but the wire layout swaps HeadY
// and Y (x, head_y, y, z) — a legacy quirk preserved exactly because
// clients of this era parse it positionally.
type PlayerTransformResponse struct {
	X, Y, HeadY, Z float64
	Yaw, Pitch     float32
	Grounded       bool
}

func (PlayerTransformResponse) Tag() Tag { return TagPlayerTransform }

// Chunk announces a chunk column's presence (or removal).
type Chunk struct {
	X, Z       int32
	Initialize bool
}

func (Chunk) Tag() Tag { return TagChunk }

// ChunkData carries a compressed chunk sub-volume.
type ChunkData struct {
	X                      int32
	Y                      int16
	Z                      int32
	XSize, YSize, ZSize    uint8
	Data                   []byte
}

func (ChunkData) Tag() Tag { return TagChunkData }

// Disconnect carries a human-readable reason. Direction: both.
type Disconnect struct {
	Message string
}

func (Disconnect) Tag() Tag { return TagDisconnect }
