// Package protostate implements the protocol state machine (C8): the
// per-session status transitions and per-packet handlers that decide what
// the engine should send back, and whether the session should be torn
// down.
package protostate

import (
	"fmt"

	"github.com/blockwire/obsidian/logging"
	"github.com/blockwire/obsidian/session"
	"github.com/blockwire/obsidian/wire"
)

// Outcome is what Dispatch decided should happen with one decoded packet.
type Outcome struct {
	// Replies are packets the engine should encode and send, in order. A
	// disconnecting Outcome's Replies holds exactly one Disconnect packet
	// carrying the human-readable reason.
	Replies []wire.Packet
	// Disconnect, if true, tells the engine to close the session once
	// Replies has been sent.
	Disconnect bool
}

func disconnect(reason string) Outcome {
	return Outcome{Replies: []wire.Packet{wire.Disconnect{Message: reason}}, Disconnect: true}
}

func reply(p wire.Packet) Outcome {
	return Outcome{Replies: []wire.Packet{p}}
}

// Dispatch advances row's status (if applicable) in response to pkt and
// reports what the engine should send and whether to tear the session
// down. It never mutates row.Status except on the transitions spec.md §4.8
// names.
func Dispatch(row *session.Row, pkt wire.Packet, log logging.Logger) Outcome {
	switch p := pkt.(type) {
	case wire.HandshakeRequest:
		if row.Status != session.StatusHandshaking {
			log.Warn("handshake received outside handshaking state", logging.Str("status", row.Status.String()))
			return disconnect("unexpected handshake")
		}
		if !row.SetUsername(p.Name) {
			log.Warn("handshake username exceeds cap", logging.Int("len", len(p.Name)))
			return disconnect("username too long")
		}
		row.Status = session.StatusAuthenticating
		return reply(wire.HandshakeResponse{Unknown: "-"})

	case wire.AuthRequest:
		if row.Status != session.StatusAuthenticating {
			log.Warn("authentication received outside authenticating state", logging.Str("status", row.Status.String()))
			return disconnect("unexpected authentication")
		}
		if p.ProtocolVersion != 1 {
			log.Warn("protocol version mismatch", logging.Int("got", int(p.ProtocolVersion)))
			return disconnect("protocol version mismatch")
		}
		row.Status = session.StatusConnected
		return reply(wire.AuthResponse{EntityID: 0})

	case wire.Heartbeat:
		return reply(wire.Heartbeat{})

	default:
		log.Debug("ignoring packet outside core scope", logging.Str("tag", fmt.Sprintf("0x%02X", byte(pkt.Tag()))))
		return Outcome{}
	}
}
