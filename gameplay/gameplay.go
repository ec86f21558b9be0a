// Package gameplay defines the seam between the core and the external
// world-simulation collaborator. World state, entity simulation, physics,
// and chunk generation are explicitly out of scope for the core (spec.md
// §1); every decoded packet protostate does not itself interpret
// (movement, chunk traffic, and anything else beyond
// handshake/auth/heartbeat) is handed through this interface instead.
package gameplay

import "github.com/blockwire/obsidian/wire"

// Collaborator receives packets the core does not interpret.
// SessionID is the claiming session table row's index, stable for the
// packet's handling even though it is meaningless once the session is
// released.
type Collaborator interface {
	HandlePacket(sessionID int32, pkt wire.Packet)
}

// Discard is the Collaborator wired in when no external world simulation
// is present: every packet is dropped, matching the core's own documented
// fallback of "logged and ignored at this tier".
type Discard struct{}

func (Discard) HandlePacket(int32, wire.Packet) {}
