package session

import (
	"fmt"

	"github.com/blockwire/obsidian/internal/ringbuf"
	"github.com/blockwire/obsidian/wire"
)

// Status is a session's position in the protocol state machine (C8).
type Status uint8

const (
	StatusDisconnected Status = iota
	StatusHandshaking
	StatusAuthenticating
	StatusConnected
	StatusDisconnecting
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusHandshaking:
		return "handshaking"
	case StatusAuthenticating:
		return "authenticating"
	case StatusConnected:
		return "connected"
	case StatusDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Row is one connection record. Socket == 0 means the row is free.
type Row struct {
	Socket     int32
	Status     Status
	RemoteAddr uint32 // IPv4, host byte order
	RemotePort uint16
	Username   string // bounded wire.MaxUsernameLen, valid once Handshaking completes

	Ring   *ringbuf.Ring
	Cursor *ringbuf.Cursor

	BytesIn  uint64
	BytesOut uint64

	// LastActiveNanos supports the idle-timeout sweep (SPEC_FULL §4):
	// set on accept and bumped on every recv, compared against the clock by the
	// engine's periodic sweep rather than by the table itself, which has
	// no notion of wall-clock time.
	LastActiveNanos int64

	generation uint32
}

func (r *Row) free() bool { return r.Socket == 0 }

func (r *Row) reset() {
	r.Socket = 0
	r.Status = StatusDisconnected
	r.RemoteAddr = 0
	r.RemotePort = 0
	r.Username = ""
	r.Ring = nil
	r.Cursor = nil
	r.BytesIn = 0
	r.BytesOut = 0
	r.LastActiveNanos = 0
}

// Table is the C6 session table: a fixed-capacity array of rows, claimed
// by first-free-row scan.
type Table struct {
	rows      []Row
	highWater int
}

// NewTable creates a table with exactly capacity rows.
func NewTable(capacity int) (*Table, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("session: table capacity must be > 0, got %d", capacity)
	}
	return &Table{rows: make([]Row, capacity)}, nil
}

// Cap returns the table's fixed row capacity.
func (t *Table) Cap() int { return len(t.rows) }

// Claim scans for the first free row, marks it occupied with socket fd,
// and returns a Ref good until the row is next Released. Returns ok=false
// when every row is in use (accept-saturation, S6).
func (t *Table) Claim(socket int32) (Ref, *Row, bool) {
	for i := range t.rows {
		row := &t.rows[i]
		if row.free() {
			row.Socket = socket
			row.Status = StatusHandshaking
			if row.generation == 0 {
				row.generation = 1
			}
			active := 0
			for j := range t.rows {
				if !t.rows[j].free() {
					active++
				}
			}
			if active > t.highWater {
				t.highWater = active
			}
			return Ref{Index: int32(i), Generation: row.generation}, row, true
		}
	}
	return Ref{}, nil, false
}

// Resolve returns the row ref names, or ok=false if ref is stale (its
// generation doesn't match the row's current occupant) or out of range —
// the mechanism that rejects a completion that arrives after the row was
// released and reused.
func (t *Table) Resolve(ref Ref) (*Row, bool) {
	if !ref.Valid() || ref.Index < 0 || int(ref.Index) >= len(t.rows) {
		return nil, false
	}
	row := &t.rows[ref.Index]
	if row.free() || row.generation != ref.Generation {
		return nil, false
	}
	return row, true
}

// Release frees the row ref names and bumps its generation, invalidating
// every Ref issued for the old occupant. No-op (returns false) if ref is
// already stale.
func (t *Table) Release(ref Ref) bool {
	row, ok := t.Resolve(ref)
	if !ok {
		return false
	}
	ring := row.Ring
	row.reset()
	row.generation++
	if ring != nil {
		_ = ring.Close()
	}
	return true
}

// Stats is a snapshot of table occupancy, exposed for the periodic
// accounting summary (SPEC_FULL §4).
type Stats struct {
	Active    int
	Free      int
	HighWater int
}

// ForEachActive invokes fn for every occupied row, in table order. Used by
// the engine's idle-timeout sweep, which needs to visit every live session
// without the table exposing its backing slice.
func (t *Table) ForEachActive(fn func(ref Ref, row *Row)) {
	for i := range t.rows {
		row := &t.rows[i]
		if !row.free() {
			fn(Ref{Index: int32(i), Generation: row.generation}, row)
		}
	}
}

// Stats returns a snapshot of current table occupancy.
func (t *Table) Stats() Stats {
	active := 0
	for i := range t.rows {
		if !t.rows[i].free() {
			active++
		}
	}
	return Stats{Active: active, Free: len(t.rows) - active, HighWater: t.highWater}
}

// SetUsername bounds-checks name against wire.MaxUsernameLen before
// storing it, enforcing session table invariant (b).
func (r *Row) SetUsername(name string) bool {
	if len(name) > wire.MaxUsernameLen {
		return false
	}
	r.Username = name
	return true
}
