package protostate

import (
	"testing"

	"github.com/blockwire/obsidian/logging"
	"github.com/blockwire/obsidian/session"
	"github.com/blockwire/obsidian/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Trace(string, ...logging.Field) {}
func (nopLogger) Debug(string, ...logging.Field) {}
func (nopLogger) Info(string, ...logging.Field)  {}
func (nopLogger) Warn(string, ...logging.Field)  {}
func (nopLogger) Error(string, ...logging.Field) {}
func (nopLogger) Fatal(string, ...logging.Field) {}

func newRow(t *testing.T, status session.Status) *session.Row {
	t.Helper()
	tbl, err := session.NewTable(1)
	require.NoError(t, err)
	_, row, ok := tbl.Claim(1)
	require.True(t, ok)
	row.Status = status
	return row
}

// TestS1HandshakeHappyPath is scenario S1.
func TestS1HandshakeHappyPath(t *testing.T) {
	row := newRow(t, session.StatusHandshaking)
	out := Dispatch(row, wire.HandshakeRequest{Name: "Steve"}, nopLogger{})

	assert.False(t, out.Disconnect)
	require.Len(t, out.Replies, 1)
	assert.Equal(t, wire.HandshakeResponse{Unknown: "-"}, out.Replies[0])
	assert.Equal(t, session.StatusAuthenticating, row.Status)
	assert.Equal(t, "Steve", row.Username)
}

// TestS2AuthVersionMismatch is scenario S2.
func TestS2AuthVersionMismatch(t *testing.T) {
	row := newRow(t, session.StatusAuthenticating)
	out := Dispatch(row, wire.AuthRequest{ProtocolVersion: 2, Username: "Steve"}, nopLogger{})

	assert.True(t, out.Disconnect)
	require.Len(t, out.Replies, 1)
	_, isDisconnect := out.Replies[0].(wire.Disconnect)
	assert.True(t, isDisconnect)
	assert.Equal(t, session.StatusAuthenticating, row.Status, "a rejected auth must not advance status")
}

// TestS3AuthHappyPath is scenario S3.
func TestS3AuthHappyPath(t *testing.T) {
	row := newRow(t, session.StatusAuthenticating)
	out := Dispatch(row, wire.AuthRequest{ProtocolVersion: 1, Username: "Steve"}, nopLogger{})

	assert.False(t, out.Disconnect)
	require.Len(t, out.Replies, 1)
	assert.Equal(t, wire.AuthResponse{EntityID: 0}, out.Replies[0])
	assert.Equal(t, session.StatusConnected, row.Status)
}

// TestS5Heartbeat is scenario S5.
func TestS5Heartbeat(t *testing.T) {
	row := newRow(t, session.StatusConnected)
	out := Dispatch(row, wire.Heartbeat{}, nopLogger{})

	assert.False(t, out.Disconnect)
	require.Len(t, out.Replies, 1)
	assert.Equal(t, wire.Heartbeat{}, out.Replies[0])
}

func TestHandshakeInWrongStateDisconnects(t *testing.T) {
	row := newRow(t, session.StatusConnected)
	out := Dispatch(row, wire.HandshakeRequest{Name: "Steve"}, nopLogger{})
	assert.True(t, out.Disconnect)
}

func TestAuthInWrongStateDisconnects(t *testing.T) {
	row := newRow(t, session.StatusHandshaking)
	out := Dispatch(row, wire.AuthRequest{ProtocolVersion: 1, Username: "Steve"}, nopLogger{})
	assert.True(t, out.Disconnect)
}

func TestUnrecognizedPacketIsIgnored(t *testing.T) {
	row := newRow(t, session.StatusConnected)
	out := Dispatch(row, wire.PlayerGrounded{Grounded: true}, nopLogger{})
	assert.False(t, out.Disconnect)
	assert.Empty(t, out.Replies)
	assert.Equal(t, session.StatusConnected, row.Status)
}
