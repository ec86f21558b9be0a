package session

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableClaimAndRelease(t *testing.T) {
	tbl, err := NewTable(2)
	require.NoError(t, err)

	ref1, row1, ok := tbl.Claim(10)
	require.True(t, ok)
	assert.Equal(t, StatusHandshaking, row1.Status)

	ref2, _, ok := tbl.Claim(11)
	require.True(t, ok)
	assert.NotEqual(t, ref1.Index, ref2.Index)

	assert.Equal(t, Stats{Active: 2, Free: 0, HighWater: 2}, tbl.Stats())

	require.True(t, tbl.Release(ref1))
	assert.Equal(t, Stats{Active: 1, Free: 1, HighWater: 2}, tbl.Stats())
}

// TestAcceptSaturation is scenario S6: with capacity 2 and two active
// sessions, a third claim fails cleanly and the table keeps serving.
func TestAcceptSaturation(t *testing.T) {
	tbl, err := NewTable(2)
	require.NoError(t, err)

	_, _, ok := tbl.Claim(1)
	require.True(t, ok)
	_, _, ok = tbl.Claim(2)
	require.True(t, ok)

	_, _, ok = tbl.Claim(3)
	assert.False(t, ok, "claim must fail cleanly once the table is full")

	assert.Equal(t, 2, tbl.Stats().Active)
}

func TestResolveRejectsStaleGeneration(t *testing.T) {
	tbl, err := NewTable(1)
	require.NoError(t, err)

	ref, _, ok := tbl.Claim(5)
	require.True(t, ok)
	require.True(t, tbl.Release(ref))

	// the row was reused, but the stale ref from before release must not
	// resolve to the new occupant.
	newRef, _, ok := tbl.Claim(6)
	require.True(t, ok)
	assert.NotEqual(t, ref.Generation, newRef.Generation)

	_, resolved := tbl.Resolve(ref)
	assert.False(t, resolved)

	row, resolved := tbl.Resolve(newRef)
	assert.True(t, resolved)
	assert.Equal(t, int32(6), row.Socket)
}

func TestSetUsernameEnforcesLengthCap(t *testing.T) {
	tbl, err := NewTable(1)
	require.NoError(t, err)
	_, row, ok := tbl.Claim(1)
	require.True(t, ok)

	assert.True(t, row.SetUsername("Steve"))
	assert.Equal(t, "Steve", row.Username)

	assert.False(t, row.SetUsername("SeventeenLettersX"))
	assert.Equal(t, "Steve", row.Username, "rejected username must not overwrite the existing one")
}

func TestFrameRegistryCreateRelease(t *testing.T) {
	reg, err := NewRegistry(4)
	require.NoError(t, err)

	f := reg.Create(KindAccept, NoSession)
	require.NotNil(t, f)
	assert.Equal(t, KindAccept, f.Kind)
	assert.Equal(t, uint64(1), f.TraceID)
	assert.Equal(t, 1, reg.InUse())

	ud := UserData(f)
	got := FrameFromUserData(ud)
	assert.Same(t, f, got)

	reg.Release(f)
	assert.Equal(t, 0, reg.InUse())
}

func TestFrameRegistryExhaustionReturnsNil(t *testing.T) {
	reg, err := NewRegistry(1)
	require.NoError(t, err)

	f1 := reg.Create(KindReceive, NoSession)
	require.NotNil(t, f1)

	f2 := reg.Create(KindReceive, NoSession)
	assert.Nil(t, f2)

	reg.Release(f1)
	f3 := reg.Create(KindReceive, NoSession)
	assert.NotNil(t, f3)
}

// TestRandomClaimReleaseSequence exercises the table under a long random
// sequence of claims and releases, checking Stats stays consistent with a
// parallel reference model — the table-level analogue of the pool
// package's randomized alloc/free test.
func TestRandomClaimReleaseSequence(t *testing.T) {
	const capacity = 16
	tbl, err := NewTable(capacity)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(11))
	live := map[int32]Ref{}

	for i := 0; i < 20000; i++ {
		if len(live) < capacity && (len(live) == 0 || r.Intn(2) == 0) {
			ref, row, ok := tbl.Claim(int32(i + 1))
			require.True(t, ok)
			live[ref.Index] = ref
			assert.Equal(t, int32(i+1), row.Socket)
		} else if len(live) > 0 {
			var victim int32
			for k := range live {
				victim = k
				break
			}
			ref := live[victim]
			require.True(t, tbl.Release(ref))
			delete(live, victim)
		}
		assert.Equal(t, len(live), tbl.Stats().Active)
	}
}
