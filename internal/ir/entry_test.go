package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_RoundTrip(t *testing.T) {
	at := time.Date(2024, 4, 1, 9, 30, 0, 250*int(time.Millisecond), time.UTC)
	ts := FromTime(at)

	assert.Equal(t, Timestamp(at.UnixMilli()), ts)
	assert.True(t, at.Equal(ts.Time()))
}

func TestKind_IsBarrier(t *testing.T) {
	tests := []struct {
		kind    Kind
		barrier bool
	}{
		{KindDisplay, false},
		{KindUndo, false},
		{KindGross, true},
		{KindErase, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.barrier, tt.kind.IsBarrier())
			assert.True(t, tt.kind.Valid())
		})
	}
	assert.False(t, Kind("X").Valid())
	assert.False(t, Kind("").Valid())
}

func TestNewLocal_ReceivedEqualsSent(t *testing.T) {
	e := NewLocal("me", "Me", RoleAuthor, KindDisplay, "hello", 1200)

	assert.Equal(t, Timestamp(1200), e.SentAt)
	assert.Equal(t, Timestamp(1200), e.ReceivedAt)
	assert.Equal(t, StateActive, e.State)
	assert.False(t, e.Undone())
	assert.False(t, e.IsComplement())
}

func TestEntry_Complement(t *testing.T) {
	e := NewReceived("a", "A", RoleAuthor, KindDisplay, "hello", 2000, 2100)
	e.Lines = []string{"hello"}

	c := e.Complement(1500)

	require.True(t, c.IsComplement())
	assert.Equal(t, Timestamp(1500), c.SortTime())
	assert.Equal(t, Timestamp(2000), c.SentAt)
	assert.Equal(t, Timestamp(2100), c.RecvTime())
	assert.Nil(t, c.Lines)

	assert.False(t, e.IsComplement(), "original is untouched")
	assert.Equal(t, Timestamp(2000), e.SortTime())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "undone", StateUndone.String())
	assert.Equal(t, "unknown", State(7).String())
}
