package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sksthrs/mekiku/internal/ir"
	"github.com/sksthrs/mekiku/internal/store"
	fake "github.com/sksthrs/mekiku/internal/testutil"
)

func openJournal(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// playSession drives a mixed local and remote session into e.
func playSession(t *testing.T, e *Engine, clock *fake.ManualClock) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.Join(ctx, 900))
	_, err := e.SendDisplay(ctx, "good morning")
	require.NoError(t, err)
	receive(t, e, "peer-a", 1100, payload(t, 1050, ir.KindDisplay, "welcome all"))
	receive(t, e, "peer-b", 1150, undoPayload(t, 1140, "peer-a", 1300))

	clock.Advance(500 * time.Millisecond)
	_, err = e.SendDisplay(ctx, "typo here")
	require.NoError(t, err)
	_, err = e.Undo(ctx)
	require.NoError(t, err)

	receive(t, e, "peer-a", 1600, payload(t, 1300, ir.KindDisplay, "retracted"))
	receive(t, e, "peer-c", 1400, payload(t, 1000, ir.KindDisplay, "late line"))
	receive(t, e, "peer-a", 1700, payload(t, 1650, ir.KindGross, "agenda"))
	_, err = e.SendDisplay(ctx, "next item")
	require.NoError(t, err)
}

func TestReplay_ReproducesSession(t *testing.T) {
	journal := openJournal(t)
	live, clock := newTestEngine(t, WithJournal(journal))
	playSession(t, live, clock)

	sess, err := journal.ReadSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.SenderID("me"), sess.SenderID)
	assert.Equal(t, ir.Timestamp(900), sess.JoinTime)

	records, err := journal.ReadPackets(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 9)

	replayed, _ := newTestEngine(t)
	replayed.log.SetJoinTime(sess.JoinTime)
	n, err := replayed.Replay(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, len(records), n)

	assert.Equal(t, live.Transcript(), replayed.Transcript())
	assert.Equal(t, live.Visible(), replayed.Visible())
	assert.Equal(t, live.Position(), replayed.Position())
	assert.Equal(t, live.Entries(), replayed.Entries())
	assert.Equal(t, live.clock.Current(), replayed.clock.Current())
	assert.Equal(t, live.sendSeq.Current(), replayed.sendSeq.Current())
}

func TestReplay_LiveSessionShape(t *testing.T) {
	e, clock := newTestEngine(t)
	playSession(t, e, clock)

	assert.Equal(t, []string{"good morning", "welcome all", "late line", "agenda", "next item"}, e.Transcript())
	assert.Equal(t, 0, e.PendingUndos())
}

func TestReplay_DoesNotJournal(t *testing.T) {
	journal := openJournal(t)
	e, _ := newTestEngine(t, WithJournal(journal))

	records := []store.Record{
		{Seq: 4, Origin: store.OriginRemote, SenderID: "peer-a", ReceivedAt: 1100, Payload: payload(t, 1000, ir.KindDisplay, "hi")},
	}
	_, err := e.Replay(context.Background(), records)
	require.NoError(t, err)

	stored, err := journal.ReadPackets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)

	// the journal clock continues after the replayed seq
	_, err = e.SendDisplay(context.Background(), "after")
	require.NoError(t, err)
	last, err := journal.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)
}

func TestReplay_Malformed(t *testing.T) {
	e, _ := newTestEngine(t)

	records := []store.Record{
		{Seq: 1, Origin: store.OriginRemote, SenderID: "peer-a", ReceivedAt: 1100, Payload: payload(t, 1000, ir.KindDisplay, "ok")},
		{Seq: 2, Origin: store.OriginRemote, SenderID: "peer-a", ReceivedAt: 1200, Payload: []byte("not json")},
	}
	n, err := e.Replay(context.Background(), records)

	assert.Equal(t, 1, n)
	require.True(t, IsMalformed(err))
	var pe *ProcessError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, int64(2), pe.Seq)
}

func TestReplay_UnknownOrigin(t *testing.T) {
	e, _ := newTestEngine(t)

	records := []store.Record{
		{Seq: 1, Origin: "mirror", SenderID: "peer-a", ReceivedAt: 1100, Payload: payload(t, 1000, ir.KindDisplay, "ok")},
	}
	_, err := e.Replay(context.Background(), records)
	assert.ErrorContains(t, err, "unknown origin")
}

func TestReplay_Cancelled(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := e.Replay(ctx, []store.Record{{Seq: 1}})
	assert.Zero(t, n)
	assert.ErrorIs(t, err, context.Canceled)
}
