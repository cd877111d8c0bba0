package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sksthrs/mekiku/internal/config"
	"github.com/sksthrs/mekiku/internal/ir"
	"github.com/sksthrs/mekiku/internal/metrics"
	"github.com/sksthrs/mekiku/internal/reflow"
	"github.com/sksthrs/mekiku/internal/store"
	fake "github.com/sksthrs/mekiku/internal/testutil"
	"github.com/sksthrs/mekiku/internal/transcript"
	"github.com/sksthrs/mekiku/internal/wire"
)

// testConfig wraps at ten runes and shows three lines.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Display = config.Display{Columns: 10, Lines: 3}
	return cfg
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fake.ManualClock) {
	t.Helper()
	clock := fake.NewManualClock(1000)
	base := []Option{
		WithConfig(testConfig()),
		WithIDGenerator(fake.NewFixedIDGenerator("me")),
		WithIdentity("Me", ir.RoleAuthor),
		WithNow(clock.Now),
	}
	return New(append(base, opts...)...), clock
}

// payload encodes a remote packet with a main body.
func payload(t *testing.T, sentAt ir.Timestamp, kind ir.Kind, text string) []byte {
	t.Helper()
	data, err := wire.Encode(wire.Packet{SenderName: "peer", Role: ir.RoleAuthor, Seq: 1, SentAt: sentAt, Kind: kind, Content: text})
	require.NoError(t, err)
	return data
}

func undoPayload(t *testing.T, sentAt ir.Timestamp, target ir.SenderID, targetSentAt ir.Timestamp) []byte {
	t.Helper()
	data, err := wire.Encode(wire.Packet{
		SenderName: "peer", Role: ir.RoleAuthor, Seq: 1, SentAt: sentAt,
		Undo: &wire.UndoNotice{SenderID: target, SentAt: targetSentAt},
	})
	require.NoError(t, err)
	return data
}

func receive(t *testing.T, e *Engine, sender ir.SenderID, receivedAt ir.Timestamp, data []byte) Decision {
	t.Helper()
	d, err := e.Receive(context.Background(), Inbound{SenderID: sender, ReceivedAt: receivedAt, Payload: data})
	require.NoError(t, err)
	return d
}

type failingJournal struct{}

func (failingJournal) WriteSession(context.Context, store.Session) error { return nil }
func (failingJournal) WritePacket(context.Context, store.Record) error {
	return errors.New("disk full")
}

func TestEngine_New(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, ir.SenderID("me"), e.SenderID())
	assert.NotNil(t, e.Metrics())
	assert.Empty(t, e.Transcript())
	assert.Equal(t, 0, e.QueueLen())
}

func TestEngine_NewGeneratesUUIDSender(t *testing.T) {
	e := New()
	assert.Len(t, string(e.SenderID()), 36)
}

func TestEngine_ReceiveDisplay(t *testing.T) {
	e, _ := newTestEngine(t)

	d := receive(t, e, "peer-a", 1100, payload(t, 1000, ir.KindDisplay, "hello"))

	assert.Equal(t, transcript.FlagChange, d.Flags)
	assert.False(t, d.Snap)
	assert.Equal(t, []string{"hello"}, d.Lines)
	assert.Equal(t, []string{"hello"}, e.Transcript())

	samples, err := e.Metrics().Snapshot()
	require.NoError(t, err)
	assert.Contains(t, samples, metrics.Sample{Name: "mekiku_entries_total", Labels: "outcome=" + metrics.EntryAppended, Value: 1})
}

func TestEngine_ReceiveMalformed(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Receive(context.Background(), Inbound{SenderID: "peer-a", ReceivedAt: 1, Payload: []byte(`{"D":"x"}`)})

	assert.True(t, IsMalformed(err))
	assert.Empty(t, e.Transcript())
}

func TestEngine_OutOfOrderInsert(t *testing.T) {
	e, _ := newTestEngine(t)

	receive(t, e, "w", 500, payload(t, 400, ir.KindDisplay, "anchor"))
	receive(t, e, "x", 1000, payload(t, 900, ir.KindDisplay, "hello"))
	d := receive(t, e, "y", 800, payload(t, 50, ir.KindDisplay, "world"))

	assert.Equal(t, transcript.FlagChange|transcript.FlagInBetween, d.Flags)
	assert.Equal(t, []string{"anchor", "world", "hello"}, e.Transcript())
}

func TestEngine_DuplicateIsNop(t *testing.T) {
	var delivered []Decision
	e, _ := newTestEngine(t, WithSink(SinkFunc(func(d Decision) { delivered = append(delivered, d) })))
	data := payload(t, 1000, ir.KindDisplay, "once")

	receive(t, e, "peer-a", 1100, data)
	d := receive(t, e, "peer-a", 1300, data)

	assert.False(t, d.Changed())
	assert.Len(t, delivered, 1)
	assert.Equal(t, []string{"once"}, e.Transcript())
}

func TestEngine_GrossSnaps(t *testing.T) {
	e, _ := newTestEngine(t)
	receive(t, e, "peer-a", 1100, payload(t, 1000, ir.KindDisplay, "line"))

	d := receive(t, e, "peer-a", 1300, payload(t, 1200, ir.KindGross, "summary"))

	assert.True(t, d.Snap)
	assert.True(t, d.Flags.Has(transcript.FlagGross))
	assert.Equal(t, []string{"line", "summary"}, d.Lines)
}

func TestEngine_EraseBlanksView(t *testing.T) {
	e, _ := newTestEngine(t)
	receive(t, e, "peer-a", 1100, payload(t, 1000, ir.KindDisplay, "line"))

	d := receive(t, e, "peer-a", 1300, payload(t, 1200, ir.KindErase, "ignored"))

	assert.True(t, d.Snap)
	assert.Equal(t, []string{"", "", ""}, d.Lines)
	assert.Equal(t, "\n\n\n\n", e.Entries()[1].Content)
}

func TestEngine_ScrollFollowsTail(t *testing.T) {
	e, _ := newTestEngine(t)
	for i, text := range []string{"one", "two", "three", "four"} {
		at := ir.Timestamp(1000 + 100*i)
		receive(t, e, "peer-a", at+10, payload(t, at, ir.KindDisplay, text))
	}

	assert.Equal(t, []string{"two", "three", "four"}, e.Visible())
	assert.Equal(t, transcript.Position{Index: 1}, e.Position())
}

func TestEngine_RemoteUndo(t *testing.T) {
	e, _ := newTestEngine(t)
	receive(t, e, "peer-a", 1100, payload(t, 1000, ir.KindDisplay, "oops"))

	d := receive(t, e, "peer-a", 1300, undoPayload(t, 1200, "peer-a", 1000))

	assert.True(t, d.Flags.Has(transcript.FlagUndo))
	assert.Empty(t, e.Transcript())
	assert.Len(t, e.Entries(), 1, "undo never removes entries")
	assert.Equal(t, 0, e.PendingUndos())
}

func TestEngine_UndoOvertakesTarget(t *testing.T) {
	e, _ := newTestEngine(t)

	d := receive(t, e, "peer-b", 1300, undoPayload(t, 1200, "peer-a", 1000))
	assert.False(t, d.Changed())
	assert.Equal(t, 1, e.PendingUndos())

	receive(t, e, "peer-a", 1400, payload(t, 1000, ir.KindDisplay, "oops"))

	assert.Equal(t, 0, e.PendingUndos())
	assert.Empty(t, e.Transcript())
	require.Len(t, e.Entries(), 1)
	assert.True(t, e.Entries()[0].Undone())
}

func TestEngine_PendingUndoNeverUndoesBarrier(t *testing.T) {
	e, _ := newTestEngine(t)

	receive(t, e, "peer-q", 900, payload(t, 900, ir.KindDisplay, "before"))
	receive(t, e, "peer-r", 950, undoPayload(t, 950, "peer-p", 1000))
	require.Equal(t, 1, e.PendingUndos())

	d := receive(t, e, "peer-p", 1100, payload(t, 1000, ir.KindGross, "agenda"))

	assert.True(t, d.Snap)
	assert.Equal(t, []string{"before", "agenda"}, e.Transcript())
	require.Len(t, e.Entries(), 2)
	assert.False(t, e.Entries()[1].Undone())
	assert.Equal(t, 1, e.PendingUndos(), "a barrier never consumes an undo notice")
}

func TestEngine_PendingUndoSurvivesRejectedTarget(t *testing.T) {
	e, _ := newTestEngine(t)

	receive(t, e, "peer-a", 2000, payload(t, 2000, ir.KindDisplay, "a1"))
	receive(t, e, "peer-c", 2050, undoPayload(t, 2040, "peer-b", 500))
	require.Equal(t, 1, e.PendingUndos())

	// older than everything logged: the estimator cannot anchor it
	d := receive(t, e, "peer-b", 1500, payload(t, 500, ir.KindDisplay, "b1"))
	assert.Equal(t, transcript.FlagNop, d.Flags)
	assert.Len(t, e.Entries(), 1)
	assert.Equal(t, 1, e.PendingUndos())

	receive(t, e, "peer-b", 2200, payload(t, 500, ir.KindDisplay, "b1"))

	assert.Equal(t, []string{"a1"}, e.Transcript())
	require.Len(t, e.Entries(), 2)
	assert.True(t, e.Entries()[1].Undone())
	assert.Equal(t, 0, e.PendingUndos())
}

func TestEngine_PendingUndoSurvivesLateTarget(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Join(context.Background(), 1000))

	receive(t, e, "peer-c", 1100, undoPayload(t, 1090, "peer-b", 800))
	receive(t, e, "peer-b", 900, payload(t, 800, ir.KindDisplay, "history"))
	assert.Equal(t, 1, e.PendingUndos())

	receive(t, e, "peer-b", 1200, payload(t, 800, ir.KindDisplay, "history"))

	assert.Empty(t, e.Transcript())
	assert.Equal(t, 0, e.PendingUndos())
}

func TestEngine_PendingUndoExpires(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUndoRetries = 2
	e, _ := newTestEngine(t, WithConfig(cfg))

	receive(t, e, "peer-b", 1000, undoPayload(t, 1000, "peer-a", 1))
	receive(t, e, "peer-b", 1100, payload(t, 1100, ir.KindDisplay, "a"))
	assert.Equal(t, 1, e.PendingUndos())

	receive(t, e, "peer-b", 1200, payload(t, 1200, ir.KindDisplay, "b"))
	assert.Equal(t, 0, e.PendingUndos())

	samples, err := e.Metrics().Snapshot()
	require.NoError(t, err)
	assert.Contains(t, samples, metrics.Sample{Name: "mekiku_pending_undo_dropped_total", Value: 1})
}

func TestEngine_LateJoinIgnoresHistory(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Join(context.Background(), 5000))

	d := receive(t, e, "peer-a", 4000, payload(t, 3900, ir.KindDisplay, "before"))
	assert.False(t, d.Changed())

	receive(t, e, "peer-a", 5000, payload(t, 4900, ir.KindDisplay, "at join"))
	assert.Equal(t, []string{"at join"}, e.Transcript())
}

func TestEngine_SendDisplay(t *testing.T) {
	e, _ := newTestEngine(t)

	out, err := e.SendDisplay(context.Background(), "hi")
	require.NoError(t, err)

	p, err := wire.Decode(out.Payload, "me", 0)
	require.NoError(t, err)
	assert.Equal(t, ir.KindDisplay, p.Kind)
	assert.Equal(t, "hi", p.Content)
	assert.Equal(t, int64(1), p.Seq)
	assert.Equal(t, ir.Timestamp(1000), p.SentAt)
	assert.Equal(t, "Me", p.SenderName)

	assert.Equal(t, []string{"hi"}, out.Decision.Lines)
	assert.Equal(t, []string{"hi"}, e.Transcript())
}

func TestEngine_SendCarriesOwnComplements(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := e.SendDisplay(ctx, "first")
	require.NoError(t, err)
	receive(t, e, "peer-a", 1050, payload(t, 1040, ir.KindDisplay, "theirs"))
	clock.Advance(100 * time.Millisecond)

	out, err := e.SendDisplay(ctx, "second")
	require.NoError(t, err)

	p, err := wire.Decode(out.Payload, "me", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Seq)
	assert.Equal(t, []wire.Complement{{Kind: ir.KindDisplay, Content: "first", SentAtOriginal: 1000}}, p.Complements)
}

func TestEngine_LocalUndo(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := e.SendDisplay(ctx, "keep")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = e.SendDisplay(ctx, "typo")
	require.NoError(t, err)

	out, err := e.Undo(ctx)
	require.NoError(t, err)
	require.NotNil(t, out.Undone)
	assert.Equal(t, "typo", out.Undone.Content)

	p, err := wire.Decode(out.Payload, "me", 0)
	require.NoError(t, err)
	require.NotNil(t, p.Undo)
	assert.Equal(t, wire.UndoNotice{SenderID: "me", SentAt: 2000}, *p.Undo)
	assert.Equal(t, []string{"keep"}, e.Transcript())
}

func TestEngine_LocalUndoNothing(t *testing.T) {
	e, _ := newTestEngine(t)

	out, err := e.Undo(context.Background())
	require.NoError(t, err)
	assert.Nil(t, out.Payload)
	assert.Nil(t, out.Undone)
}

func TestEngine_LocalUndoStopsAtGross(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := e.SendDisplay(ctx, "before")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = e.SendGross(ctx, "summary")
	require.NoError(t, err)

	out, err := e.Undo(ctx)
	require.NoError(t, err)
	assert.Nil(t, out.Undone)
	assert.Equal(t, []string{"before", "summary"}, e.Transcript())
}

func TestEngine_JournalFailureSkipsPacket(t *testing.T) {
	e, _ := newTestEngine(t, WithJournal(failingJournal{}))

	_, err := e.Receive(context.Background(), Inbound{SenderID: "peer-a", ReceivedAt: 1100, Payload: payload(t, 1000, ir.KindDisplay, "x")})
	assert.True(t, IsJournalError(err))

	_, err = e.SendDisplay(context.Background(), "y")
	assert.True(t, IsJournalError(err))

	assert.Empty(t, e.Transcript())
}

func TestEngine_Resize(t *testing.T) {
	e, _ := newTestEngine(t)
	receive(t, e, "peer-a", 1100, payload(t, 1000, ir.KindDisplay, "abcdefghij"))

	e.Resize(reflow.Fixed{Columns: 5})

	assert.Equal(t, []string{"abcde", "fghij"}, e.Visible())
}

func TestEngine_RunLoop(t *testing.T) {
	decisions := make(chan Decision, 8)
	e, _ := newTestEngine(t, WithSink(SinkFunc(func(d Decision) { decisions <- d })))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	out, err := e.Submit(ctx, ActionDisplay, "local")
	require.NoError(t, err)
	assert.NotEmpty(t, out.Payload)

	require.True(t, e.Enqueue(Inbound{SenderID: "peer-a", ReceivedAt: 1100, Payload: payload(t, 1050, ir.KindDisplay, "remote")}))

	<-decisions
	select {
	case d := <-decisions:
		assert.Equal(t, []string{"local", "remote"}, d.Lines)
	case <-ctx.Done():
		t.Fatal("no decision for the inbound packet")
	}

	e.Stop()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"local", "remote"}, e.Transcript())

	_, err = e.Submit(context.Background(), ActionDisplay, "too late")
	var pe *ProcessError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeStopped, pe.Code)
}

func TestEngine_RunProcessesManyEvents(t *testing.T) {
	decisions := make(chan Decision, 16)
	e, _ := newTestEngine(t, WithSink(SinkFunc(func(d Decision) { decisions <- d })))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	for i := range 3 {
		_, err := e.Submit(ctx, ActionDisplay, fmt.Sprintf("l%d", i))
		require.NoError(t, err)
		at := ir.Timestamp(1100 + i)
		require.True(t, e.Enqueue(Inbound{SenderID: "peer-a", ReceivedAt: at, Payload: payload(t, at-50, ir.KindDisplay, fmt.Sprintf("r%d", i))}))
	}

	for i := range 6 {
		select {
		case <-decisions:
		case <-ctx.Done():
			t.Fatalf("only %d of 6 decisions delivered", i)
		}
	}

	select {
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	default:
	}

	e.Stop()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"l0", "r0", "l1", "r1", "l2", "r2"}, e.Transcript())
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.False(t, e.Enqueue(Inbound{}))
}
