package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sksthrs/mekiku/internal/engine"
	"github.com/sksthrs/mekiku/internal/ir"
	"github.com/sksthrs/mekiku/internal/store"
	fake "github.com/sksthrs/mekiku/internal/testutil"
	"github.com/sksthrs/mekiku/internal/wire"
)

// writeJournal records a short session of peer "me" to a journal file:
// two local lines, one remote line and an undo of the second local line.
func writeJournal(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "session.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	clock := fake.NewManualClock(1000)
	e := engine.New(
		engine.WithIDGenerator(fake.NewFixedIDGenerator("me")),
		engine.WithIdentity("Me", ir.RoleAuthor),
		engine.WithNow(clock.Now),
		engine.WithJournal(st),
	)
	require.NoError(t, e.Join(ctx, 500))

	_, err = e.SendDisplay(ctx, "hello")
	require.NoError(t, err)

	data, err := wire.Encode(wire.Packet{SenderName: "Peer A", Role: ir.RoleAuthor, Seq: 1, SentAt: 1050, Kind: ir.KindDisplay, Content: "welcome"})
	require.NoError(t, err)
	_, err = e.Receive(ctx, engine.Inbound{SenderID: "peer-a", ReceivedAt: 1100, Payload: data})
	require.NoError(t, err)

	clock.Advance(200 * time.Millisecond)
	_, err = e.SendDisplay(ctx, "typo")
	require.NoError(t, err)
	_, err = e.Undo(ctx)
	require.NoError(t, err)

	return dbPath
}

func runReplayCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := runReplayCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayMissingJournal(t *testing.T) {
	_, err := runReplayCommand(t, "text", "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayEmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := runReplayCommand(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 0 packet(s), 0 transcript line(s), 0 pending undo(s)")
	assert.Contains(t, out, "✓ Replay verified deterministic")
}

func TestReplaySessionText(t *testing.T) {
	dbPath := writeJournal(t)

	out, err := runReplayCommand(t, "text", "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Session: Me (me), joined at 500")
	assert.Contains(t, out, "Replayed 4 packet(s), 2 transcript line(s), 0 pending undo(s)")
	assert.Contains(t, out, "hello\nwelcome\n")
	assert.NotContains(t, out, "typo")
	assert.Contains(t, out, "✓ Replay verified deterministic")
}

func TestReplaySessionJSON(t *testing.T) {
	dbPath := writeJournal(t)

	out, err := runReplayCommand(t, "json", "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Data.Session)
	assert.Equal(t, ir.SenderID("me"), resp.Data.Session.SenderID)
	assert.Equal(t, ir.Timestamp(500), resp.Data.Session.JoinTime)
	assert.Equal(t, 4, resp.Data.Packets)
	assert.Equal(t, []string{"hello", "welcome"}, resp.Data.Transcript)
	assert.True(t, resp.Data.Deterministic)
	assert.Empty(t, resp.Data.Stats)
}

func TestReplayStats(t *testing.T) {
	dbPath := writeJournal(t)

	out, err := runReplayCommand(t, "text", "--db", dbPath, "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "mekiku_packets_total")
	assert.Contains(t, out, "mekiku_entries_total")
}

func TestReplayMalformedPacket(t *testing.T) {
	dbPath := writeJournal(t)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.WritePacket(context.Background(), store.Record{
		Seq: 5, Origin: store.OriginRemote, SenderID: "peer-x", ReceivedAt: 1300, Payload: []byte("not json"),
	}))
	require.NoError(t, st.Close())

	_, err = runReplayCommand(t, "text", "--db", dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay failed")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
