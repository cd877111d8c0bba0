package cli

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/sksthrs/mekiku/internal/config"
	"github.com/sksthrs/mekiku/internal/engine"
	"github.com/sksthrs/mekiku/internal/metrics"
	"github.com/sksthrs/mekiku/internal/store"
	"github.com/sksthrs/mekiku/internal/transcript"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Stats    bool // include engine counters
}

// ReplayResult holds the outcome of re-applying a journal.
type ReplayResult struct {
	Session       *store.Session      `json:"session,omitempty"`
	Packets       int                 `json:"packets"`
	Transcript    []string            `json:"transcript"`
	Visible       []string            `json:"visible"`
	Position      transcript.Position `json:"position"`
	Pending       int                 `json:"pending"`
	Deterministic bool                `json:"deterministic"`
	Stats         []metrics.Sample    `json:"stats,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the transcript from a session journal",
		Long: `Re-apply every packet of a session journal, in journal order, to a
fresh engine and print the resulting transcript.

The journal is replayed twice and both runs must agree, entry for entry
and down to the window position.

Exit codes:
  0 - Replay is deterministic
  1 - The two replays diverged
  2 - Command error (journal not found, malformed packet, etc.)

Examples:
  mekiku replay --db ./session.db
  mekiku replay --db ./session.db --stats
  mekiku replay --db ./session.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the session journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "include engine counters")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var session *store.Session
	sess, err := st.ReadSession(ctx)
	switch {
	case errors.Is(err, store.ErrNoSession):
		opts.formatter(cmd).VerboseLog("journal has no session row, replaying with default identity")
	case err != nil:
		return WrapExitError(ExitCommandError, "failed to read session", err)
	default:
		session = &sess
	}

	records, err := st.ReadPackets(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read packets", err)
	}

	first, err := replayJournal(ctx, cfg, session, records)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	second, err := replayJournal(ctx, cfg, session, records)
	if err != nil {
		return WrapExitError(ExitCommandError, "second replay failed", err)
	}

	result := ReplayResult{
		Session:       session,
		Packets:       len(records),
		Transcript:    first.Transcript(),
		Visible:       first.Visible(),
		Position:      first.Position(),
		Pending:       first.PendingUndos(),
		Deterministic: sameState(first, second),
	}
	if opts.Stats {
		result.Stats, err = first.Metrics().Snapshot()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to gather counters", err)
		}
	}

	if opts.Format == "json" {
		failure := ""
		if !result.Deterministic {
			failure = "determinism verification failed"
		}
		return opts.formatter(cmd).Report(result, "E_REPLAY_DIVERGED", failure)
	}

	return outputReplayText(cmd, result)
}

// replayJournal re-applies records to a fresh engine carrying the
// journal's identity, so local packets are recognised as local.
func replayJournal(ctx context.Context, cfg config.Config, sess *store.Session, records []store.Record) (*engine.Engine, error) {
	opts := []engine.Option{engine.WithConfig(cfg)}
	if sess != nil {
		opts = append(opts,
			engine.WithIDGenerator(engine.NewFixedGenerator(string(sess.SenderID))),
			engine.WithIdentity(sess.SenderName, sess.Role),
		)
	}
	e := engine.New(opts...)

	if sess != nil {
		if err := e.Join(ctx, sess.JoinTime); err != nil {
			return nil, err
		}
	}
	if _, err := e.Replay(ctx, records); err != nil {
		return nil, err
	}
	return e, nil
}

func sameState(a, b *engine.Engine) bool {
	return reflect.DeepEqual(a.Entries(), b.Entries()) &&
		a.Position() == b.Position() &&
		a.PendingUndos() == b.PendingUndos()
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	if result.Session != nil {
		fmt.Fprintf(w, "Session: %s (%s), joined at %d\n", result.Session.SenderName, result.Session.SenderID, result.Session.JoinTime)
	}
	fmt.Fprintf(w, "Replayed %d packet(s), %d transcript line(s), %d pending undo(s)\n",
		result.Packets, len(result.Transcript), result.Pending)
	fmt.Fprintln(w)

	for _, line := range result.Transcript {
		fmt.Fprintln(w, line)
	}

	if len(result.Stats) > 0 {
		fmt.Fprintln(w)
		for _, s := range result.Stats {
			if s.Labels != "" {
				fmt.Fprintf(w, "%s{%s} %g\n", s.Name, s.Labels, s.Value)
			} else {
				fmt.Fprintf(w, "%s %g\n", s.Name, s.Value)
			}
		}
	}

	fmt.Fprintln(w)
	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
