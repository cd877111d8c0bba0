package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sksthrs/mekiku/internal/ir"
	"github.com/sksthrs/mekiku/internal/store"
	"github.com/sksthrs/mekiku/internal/wire"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Sender   string // optional - filter to one sender
}

// TraceEvent is one journaled packet, decoded.
type TraceEvent struct {
	Seq         int64        `json:"seq"`
	Origin      store.Origin `json:"origin"`
	SenderID    ir.SenderID  `json:"sender_id"`
	SenderName  string       `json:"sender_name,omitempty"`
	ReceivedAt  ir.Timestamp `json:"received_at"`
	SentAt      ir.Timestamp `json:"sent_at,omitempty"`
	Kind        ir.Kind      `json:"kind,omitempty"`
	Content     string       `json:"content,omitempty"`
	Undo        string       `json:"undo,omitempty"`
	Complements int          `json:"complements,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalPackets int `json:"total_packets"`
	Local        int `json:"local"`
	Remote       int `json:"remote"`
	Undos        int `json:"undos"`
	Malformed    int `json:"malformed"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List the packets of a session journal",
		Long: `List every journaled packet in journal order with its decoded body.

Examples:
  mekiku trace --db ./session.db
  mekiku trace --db ./session.db --sender 0190f0c2-7c1e-7bb4-a3c5-0f8b1a2d3e4f
  mekiku trace --db ./session.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the session journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Sender, "sender", "", "filter to one sender ID")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var records []store.Record
	if opts.Sender != "" {
		records, err = st.ReadPacketsFrom(ctx, ir.SenderID(opts.Sender))
	} else {
		records, err = st.ReadPackets(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read packets", err)
	}

	result := buildTrace(records)

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}
	return outputTraceText(cmd, result)
}

// openJournal opens an existing journal; store.Open alone would create
// an empty one.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}

func buildTrace(records []store.Record) TraceResult {
	result := TraceResult{Timeline: make([]TraceEvent, 0, len(records))}

	for _, rec := range records {
		ev := TraceEvent{
			Seq:        rec.Seq,
			Origin:     rec.Origin,
			SenderID:   rec.SenderID,
			ReceivedAt: rec.ReceivedAt,
		}

		if rec.Origin == store.OriginLocal {
			result.Stats.Local++
		} else {
			result.Stats.Remote++
		}

		p, err := wire.Decode(rec.Payload, rec.SenderID, rec.ReceivedAt)
		if err != nil {
			ev.Error = err.Error()
			result.Stats.Malformed++
			result.Timeline = append(result.Timeline, ev)
			continue
		}

		ev.SenderName = p.SenderName
		ev.SentAt = p.SentAt
		ev.Kind = p.Kind
		ev.Content = p.Content
		ev.Complements = len(p.Complements)
		if p.Undo != nil {
			ev.Undo = fmt.Sprintf("%s@%d", p.Undo.SenderID, p.Undo.SentAt)
			result.Stats.Undos++
		}
		result.Timeline = append(result.Timeline, ev)
	}

	result.Stats.TotalPackets = len(records)
	return result
}

// outputTraceText outputs the trace as text.
func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No packets found.")
		return nil
	}

	fmt.Fprintln(w, "Timeline:")
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %-6s %-12s recv=%d", ev.Seq, ev.Origin, ev.SenderID, ev.ReceivedAt)
		switch {
		case ev.Error != "":
			fmt.Fprintf(w, " error: %s", ev.Error)
		default:
			fmt.Fprintf(w, " sent=%d", ev.SentAt)
			if ev.Kind != "" {
				fmt.Fprintf(w, " %s %q", ev.Kind, ev.Content)
			}
			if ev.Undo != "" {
				fmt.Fprintf(w, " undo=%s", ev.Undo)
			}
			if ev.Complements > 0 {
				fmt.Fprintf(w, " +%d complement(s)", ev.Complements)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d packet(s), %d local, %d remote, %d undo(s), %d malformed\n",
		result.Stats.TotalPackets, result.Stats.Local, result.Stats.Remote, result.Stats.Undos, result.Stats.Malformed)
	return nil
}
