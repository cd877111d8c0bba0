package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/sksthrs/mekiku/internal/config"
	"github.com/sksthrs/mekiku/internal/engine"
	"github.com/sksthrs/mekiku/internal/ir"
	"github.com/sksthrs/mekiku/internal/store"
	"github.com/sksthrs/mekiku/internal/testutil"
	"github.com/sksthrs/mekiku/internal/transcript"
	"github.com/sksthrs/mekiku/internal/wire"
)

// LocalSender is the sender ID of the local captioner in every scenario.
const LocalSender = "local"

var kinds = map[string]ir.Kind{
	"display": ir.KindDisplay,
	"gross":   ir.KindGross,
	"erase":   ir.KindErase,
}

// Harness is the test execution engine.
// It runs scenarios against a real engine with a manual clock and a fixed
// local sender ID.
type Harness struct {
	engine *engine.Engine
	store  *store.Store
	clock  *testutil.ManualClock
	cfg    config.Config
	logger *slog.Logger
}

// Run executes a test scenario with the default configuration.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithConfig(config.Default(), scenario)
}

// RunWithConfig executes a test scenario and returns the result. The
// scenario's display and retry settings override cfg.
//
// Each scenario runs in a fresh in-memory journal for isolation.
//
// Execution flow:
// 1. Create the journal and the engine
// 2. Join the session
// 3. Execute the steps, tracing each decision
// 4. Replay the journal into a second engine and compare
// 5. Evaluate the assertions
func RunWithConfig(cfg config.Config, scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.Memory)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewManualClock(0),
		cfg:    scenarioConfig(cfg, scenario),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.engine = h.newEngine(engine.WithJournal(st))

	ctx := context.Background()

	var join ir.Timestamp
	if scenario.JoinTime != nil {
		join = ir.Timestamp(*scenario.JoinTime)
	}
	if err := h.engine.Join(ctx, join); err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.executeStep(ctx, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		result.AddTrace(ev)
	}

	result.Transcript = h.engine.Transcript()
	result.Visible = h.engine.Visible()
	result.Len = len(h.engine.Entries())
	result.Pending = h.engine.PendingUndos()

	if err := h.checkReplay(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to replay journal: %w", err)
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func scenarioConfig(cfg config.Config, s *Scenario) config.Config {
	if s.Display != nil {
		cfg.Display = config.Display{Columns: s.Display.Columns, Lines: s.Display.Lines}
	}
	if s.MaxUndoRetries != nil {
		cfg.MaxUndoRetries = *s.MaxUndoRetries
	}
	return cfg
}

func (h *Harness) newEngine(opts ...engine.Option) *engine.Engine {
	base := []engine.Option{
		engine.WithConfig(h.cfg),
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(LocalSender)),
		engine.WithIdentity("Local", ir.RoleAuthor),
		engine.WithNow(h.clock.Now),
	}
	return engine.New(append(base, opts...)...)
}

func (h *Harness) executeStep(ctx context.Context, n int, step Step) (TraceEvent, error) {
	if step.Receive != nil {
		return h.executeReceive(ctx, n, *step.Receive)
	}
	return h.executeLocal(ctx, n, *step.Local)
}

func (h *Harness) executeReceive(ctx context.Context, n int, r Receive) (TraceEvent, error) {
	ev := TraceEvent{Step: n, Type: "receive", Sender: r.From, Kind: r.Kind}
	if r.Kind == "" && r.Undo != nil {
		ev.Kind = "undo"
	}

	payload := []byte(r.Raw)
	if r.Raw == "" {
		var err error
		payload, err = wire.Encode(packetOf(n, r))
		if err != nil {
			return ev, err
		}
	}

	d, err := h.engine.Receive(ctx, engine.Inbound{
		SenderID:   ir.SenderID(r.From),
		ReceivedAt: ir.Timestamp(r.At),
		Payload:    payload,
	})
	if engine.IsMalformed(err) {
		ev.Error = string(engine.ErrCodeMalformed)
		h.logger.Info("malformed packet", "step", n, "error", err)
		return ev, nil
	}
	if err != nil {
		return ev, err
	}

	traceDecision(&ev, d)
	h.logger.Info("receive step completed", "step", n, "from", r.From, "flags", d.Flags)
	return ev, nil
}

func packetOf(n int, r Receive) wire.Packet {
	p := wire.Packet{
		SenderName: r.From,
		Role:       ir.RoleAuthor,
		Seq:        int64(n),
		SentAt:     ir.Timestamp(r.Sent),
		Kind:       kinds[r.Kind],
		Content:    r.Text,
	}
	if r.Undo != nil {
		p.Undo = &wire.UndoNotice{SenderID: ir.SenderID(r.Undo.Sender), SentAt: ir.Timestamp(r.Undo.Sent)}
	}
	for _, c := range r.Complements {
		state := ir.StateActive
		if c.Undone {
			state = ir.StateUndone
		}
		p.Complements = append(p.Complements, wire.Complement{
			Kind:           kinds[c.Kind],
			Content:        c.Text,
			SentAtOriginal: ir.Timestamp(c.Sent),
			State:          state,
		})
	}
	return p
}

func (h *Harness) executeLocal(ctx context.Context, n int, l Local) (TraceEvent, error) {
	ev := TraceEvent{Step: n, Type: "local", Sender: LocalSender, Kind: l.Action}
	if l.At != 0 {
		h.clock.Set(ir.Timestamp(l.At))
	}

	var (
		out engine.Outgoing
		err error
	)
	switch l.Action {
	case "display":
		out, err = h.engine.SendDisplay(ctx, l.Text)
	case "gross":
		out, err = h.engine.SendGross(ctx, l.Text)
	case "erase":
		out, err = h.engine.SendErase(ctx)
	case "undo":
		out, err = h.engine.Undo(ctx)
	default:
		err = fmt.Errorf("unknown action %q", l.Action)
	}
	if err != nil {
		return ev, err
	}

	traceDecision(&ev, out.Decision)
	h.logger.Info("local step completed", "step", n, "action", l.Action, "flags", out.Decision.Flags)
	return ev, nil
}

func traceDecision(ev *TraceEvent, d engine.Decision) {
	ev.Flags = d.Flags
	ev.Snap = d.Snap
	if d.Flags != transcript.FlagNop {
		ev.Lines = d.Lines
	}
}

// checkReplay re-applies the journal to a fresh engine and records an
// error when it does not reproduce the live session.
func (h *Harness) checkReplay(ctx context.Context, result *Result) error {
	sess, err := h.store.ReadSession(ctx)
	if err != nil {
		return err
	}
	records, err := h.store.ReadPackets(ctx)
	if err != nil {
		return err
	}

	replayed := h.newEngine()
	if err := replayed.Join(ctx, sess.JoinTime); err != nil {
		return err
	}
	if _, err := replayed.Replay(ctx, records); err != nil {
		return err
	}

	if got := replayed.Transcript(); !slices.Equal(got, result.Transcript) {
		result.AddError(fmt.Sprintf("replay: transcript %q, live %q", got, result.Transcript))
	}
	if got := replayed.Visible(); !slices.Equal(got, result.Visible) {
		result.AddError(fmt.Sprintf("replay: visible %q, live %q", got, result.Visible))
	}
	return nil
}
