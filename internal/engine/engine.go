package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sksthrs/mekiku/internal/config"
	"github.com/sksthrs/mekiku/internal/ir"
	"github.com/sksthrs/mekiku/internal/metrics"
	"github.com/sksthrs/mekiku/internal/reflow"
	"github.com/sksthrs/mekiku/internal/store"
	"github.com/sksthrs/mekiku/internal/transcript"
	"github.com/sksthrs/mekiku/internal/wire"
)

// Journal records accepted packets. *store.Store implements it.
type Journal interface {
	WriteSession(ctx context.Context, sess store.Session) error
	WritePacket(ctx context.Context, rec store.Record) error
}

// Engine is the single-writer packet dispatcher.
//
// Thread-safety model:
//   - Enqueue, Submit, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Receive, Send*, Undo, Resize and the read accessors: only from the
//     goroutine that owns the engine, i.e. Run's, or when Run is not used
type Engine struct {
	log     *transcript.Log
	pager   *transcript.Pager
	measure reflow.Measurer
	lines   int

	maxUndo     int
	complements int
	pending     *pendingUndos

	self ir.SenderID
	name string
	role ir.Role
	ids  IDGenerator

	clock   *Clock // journal seq
	sendSeq *Clock // outgoing seqCount
	now     func() ir.Timestamp

	journal Journal
	metrics *metrics.Metrics
	sink    Sink
	queue   *eventQueue
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig applies a loaded configuration. Options after it override
// individual settings.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		e.log = transcript.NewLog(transcript.WithParams(cfg.Params()))
		e.measure = reflow.Fixed{Columns: cfg.Display.Columns}
		e.lines = cfg.Display.Lines
		e.maxUndo = cfg.MaxUndo
		e.complements = cfg.Complements
		e.pending = newPendingUndos(cfg.MaxUndoRetries)
	}
}

// WithMeasurer sets the line measurement, e.g. reflow.Cells for a terminal.
func WithMeasurer(m reflow.Measurer) Option {
	return func(e *Engine) { e.measure = m }
}

// WithIdentity sets the local captioner's display name and role.
func WithIdentity(name string, role ir.Role) Option {
	return func(e *Engine) {
		e.name = name
		e.role = role
	}
}

// WithIDGenerator sets the source of the local sender ID.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithNow sets the wall clock used to stamp local sends.
func WithNow(now func() ir.Timestamp) Option {
	return func(e *Engine) { e.now = now }
}

// WithJournal records every accepted packet in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithMetrics counts packets, entries and undos in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSink delivers every changing Decision to s.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithClock sets the journal clock, e.g. NewClockAt(lastSeq) to resume.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an Engine with the default configuration adjusted by opts.
func New(opts ...Option) *Engine {
	e := &Engine{
		role:    ir.RoleAuthor,
		ids:     UUIDv7Generator{},
		clock:   NewClock(),
		sendSeq: NewClock(),
		now:     func() ir.Timestamp { return ir.Timestamp(nowMillis()) },
		metrics: metrics.New(),
		sink:    discardSink{},
		queue:   newEventQueue(),
	}
	WithConfig(config.Default())(e)

	for _, opt := range opts {
		opt(e)
	}

	e.pager = transcript.NewPager(e.log)
	e.self = ir.SenderID(e.ids.Generate())
	if e.name == "" {
		e.name = string(e.self)
	}
	return e
}

// SenderID returns the local peer's sender ID.
func (e *Engine) SenderID() ir.SenderID {
	return e.self
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Join starts the session at the given time. Entries received before it
// are history this peer did not witness and are ignored.
func (e *Engine) Join(ctx context.Context, at ir.Timestamp) error {
	e.log.SetJoinTime(at)
	if e.journal == nil {
		return nil
	}
	return e.journal.WriteSession(ctx, store.Session{
		SenderID:      e.self,
		SenderName:    e.name,
		Role:          e.role,
		JoinTime:      at,
		EngineVersion: ir.EngineVersion,
		WireVersion:   ir.WireVersion,
	})
}

// Enqueue submits a received payload for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(in Inbound) bool {
	return e.queue.Enqueue(Event{Type: EventTypeInbound, Inbound: &in})
}

// QueueLen returns the number of events waiting for Run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run starts the single-writer event loop.
// Blocks until the context is cancelled or Stop is called.
//
// On a processing failure the error is logged with the event context and
// the loop continues with the next event.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "sender_id", e.self)

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(ctx, event); err != nil {
				logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drainActions()
			return ctx.Err()

		case _, open := <-e.queue.Wait():
			// a buffered signal may outlive the event it announced
			if !open && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				e.drainActions()
				return nil
			}
		}
	}
}

// Stop closes the event queue, which makes Run return once it is empty.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) processEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventTypeInbound:
		if event.Inbound == nil {
			return fmt.Errorf("inbound event missing payload")
		}
		_, err := e.Receive(ctx, *event.Inbound)
		return err

	case EventTypeAction:
		if event.Action == nil {
			return fmt.Errorf("action event missing action")
		}
		out, err := e.perform(ctx, *event.Action)
		if event.Action.reply != nil {
			event.Action.reply <- actionResult{out: out, err: err}
		}
		return err

	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
}

// drainActions fails actions still queued when Run exits, so no Submit
// waits forever.
func (e *Engine) drainActions() {
	for {
		event, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		if event.Type == EventTypeAction && event.Action != nil && event.Action.reply != nil {
			event.Action.reply <- actionResult{err: &ProcessError{Code: ErrCodeStopped, Message: "engine stopped"}}
		}
	}
}

// Receive decodes, journals and applies one payload.
func (e *Engine) Receive(ctx context.Context, in Inbound) (Decision, error) {
	p, err := wire.Decode(in.Payload, in.SenderID, in.ReceivedAt)
	if err != nil {
		e.metrics.Packet(metrics.PacketMalformed)
		return Decision{}, newMalformedError(in.SenderID, err)
	}

	rec := store.Record{
		Seq:        e.clock.Next(),
		Origin:     store.OriginRemote,
		SenderID:   in.SenderID,
		ReceivedAt: in.ReceivedAt,
		Payload:    in.Payload,
	}
	if err := e.record(ctx, rec); err != nil {
		return Decision{}, err
	}

	slog.Debug("packet received",
		"seq", rec.Seq,
		"sender_id", p.SenderID,
		"kind", p.Kind,
		"complements", len(p.Complements),
		"undo", p.Undo != nil,
	)
	return e.applyRemote(p), nil
}

// applyRemote runs one decoded packet through the log as one batch.
func (e *Engine) applyRemote(p wire.Packet) Decision {
	e.metrics.Packet(metrics.PacketApplied)

	for _, entry := range p.Entries() {
		e.ingest(entry)
	}
	if p.Undo != nil {
		e.undoRemote(*p.Undo)
	}
	e.retryPending()

	return e.finish()
}

func (e *Engine) ingest(entry ir.Entry) {
	if entry.Kind == ir.KindErase {
		entry.Content = eraseContent(e.lines)
	}
	// a parked undo only marks the entry once the log has placed it
	undo := !entry.Kind.IsBarrier() && e.pending.has(entry.SenderID, entry.SentAt)
	if undo {
		entry.State = ir.StateUndone
	}

	if entry.RecvTime() < e.log.JoinTime() {
		e.metrics.Entry(metrics.EntryLate)
		return
	}

	flags := e.log.Ingest(entry)
	if undo && flags != transcript.FlagNop {
		e.pending.take(entry.SenderID, entry.SentAt)
		e.metrics.Undo(transcript.Undone.String())
		slog.Debug("pending undo matched on arrival",
			"sender_id", entry.SenderID,
			"sent_at", entry.SentAt,
		)
	}
	switch {
	case flags == transcript.FlagNop:
		e.metrics.Entry(metrics.EntryIgnored)
	case flags.Has(transcript.FlagUndo):
		e.metrics.Entry(metrics.EntryUpdated)
	case flags.Has(transcript.FlagInBetween):
		e.metrics.Entry(metrics.EntryInserted)
	default:
		e.metrics.Entry(metrics.EntryAppended)
	}
}

func (e *Engine) undoRemote(n wire.UndoNotice) {
	outcome := e.log.UndoByKey(n.SenderID, n.SentAt)
	e.metrics.Undo(outcome.String())
	if outcome == transcript.NotFound {
		slog.Debug("undo target not found, parking notice",
			"sender_id", n.SenderID,
			"sent_at", n.SentAt,
		)
		e.pending.add(n)
	}
}

func (e *Engine) retryPending() {
	expired := e.pending.retry(func(n wire.UndoNotice) bool {
		outcome := e.log.UndoByKey(n.SenderID, n.SentAt)
		if outcome == transcript.NotFound {
			return false
		}
		e.metrics.Undo(outcome.String())
		return true
	})
	for _, n := range expired {
		e.metrics.PendingDropped()
		slog.Warn("dropping undo notice, target never arrived",
			"sender_id", n.SenderID,
			"sent_at", n.SentAt,
			"retries", e.pending.maxRetries,
		)
	}
}

// finish re-wraps, moves the window and closes the batch.
func (e *Engine) finish() Decision {
	flags := e.log.Flags()
	from := e.pager.Position()
	if flags == transcript.FlagNop {
		e.log.EndBatch()
		return Decision{Flags: flags, From: from, To: from}
	}

	e.pager.Materialize(e.measure)
	e.pager.JumpToLatest(e.lines)
	d := Decision{
		Flags: flags,
		Snap:  flags.Barrier(),
		From:  from,
		To:    e.pager.Position(),
		Lines: e.pager.VisibleLines(e.lines),
	}
	e.log.EndBatch()

	e.sink.Deliver(d)
	return d
}

func (e *Engine) record(ctx context.Context, rec store.Record) error {
	if e.journal == nil {
		return nil
	}
	if err := e.journal.WritePacket(ctx, rec); err != nil {
		e.metrics.Packet(metrics.PacketFailed)
		return newJournalError(rec.Seq, rec.SenderID, err)
	}
	return nil
}

// Resize changes the measurement, e.g. after the display width changed,
// and re-wraps from the window top.
func (e *Engine) Resize(m reflow.Measurer) {
	e.measure = m
	e.pager.Rewrap(m)
}

// Transcript returns the content of every non-undone entry in order.
func (e *Engine) Transcript() []string {
	return e.log.Transcript()
}

// Visible returns the lines in the window.
func (e *Engine) Visible() []string {
	return e.pager.VisibleLines(e.lines)
}

// Entries returns a copy of the log.
func (e *Engine) Entries() []ir.Entry {
	return e.log.Entries()
}

// Position returns the window top.
func (e *Engine) Position() transcript.Position {
	return e.pager.Position()
}

// PendingUndos returns the number of parked undo notices.
func (e *Engine) PendingUndos() int {
	return e.pending.len()
}

// eraseContent is the text of an Erase entry: enough empty lines to push
// everything out of a window of the given height.
func eraseContent(lines int) string {
	return strings.Repeat("\n", lines+1)
}

func logEventError(event Event, err error) {
	switch event.Type {
	case EventTypeInbound:
		if event.Inbound != nil {
			slog.Error("inbound processing failed",
				"error", err,
				"sender_id", event.Inbound.SenderID,
				"received_at", event.Inbound.ReceivedAt,
				"payload_bytes", len(event.Inbound.Payload),
			)
			return
		}
	case EventTypeAction:
		if event.Action != nil {
			slog.Error("action processing failed",
				"error", err,
				"action", event.Action.Kind,
			)
			return
		}
	}
	slog.Error("event processing failed",
		"error", err,
		"event_type", event.Type,
	)
}
