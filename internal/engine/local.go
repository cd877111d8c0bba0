package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/sksthrs/mekiku/internal/ir"
	"github.com/sksthrs/mekiku/internal/metrics"
	"github.com/sksthrs/mekiku/internal/store"
	"github.com/sksthrs/mekiku/internal/wire"
)

// ActionKind is a local captioner action.
type ActionKind string

const (
	ActionDisplay ActionKind = "display"
	ActionGross   ActionKind = "gross"
	ActionErase   ActionKind = "erase"
	ActionUndo    ActionKind = "undo"
)

// Action is a local captioner action queued for the Run loop.
type Action struct {
	Kind ActionKind
	Text string

	reply chan actionResult
}

type actionResult struct {
	out Outgoing
	err error
}

// Outgoing is the result of a local action.
type Outgoing struct {
	// Payload is the encoded packet to broadcast; nil when there is
	// nothing to send, e.g. an undo with nothing undoable.
	Payload []byte

	Decision Decision

	// Undone is the entry a local undo took back, so its text can be
	// edited again.
	Undone *ir.Entry
}

// Submit queues a local action for the Run loop and waits for its result.
// Thread-safe: may be called from any goroutine.
func (e *Engine) Submit(ctx context.Context, kind ActionKind, text string) (Outgoing, error) {
	a := &Action{Kind: kind, Text: text, reply: make(chan actionResult, 1)}
	if !e.queue.Enqueue(Event{Type: EventTypeAction, Action: a}) {
		return Outgoing{}, &ProcessError{Code: ErrCodeStopped, Message: "engine stopped"}
	}

	select {
	case <-ctx.Done():
		return Outgoing{}, ctx.Err()
	case r := <-a.reply:
		return r.out, r.err
	}
}

func (e *Engine) perform(ctx context.Context, a Action) (Outgoing, error) {
	switch a.Kind {
	case ActionDisplay:
		return e.SendDisplay(ctx, a.Text)
	case ActionGross:
		return e.SendGross(ctx, a.Text)
	case ActionErase:
		return e.SendErase(ctx)
	case ActionUndo:
		return e.Undo(ctx)
	default:
		return Outgoing{}, &ProcessError{Code: ErrCodeEncode, Message: "unknown action " + string(a.Kind)}
	}
}

// SendDisplay appends a display line typed by the local captioner.
func (e *Engine) SendDisplay(ctx context.Context, text string) (Outgoing, error) {
	return e.send(ctx, ir.KindDisplay, text)
}

// SendGross appends a gross text, a checkpoint that cannot be undone.
func (e *Engine) SendGross(ctx context.Context, text string) (Outgoing, error) {
	return e.send(ctx, ir.KindGross, text)
}

// SendErase blanks the view for every peer.
func (e *Engine) SendErase(ctx context.Context) (Outgoing, error) {
	return e.send(ctx, ir.KindErase, "")
}

func (e *Engine) send(ctx context.Context, kind ir.Kind, text string) (Outgoing, error) {
	at := e.now()
	p := e.header(at)
	p.Kind = kind
	p.Content = wire.Normalize(text)
	p.Complements = e.ownComplements()

	payload, err := e.commit(ctx, p)
	if err != nil {
		return Outgoing{}, err
	}

	e.metrics.Packet(metrics.PacketApplied)
	e.applyLocal(p)
	return Outgoing{Payload: payload, Decision: e.finish()}, nil
}

// Undo takes back the newest undoable entry within the configured
// look-back and returns the notice for the other peers.
//
// The undo is applied before it is journaled; if the journal write fails
// the entry stays undone locally and the error is returned.
func (e *Engine) Undo(ctx context.Context) (Outgoing, error) {
	entry, ok := e.log.UndoLast(e.maxUndo)
	if !ok {
		slog.Debug("nothing to undo", "max_undo", e.maxUndo)
		e.log.EndBatch()
		return Outgoing{}, nil
	}
	e.metrics.Undo("local")

	p := e.header(e.now())
	p.Undo = &wire.UndoNotice{SenderID: entry.SenderID, SentAt: entry.SentAt}

	payload, err := e.commit(ctx, p)
	if err != nil {
		e.finish()
		return Outgoing{}, err
	}

	e.metrics.Packet(metrics.PacketApplied)
	return Outgoing{Payload: payload, Decision: e.finish(), Undone: &entry}, nil
}

// header starts an outgoing packet stamped at.
func (e *Engine) header(at ir.Timestamp) wire.Packet {
	return wire.Packet{
		SenderID:   e.self,
		SenderName: e.name,
		Role:       e.role,
		Seq:        e.sendSeq.Next(),
		SentAt:     at,
		ReceivedAt: at,
	}
}

// commit encodes p and journals it as a local packet.
func (e *Engine) commit(ctx context.Context, p wire.Packet) ([]byte, error) {
	payload, err := wire.Encode(p)
	if err != nil {
		return nil, &ProcessError{Code: ErrCodeEncode, Message: "encode local packet", SenderID: e.self, Err: err}
	}

	rec := store.Record{
		Seq:        e.clock.Next(),
		Origin:     store.OriginLocal,
		SenderID:   e.self,
		ReceivedAt: p.ReceivedAt,
		Payload:    payload,
	}
	if err := e.record(ctx, rec); err != nil {
		return nil, err
	}
	return payload, nil
}

// applyLocal puts a packet of this peer into the log. The local peer is
// authoritative about its own order, so no estimation happens.
func (e *Engine) applyLocal(p wire.Packet) {
	if p.HasMain() {
		entry := ir.NewLocal(p.SenderID, p.SenderName, p.Role, p.Kind, p.Content, p.SentAt)
		if entry.Kind == ir.KindErase {
			entry.Content = eraseContent(e.lines)
		}
		e.log.AppendLocal(entry)
		e.metrics.Entry(metrics.EntryAppended)
	}
	if p.Undo != nil {
		e.log.UndoByKey(p.Undo.SenderID, p.Undo.SentAt)
	}
}

// ownComplements restates this peer's newest entries, newest first.
func (e *Engine) ownComplements() []wire.Complement {
	if e.complements <= 0 {
		return nil
	}
	var out []wire.Complement
	for _, entry := range e.log.Complements(e.complements) {
		if entry.SenderID != e.self || entry.Kind.IsBarrier() {
			continue
		}
		out = append(out, wire.ComplementOf(entry))
	}
	return out
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
