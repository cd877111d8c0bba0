package transcript

import (
	"slices"

	"github.com/sksthrs/mekiku/internal/ir"
	"github.com/sksthrs/mekiku/internal/reflow"
)

// Log is the reconciliation log: the ordered sequence of caption entries
// one display reconstructs from unordered events.
//
// INVARIANTS:
//   - entries are never removed; StateUndone is the only erasure
//   - once placed, only State and Lines of an entry change
//   - entries received before the join time never enter via Ingest
//
// A Log is owned by exactly one consumer and is not safe for concurrent use.
type Log struct {
	entries  []ir.Entry
	params   Params
	joinTime ir.Timestamp

	// batch state, reset by EndBatch
	flags      BatchFlags
	appendFrom int // first index appended in the current batch
	lowest     int // lowest index inserted or undone in the current batch
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithParams overrides the estimator parameters.
func WithParams(p Params) LogOption {
	return func(l *Log) {
		l.params = p
	}
}

// WithJoinTime sets the late-join cutoff at construction.
func WithJoinTime(t ir.Timestamp) LogOption {
	return func(l *Log) {
		l.joinTime = t
	}
}

// NewLog creates an empty Log.
func NewLog(opts ...LogOption) *Log {
	l := &Log{params: DefaultParams()}
	for _, opt := range opts {
		opt(l)
	}
	l.lowest = -1
	return l
}

// SetJoinTime establishes the late-join cutoff. Entries received before t
// are rejected by Ingest.
func (l *Log) SetJoinTime(t ir.Timestamp) {
	l.joinTime = t
}

// JoinTime returns the late-join cutoff.
func (l *Log) JoinTime() ir.Timestamp {
	return l.joinTime
}

// Params returns the estimator parameters in use.
func (l *Log) Params() Params {
	return l.params
}

// Len returns the number of entries, undone ones included.
func (l *Log) Len() int {
	return len(l.entries)
}

// At returns a copy of the entry at index i.
func (l *Log) At(i int) ir.Entry {
	return l.entries[i]
}

// Entries returns a copy of every entry in log order.
func (l *Log) Entries() []ir.Entry {
	return slices.Clone(l.entries)
}

// Flags returns the flags accumulated since the last EndBatch.
func (l *Log) Flags() BatchFlags {
	return l.flags
}

// baseFlags maps a kind to the flags its insertion raises.
// Undo notices are never logged as entries; they go through UndoByKey.
func baseFlags(k ir.Kind) BatchFlags {
	switch k {
	case ir.KindDisplay:
		return FlagChange
	case ir.KindGross:
		return FlagChange | FlagGross
	case ir.KindErase:
		return FlagChange | FlagErase
	default:
		return FlagNop
	}
}

// Ingest places a remotely received entry.
//
// Entries received before the join time, entries of an unknown kind and
// entries the estimator cannot anchor are dropped and yield FlagNop.
// A retransmission of a logged entry only has an effect when it carries
// the undone state for a non-barrier entry.
func (l *Log) Ingest(e ir.Entry) BatchFlags {
	r := l.ingest(e)
	l.flags |= r
	return r
}

func (l *Log) ingest(e ir.Entry) BatchFlags {
	base := baseFlags(e.Kind)
	if base == FlagNop {
		return FlagNop
	}
	if e.RecvTime() < l.joinTime {
		return FlagNop
	}

	est := Estimate(l.entries, e, l.params)
	switch est.Result {
	case ResultAdd:
		l.entries = append(l.entries, withoutLines(e))
		return base

	case ResultInsert:
		l.entries = slices.Insert(l.entries, est.Index, withoutLines(e))
		l.touch(est.Index)
		return base | FlagInBetween

	case ResultUpdate:
		existing := &l.entries[est.Index]
		if !existing.Undone() && e.Undone() && !e.Kind.IsBarrier() {
			existing.State = ir.StateUndone
			l.touch(est.Index)
			return FlagChange | FlagInBetween | FlagUndo
		}
		return FlagNop

	default:
		return FlagNop
	}
}

// AppendLocal appends an entry this peer sent itself. The local peer is
// authoritative about its own order, so the estimator is skipped.
func (l *Log) AppendLocal(e ir.Entry) BatchFlags {
	base := baseFlags(e.Kind)
	if base == FlagNop {
		return FlagNop
	}
	l.entries = append(l.entries, withoutLines(e))
	l.flags |= base
	return base
}

// UndoLast flags the newest non-undone entry within maxLookback entries of
// the tail as undone and returns it so its text can be edited again.
//
// Gross and Erase entries are checkpoints: reaching one stops the scan and
// nothing is undone.
func (l *Log) UndoLast(maxLookback int) (ir.Entry, bool) {
	lowest := max(len(l.entries)-maxLookback, 0)
	for i := len(l.entries) - 1; i >= lowest; i-- {
		e := &l.entries[i]
		if e.Kind.IsBarrier() {
			return ir.Entry{}, false
		}
		if !e.Undone() {
			e.State = ir.StateUndone
			l.touch(i)
			l.flags |= FlagChange | FlagUndo
			return *e, true
		}
	}
	return ir.Entry{}, false
}

// UndoByKey flags the entry sent by sender at sentAt as undone.
//
// NotFound is a normal outcome: undo notices can overtake the entry they
// refer to, so callers keep the request and retry after later ingests.
// Gross and Erase entries never match.
func (l *Log) UndoByKey(sender ir.SenderID, sentAt ir.Timestamp) UndoOutcome {
	lowest := max(len(l.entries)-l.params.MaxLogScan, 0)
	for i := len(l.entries) - 1; i >= lowest; i-- {
		e := &l.entries[i]
		if e.SenderID != sender || e.SentAt != sentAt || e.Kind.IsBarrier() {
			continue
		}
		if e.Undone() {
			return AlreadyUndone
		}
		e.State = ir.StateUndone
		l.touch(i)
		l.flags |= FlagChange | FlagInBetween | FlagUndo
		return Undone
	}
	return NotFound
}

// EndBatch closes the current packet: flags are cleared and the append
// cursor moves to the tail.
func (l *Log) EndBatch() {
	l.flags = FlagNop
	l.appendFrom = len(l.entries)
	l.lowest = -1
}

// Materialize re-runs line wrapping over the entries touched in the
// current batch. top is the log index displayed at the top of the view.
//
// Structural changes (insert, undo, gross, erase) re-wrap from the top of
// the display, or from the lowest touched index if that lies above it.
// Pure appends only wrap the appended range. Undone entries are skipped.
func (l *Log) Materialize(m reflow.Measurer, top int) {
	if l.flags == FlagNop {
		return
	}
	from := l.appendFrom
	if l.flags.Restructure() {
		from = top
		if l.lowest >= 0 && l.lowest < from {
			from = l.lowest
		}
	}
	l.wrapFrom(max(from, 0), m)
}

// RematerializeAll re-wraps every entry from top, used after the display
// width changed.
func (l *Log) RematerializeAll(m reflow.Measurer, top int) {
	l.wrapFrom(max(top, 0), m)
}

func (l *Log) wrapFrom(from int, m reflow.Measurer) {
	for i := from; i < len(l.entries); i++ {
		if l.entries[i].Undone() {
			continue
		}
		l.entries[i].Lines = reflow.Wrap(l.entries[i].Content, m)
	}
}

// Transcript returns the content of every non-undone entry in log order.
func (l *Log) Transcript() []string {
	result := []string{}
	for _, e := range l.entries {
		if e.Undone() {
			continue
		}
		result = append(result, e.Content)
	}
	return result
}

// Complements returns up to n of the newest entries, newest first, stopping
// at the first entry received before the join time. A sender attaches them
// to outgoing packets so late or lossy peers can cross-check order.
func (l *Log) Complements(n int) []ir.Entry {
	result := []ir.Entry{}
	lowest := max(len(l.entries)-n, 0)
	for i := len(l.entries) - 1; i >= lowest; i-- {
		if l.entries[i].RecvTime() < l.joinTime {
			break
		}
		result = append(result, l.entries[i])
	}
	return result
}

func (l *Log) touch(i int) {
	if l.lowest < 0 || i < l.lowest {
		l.lowest = i
	}
}

func withoutLines(e ir.Entry) ir.Entry {
	e.Lines = nil
	return e
}
