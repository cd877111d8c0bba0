package engine

import (
	"github.com/sksthrs/mekiku/internal/ir"
	"github.com/sksthrs/mekiku/internal/wire"
)

// DefaultMaxUndoRetries is how many packets an undo notice waits for its
// target before it is dropped.
const DefaultMaxUndoRetries = 50

// pendingUndo is an undo notice whose target has not arrived yet.
type pendingUndo struct {
	notice wire.UndoNotice
	age    int // packets handled since the notice arrived
}

// pendingUndos holds undo notices that overtook their target.
//
// Notices are matched when the target entry is ingested, and retried
// against the log after every packet. Each notice has a budget of
// maxRetries packets; retries are driven by traffic, never by timers.
type pendingUndos struct {
	maxRetries int
	items      []pendingUndo
}

func newPendingUndos(maxRetries int) *pendingUndos {
	return &pendingUndos{maxRetries: maxRetries}
}

// add parks a notice. A notice already parked is not added twice.
func (p *pendingUndos) add(n wire.UndoNotice) {
	for _, it := range p.items {
		if it.notice == n {
			return
		}
	}
	p.items = append(p.items, pendingUndo{notice: n})
}

// has reports whether a notice for the entry sent by sender at sentAt is
// parked.
func (p *pendingUndos) has(sender ir.SenderID, sentAt ir.Timestamp) bool {
	for _, it := range p.items {
		if it.notice.SenderID == sender && it.notice.SentAt == sentAt {
			return true
		}
	}
	return false
}

// take removes and reports a notice for the entry sent by sender at sentAt.
func (p *pendingUndos) take(sender ir.SenderID, sentAt ir.Timestamp) bool {
	for i, it := range p.items {
		if it.notice.SenderID == sender && it.notice.SentAt == sentAt {
			p.items = append(p.items[:i], p.items[i+1:]...)
			return true
		}
	}
	return false
}

// retry offers every parked notice to apply and keeps those still not
// found. Notices over budget are removed and returned.
func (p *pendingUndos) retry(apply func(wire.UndoNotice) bool) (expired []wire.UndoNotice) {
	kept := p.items[:0]
	for _, it := range p.items {
		if apply(it.notice) {
			continue
		}
		it.age++
		if it.age > p.maxRetries {
			expired = append(expired, it.notice)
			continue
		}
		kept = append(kept, it)
	}
	clear(p.items[len(kept):])
	p.items = kept
	return expired
}

func (p *pendingUndos) len() int {
	return len(p.items)
}
