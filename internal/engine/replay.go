package engine

import (
	"context"
	"fmt"

	"github.com/sksthrs/mekiku/internal/metrics"
	"github.com/sksthrs/mekiku/internal/store"
	"github.com/sksthrs/mekiku/internal/wire"
)

// Replay re-applies journaled packets in the given order, normally
// ORDER BY seq ASC as store.ReadPackets returns them.
//
// Replay follows the same code paths as live traffic: remote packets go
// through the estimator and the pending undo queue, local packets are
// appended. Nothing is written to the journal. Replaying a journal into a
// fresh engine with the same session reproduces the transcript, the
// window position and the journal clock.
func (e *Engine) Replay(ctx context.Context, records []store.Record) (int, error) {
	applied := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		p, err := wire.Decode(rec.Payload, rec.SenderID, rec.ReceivedAt)
		if err != nil {
			pe := newMalformedError(rec.SenderID, err)
			pe.Seq = rec.Seq
			return applied, pe
		}
		e.clock.advanceTo(rec.Seq)

		switch rec.Origin {
		case store.OriginLocal:
			e.sendSeq.advanceTo(p.Seq)
			e.metrics.Packet(metrics.PacketApplied)
			e.applyLocal(p)
			e.finish()
		case store.OriginRemote:
			e.applyRemote(p)
		default:
			return applied, fmt.Errorf("replay seq %d: unknown origin %q", rec.Seq, rec.Origin)
		}
		applied++
	}
	return applied, nil
}
