package store

import (
	"context"
	"fmt"
)

// WriteSession records the journal's session row. Only the first write
// takes effect; a journal belongs to exactly one session.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session
		(id, sender_id, sender_name, role, join_time, engine_version, wire_version)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		string(sess.SenderID),
		sess.SenderName,
		string(sess.Role),
		int64(sess.JoinTime),
		sess.EngineVersion,
		sess.WireVersion,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WritePacket appends a packet record.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - a replayed seq is
// silently ignored.
func (s *Store) WritePacket(ctx context.Context, rec Record) error {
	if rec.Origin != OriginRemote && rec.Origin != OriginLocal {
		return fmt.Errorf("write packet %d: invalid origin %q", rec.Seq, rec.Origin)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packets
		(seq, origin, sender_id, received_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		rec.Seq,
		string(rec.Origin),
		string(rec.SenderID),
		int64(rec.ReceivedAt),
		rec.Payload,
	)
	if err != nil {
		return fmt.Errorf("write packet %d: %w", rec.Seq, err)
	}
	return nil
}
