package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sksthrs/mekiku/internal/ir"
)

// ErrNoSession is returned by ReadSession for a journal without a session
// row.
var ErrNoSession = errors.New("journal has no session")

// ReadSession returns the journal's session row.
func (s *Store) ReadSession(ctx context.Context) (Session, error) {
	var (
		sess         Session
		sender, role string
		joinTime     int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT sender_id, sender_name, role, join_time, engine_version, wire_version
		FROM session
		WHERE id = 1
	`).Scan(&sender, &sess.SenderName, &role, &joinTime, &sess.EngineVersion, &sess.WireVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	sess.SenderID = ir.SenderID(sender)
	sess.Role = ir.Role(role)
	sess.JoinTime = ir.Timestamp(joinTime)
	return sess, nil
}

// ReadPackets returns every packet record ORDER BY seq ASC.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadPackets(ctx context.Context) ([]Record, error) {
	return s.queryPackets(ctx, `
		SELECT seq, origin, sender_id, received_at, payload
		FROM packets
		ORDER BY seq ASC
	`)
}

// ReadPacketsFrom returns the packets of one sender ORDER BY seq ASC.
func (s *Store) ReadPacketsFrom(ctx context.Context, sender ir.SenderID) ([]Record, error) {
	return s.queryPackets(ctx, `
		SELECT seq, origin, sender_id, received_at, payload
		FROM packets
		WHERE sender_id = ?
		ORDER BY seq ASC
	`, string(sender))
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
// An engine resuming a journal starts its clock there.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM packets`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq.Int64, nil
}

func (s *Store) queryPackets(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query packets: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec        Record
			origin     string
			sender     string
			receivedAt int64
		)
		if err := rows.Scan(&rec.Seq, &origin, &sender, &receivedAt, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan packet: %w", err)
		}
		rec.Origin = Origin(origin)
		rec.SenderID = ir.SenderID(sender)
		rec.ReceivedAt = ir.Timestamp(receivedAt)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packets: %w", err)
	}
	return records, nil
}
