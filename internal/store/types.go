package store

import "github.com/sksthrs/mekiku/internal/ir"

// Origin tells whether a journaled packet came from a peer or was sent by
// this peer.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// Record is one journaled packet.
type Record struct {
	Seq        int64        `json:"seq"`
	Origin     Origin       `json:"origin"`
	SenderID   ir.SenderID  `json:"sender_id"`
	ReceivedAt ir.Timestamp `json:"received_at"`
	Payload    []byte       `json:"payload"`
}

// Session is the identity and join time of the peer that wrote a journal.
type Session struct {
	SenderID      ir.SenderID  `json:"sender_id"`
	SenderName    string       `json:"sender_name"`
	Role          ir.Role      `json:"role"`
	JoinTime      ir.Timestamp `json:"join_time"`
	EngineVersion string       `json:"engine_version"`
	WireVersion   string       `json:"wire_version"`
}
