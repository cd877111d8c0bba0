package wire

import "github.com/sksthrs/mekiku/internal/ir"

// Packet is one decoded payload together with its transport metadata.
type Packet struct {
	SenderID   ir.SenderID  `json:"sender_id"`
	SenderName string       `json:"sender_name"`
	Role       ir.Role      `json:"role"`
	Seq        int64        `json:"seq"`
	SentAt     ir.Timestamp `json:"sent_at"`
	ReceivedAt ir.Timestamp `json:"received_at"`

	// Kind is empty when the packet has no main body (a bare undo notice
	// or a header-only packet such as a heartbeat).
	Kind    ir.Kind `json:"kind,omitempty"`
	Content string  `json:"content,omitempty"`

	Undo        *UndoNotice  `json:"undo,omitempty"`
	Complements []Complement `json:"complements,omitempty"`
}

// UndoNotice asks every peer to undo the entry sent by SenderID at SentAt.
type UndoNotice struct {
	SenderID ir.SenderID  `json:"sender_id"`
	SentAt   ir.Timestamp `json:"sent_at"`
}

// Complement restates an earlier entry of the packet's sender.
type Complement struct {
	Kind           ir.Kind      `json:"kind"`
	Content        string       `json:"content"`
	SentAtOriginal ir.Timestamp `json:"sent_at_original"`
	State          ir.State     `json:"state"`
}

// HasMain reports whether the packet carries a display, gross or erase body.
func (p Packet) HasMain() bool {
	return p.Kind != ""
}

// Entries expands the packet into the entries the transcript ingests: the
// main body first, then every complement in packet order. Complements share
// the packet's send and receipt times and carry their original send time.
func (p Packet) Entries() []ir.Entry {
	var out []ir.Entry
	if p.HasMain() {
		out = append(out, ir.NewReceived(p.SenderID, p.SenderName, p.Role, p.Kind, p.Content, p.SentAt, p.ReceivedAt))
	}
	for _, c := range p.Complements {
		e := ir.NewReceived(p.SenderID, p.SenderName, p.Role, c.Kind, c.Content, p.SentAt, p.ReceivedAt).Complement(c.SentAtOriginal)
		e.State = c.State
		out = append(out, e)
	}
	return out
}

// ComplementOf converts a logged entry into a complement for an outgoing
// packet.
func ComplementOf(e ir.Entry) Complement {
	return Complement{
		Kind:           e.Kind,
		Content:        e.Content,
		SentAtOriginal: e.SortTime(),
		State:          e.State,
	}
}
