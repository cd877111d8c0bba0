package ir

import "time"

// SenderID identifies a peer for the lifetime of its connection.
type SenderID string

// Timestamp is a wall-clock instant in Unix milliseconds.
type Timestamp int64

// FromTime converts t to a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time converts the timestamp back to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t))
}

// Role is the member type of a sender.
type Role string

const (
	// RoleAuthor is a captioner who sends text.
	RoleAuthor Role = "wi"
	// RoleViewer only watches the transcript.
	RoleViewer Role = "wv"
)

// Kind is the content type of an Entry.
type Kind string

const (
	KindDisplay Kind = "D"
	KindGross   Kind = "G"
	KindErase   Kind = "E"
	KindUndo    Kind = "U"
)

// IsBarrier reports whether the kind is an ordering and undo barrier.
// Gross and Erase entries can never be undone and block undo from
// reaching entries before them.
func (k Kind) IsBarrier() bool {
	return k == KindGross || k == KindErase
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDisplay, KindGross, KindErase, KindUndo:
		return true
	}
	return false
}

// State is the soft-delete state of an Entry.
type State int

const (
	StateActive State = iota
	StateUndone
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateUndone:
		return "undone"
	default:
		return "unknown"
	}
}

// Entry is one logged caption or control event.
type Entry struct {
	SenderID   SenderID  `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Role       Role      `json:"role"`
	Kind       Kind      `json:"kind"`
	Content    string    `json:"content"`
	ReceivedAt Timestamp `json:"received_at"`
	SentAt     Timestamp `json:"sent_at"`

	// SentAtOriginal is set only on complement entries, which restate the
	// send time of an earlier entry.
	SentAtOriginal *Timestamp `json:"sent_at_original,omitempty"`

	State State `json:"state"`

	// Lines is the wrapped rendering of Content at the current display width.
	Lines []string `json:"-"`
}

// NewReceived builds an Entry from a payload received from a remote peer.
func NewReceived(sender SenderID, name string, role Role, kind Kind, content string, sentAt, receivedAt Timestamp) Entry {
	return Entry{
		SenderID:   sender,
		SenderName: name,
		Role:       role,
		Kind:       kind,
		Content:    content,
		ReceivedAt: receivedAt,
		SentAt:     sentAt,
	}
}

// NewLocal builds an Entry for a locally originated send.
// The receipt time equals the send time.
func NewLocal(sender SenderID, name string, role Role, kind Kind, content string, sentAt Timestamp) Entry {
	return NewReceived(sender, name, role, kind, content, sentAt, sentAt)
}

// Complement returns a copy of e that restates original as its first send time.
func (e Entry) Complement(original Timestamp) Entry {
	c := e
	c.SentAtOriginal = &original
	c.Lines = nil
	return c
}

// IsComplement reports whether e carries an original send time.
func (e Entry) IsComplement() bool {
	return e.SentAtOriginal != nil
}

// SortTime is the sender-claimed time used to order entries of one sender.
func (e Entry) SortTime() Timestamp {
	if e.SentAtOriginal != nil {
		return *e.SentAtOriginal
	}
	return e.SentAt
}

// RecvTime is the local arrival time used to order entries across senders.
func (e Entry) RecvTime() Timestamp {
	return e.ReceivedAt
}

// Undone reports whether the entry has been soft-deleted.
func (e Entry) Undone() bool {
	return e.State == StateUndone
}
