package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/sksthrs/mekiku/internal/ir"
)

// ErrMalformed is returned for payloads that cannot become a Packet.
var ErrMalformed = errors.New("malformed payload")

// flagUndone marks an undone complement.
const flagUndone = 1

type payload struct {
	Seq        *int64  `json:"seqCount"`
	SentAt     *int64  `json:"sendTimeCount"`
	SenderName *string `json:"senderName"`
	MemberType *string `json:"memberType"`

	Display *string `json:"D,omitempty"`
	Gross   *string `json:"G,omitempty"`
	Erase   *string `json:"E,omitempty"`

	UndoID     *string `json:"U_ID,omitempty"`
	UndoSentAt *int64  `json:"U_SENDTIME,omitempty"`

	Complements []complement `json:"CM,omitempty"`
}

type complement struct {
	Display  *string `json:"D,omitempty"`
	Gross    *string `json:"G,omitempty"`
	Erase    *string `json:"E,omitempty"`
	Original *int64  `json:"O"`
	Flag     int     `json:"F,omitempty"`
}

// Decode parses a payload received from sender at receivedAt.
//
// All four header fields are required. Text fields are normalised to NFC
// so equal captions typed on different platforms compare equal.
func Decode(data []byte, sender ir.SenderID, receivedAt ir.Timestamp) (Packet, error) {
	var raw payload
	if err := json.Unmarshal(data, &raw); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Seq == nil || raw.SentAt == nil || raw.SenderName == nil || raw.MemberType == nil {
		return Packet{}, fmt.Errorf("%w: missing header field", ErrMalformed)
	}

	p := Packet{
		SenderID:   sender,
		SenderName: norm.NFC.String(*raw.SenderName),
		Role:       ir.Role(*raw.MemberType),
		Seq:        *raw.Seq,
		SentAt:     ir.Timestamp(*raw.SentAt),
		ReceivedAt: receivedAt,
	}
	p.Kind, p.Content = body(raw.Display, raw.Gross, raw.Erase)

	if raw.UndoID != nil || raw.UndoSentAt != nil {
		if raw.UndoID == nil || *raw.UndoID == "" || raw.UndoSentAt == nil {
			return Packet{}, fmt.Errorf("%w: incomplete undo notice", ErrMalformed)
		}
		p.Undo = &UndoNotice{SenderID: ir.SenderID(*raw.UndoID), SentAt: ir.Timestamp(*raw.UndoSentAt)}
	}

	for i, c := range raw.Complements {
		kind, content := body(c.Display, c.Gross, c.Erase)
		if kind == "" || c.Original == nil {
			return Packet{}, fmt.Errorf("%w: complement %d", ErrMalformed, i)
		}
		state := ir.StateActive
		if c.Flag&flagUndone != 0 {
			state = ir.StateUndone
		}
		p.Complements = append(p.Complements, Complement{
			Kind:           kind,
			Content:        content,
			SentAtOriginal: ir.Timestamp(*c.Original),
			State:          state,
		})
	}
	return p, nil
}

// body picks the main body. An empty gross text is no gross, as peers send
// it only with content.
func body(display, gross, erase *string) (ir.Kind, string) {
	switch {
	case display != nil:
		return ir.KindDisplay, norm.NFC.String(*display)
	case gross != nil && *gross != "":
		return ir.KindGross, norm.NFC.String(*gross)
	case erase != nil:
		return ir.KindErase, ""
	}
	return "", ""
}

// Encode renders p in payload form. SenderID and ReceivedAt are not part
// of the payload.
func Encode(p Packet) ([]byte, error) {
	seq, sentAt := p.Seq, int64(p.SentAt)
	name, role := p.SenderName, string(p.Role)
	raw := payload{
		Seq:        &seq,
		SentAt:     &sentAt,
		SenderName: &name,
		MemberType: &role,
	}

	content := p.Content
	switch p.Kind {
	case "":
	case ir.KindDisplay:
		raw.Display = &content
	case ir.KindGross:
		raw.Gross = &content
	case ir.KindErase:
		empty := ""
		raw.Erase = &empty
	default:
		return nil, fmt.Errorf("encode packet: unsupported kind %q", p.Kind)
	}

	if p.Undo != nil {
		id, at := string(p.Undo.SenderID), int64(p.Undo.SentAt)
		raw.UndoID, raw.UndoSentAt = &id, &at
	}

	for _, c := range p.Complements {
		var out complement
		text := c.Content
		switch c.Kind {
		case ir.KindDisplay:
			out.Display = &text
		case ir.KindGross:
			out.Gross = &text
		case ir.KindErase:
			empty := ""
			out.Erase = &empty
		default:
			return nil, fmt.Errorf("encode complement: unsupported kind %q", c.Kind)
		}
		original := int64(c.SentAtOriginal)
		out.Original = &original
		if c.State == ir.StateUndone {
			out.Flag = flagUndone
		}
		raw.Complements = append(raw.Complements, out)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode packet: %w", err)
	}
	return data, nil
}

// Normalize returns s in NFC, the form every decoded text is in.
func Normalize(s string) string {
	return norm.NFC.String(s)
}
