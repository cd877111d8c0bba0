package transcript

import (
	"github.com/sksthrs/mekiku/internal/ir"
	"github.com/sksthrs/mekiku/internal/reflow"
)

// testMeasure wraps at ten runes per line.
var testMeasure = reflow.Fixed{Columns: 10}

// display creates a received Display entry.
func display(sender ir.SenderID, content string, sentAt, receivedAt ir.Timestamp) ir.Entry {
	return ir.NewReceived(sender, string(sender), ir.RoleAuthor, ir.KindDisplay, content, sentAt, receivedAt)
}

// entryOf creates a received entry of any kind.
func entryOf(kind ir.Kind, sender ir.SenderID, content string, sentAt, receivedAt ir.Timestamp) ir.Entry {
	return ir.NewReceived(sender, string(sender), ir.RoleAuthor, kind, content, sentAt, receivedAt)
}

// contents returns the content of every entry, undone ones included.
func contents(l *Log) []string {
	result := []string{}
	for _, e := range l.Entries() {
		result = append(result, e.Content)
	}
	return result
}

// newTestLog creates a log with the default parameters and join time 0.
func newTestLog() *Log {
	return NewLog()
}

// fixed5 wraps at five runes per line.
var fixed5 = reflow.Fixed{Columns: 5}
