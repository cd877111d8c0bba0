package engine

import "github.com/sksthrs/mekiku/internal/transcript"

// Decision tells the presentation layer how to show the result of one
// packet or action.
//
// The engine has already moved the window to the latest lines; From and To
// are the window tops before and after. Snap is set for Gross and Erase,
// which replace the view at once. Otherwise the presentation may animate
// a scroll from From to To.
type Decision struct {
	Flags transcript.BatchFlags `json:"flags"`
	Snap  bool                  `json:"snap"`
	From  transcript.Position   `json:"from"`
	To    transcript.Position   `json:"to"`
	Lines []string              `json:"lines"`
}

// Changed reports whether the packet affected the transcript.
func (d Decision) Changed() bool {
	return d.Flags != transcript.FlagNop
}

// Sink receives every Decision that changed the transcript.
// Deliver is called from the engine goroutine and must not block for long.
type Sink interface {
	Deliver(Decision)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Decision)

// Deliver calls f(d).
func (f SinkFunc) Deliver(d Decision) {
	f(d)
}

type discardSink struct{}

func (discardSink) Deliver(Decision) {}
