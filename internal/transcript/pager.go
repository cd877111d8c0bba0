package transcript

import "github.com/sksthrs/mekiku/internal/reflow"

// Position is the top-of-viewport pointer: a log index and a line within
// that entry's wrapped lines.
//
// Index == Log.Len() means the window sits past the tail with nothing
// visible; the next appended entry becomes the top. This is the state of
// an empty log.
type Position struct {
	Index int `json:"index"`
	Line  int `json:"line"`
}

// Pager is a scrolling window over the wrapped lines of one Log.
//
// Undone entries have zero height. The Pager holds only an index pair into
// the Log and must be revalidated after the Log mutates entries at or
// before its position; Materialize does this.
type Pager struct {
	log *Log
	pos Position
}

// NewPager creates a Pager at the top of log.
func NewPager(log *Log) *Pager {
	return &Pager{log: log}
}

// Position returns the current top-of-viewport position.
func (p *Pager) Position() Position {
	return p.pos
}

// Materialize wraps the entries touched in the current batch and
// revalidates the window.
func (p *Pager) Materialize(m reflow.Measurer) {
	p.log.Materialize(m, p.pos.Index)
	p.Revalidate()
}

// Rewrap re-wraps everything from the top of the window, after a change of
// display width.
func (p *Pager) Rewrap(m reflow.Measurer) {
	p.log.RematerializeAll(m, p.pos.Index)
	p.Revalidate()
}

// Revalidate moves the window off undone entries and clamps the line
// index into the entry's current lines.
func (p *Pager) Revalidate() {
	n := p.log.Len()
	if p.pos.Index >= n {
		p.pos = Position{Index: n}
		return
	}
	if p.pos.Index < 0 {
		p.pos = Position{}
	}
	p.skipUndone(&p.pos)
	if p.pos.Index >= n {
		return
	}
	if lines := len(p.log.entries[p.pos.Index].Lines); p.pos.Line >= lines {
		p.pos.Line = max(lines-1, 0)
	}
}

// Advance moves the window forward by n visible lines.
// It reports true when the end of the log stopped it.
func (p *Pager) Advance(n int) bool {
	return p.advance(&p.pos, n)
}

// VisibleLines returns up to count lines starting at the window top,
// skipping undone entries. A count of zero or less returns no lines.
func (p *Pager) VisibleLines(count int) []string {
	if count <= 0 {
		return []string{}
	}
	return p.linesFrom(p.pos, count)
}

// linesFrom collects up to limit lines starting at pos; limit < 0 reads to
// the tail.
func (p *Pager) linesFrom(pos Position, limit int) []string {
	result := []string{}
	if p.skipUndone(&pos) {
		return result
	}
	for limit < 0 || len(result) < limit {
		lines := p.log.entries[pos.Index].Lines
		if pos.Line < len(lines) {
			result = append(result, lines[pos.Line])
		}
		if p.advance(&pos, 1) {
			break
		}
	}
	return result
}

// JumpToLatest moves the window forward so the last count visible lines
// end at the log tail. The window never moves backwards: when fewer than
// count lines remain below the top it stays where it is.
func (p *Pager) JumpToLatest(count int) {
	total := len(p.linesFrom(p.pos, -1))
	if total > count {
		p.Advance(total - count)
	}
}

// advance moves pos forward by n lines. It returns true when pos cannot
// proceed because it reached the last line or only undone entries remain.
func (p *Pager) advance(pos *Position, n int) bool {
	if p.skipUndone(pos) {
		return true
	}
	for i := 0; i < n; i++ {
		if pos.Line < len(p.log.entries[pos.Index].Lines)-1 {
			pos.Line++
			continue
		}
		if pos.Index >= p.log.Len()-1 {
			return true
		}
		pos.Index++
		pos.Line = 0
		if p.skipUndone(pos) {
			return true
		}
	}
	return false
}

// skipUndone moves pos to the next non-undone entry at or after it.
// It returns true when none exists; pos is then past the tail.
func (p *Pager) skipUndone(pos *Position) bool {
	n := p.log.Len()
	for pos.Index < n && p.log.entries[pos.Index].Undone() {
		pos.Index++
		pos.Line = 0
	}
	return pos.Index >= n
}
