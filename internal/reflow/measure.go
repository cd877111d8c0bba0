package reflow

import (
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// Measurer reports how many rendered lines s occupies at the current width.
type Measurer interface {
	Lines(s string) int
}

// MeasureFunc adapts a plain function to the Measurer interface.
type MeasureFunc func(s string) int

// Lines implements Measurer.
func (f MeasureFunc) Lines(s string) int {
	return f(s)
}

// Fixed treats every rune as one column: Columns runes make one line.
// It is the deterministic fake used by tests and the scenario harness.
type Fixed struct {
	Columns int
}

// Lines implements Measurer.
func (m Fixed) Lines(s string) int {
	return linesFor(utf8.RuneCountInString(s), m.Columns)
}

// Cells measures terminal display cells, so wide East Asian runes take
// two columns.
type Cells struct {
	Columns int
}

// Lines implements Measurer.
func (m Cells) Lines(s string) int {
	return linesFor(lipgloss.Width(s), m.Columns)
}

func linesFor(width, columns int) int {
	if width == 0 {
		return 1
	}
	if columns <= 0 {
		return 1
	}
	return (width + columns - 1) / columns
}
