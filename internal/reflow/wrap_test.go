package reflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_ShortLine(t *testing.T) {
	assert.Equal(t, []string{"hello"}, Wrap("hello", Fixed{Columns: 10}))
}

func TestWrap_SplitsAtWidth(t *testing.T) {
	assert.Equal(t, []string{"abc", "def", "g"}, Wrap("abcdefg", Fixed{Columns: 3}))
}

func TestWrap_ExactMultiple(t *testing.T) {
	assert.Equal(t, []string{"abc", "def"}, Wrap("abcdef", Fixed{Columns: 3}))
}

func TestWrap_EmptyString(t *testing.T) {
	assert.Equal(t, []string{""}, Wrap("", Fixed{Columns: 3}))
}

func TestWrap_ExplicitNewlines(t *testing.T) {
	got := Wrap("ab\n\ncdefg", Fixed{Columns: 3})
	assert.Equal(t, []string{"ab", "", "cde", "fg"}, got)
}

func TestWrap_TrailingNewline(t *testing.T) {
	assert.Equal(t, []string{"ab", ""}, Wrap("ab\n", Fixed{Columns: 3}))
}

func TestWrap_EraseContentIsBlankLines(t *testing.T) {
	got := Wrap(strings.Repeat("\n", 4), Fixed{Columns: 3})
	assert.Equal(t, []string{"", "", "", "", ""}, got)
}

func TestWrap_MultiByteRunes(t *testing.T) {
	got := Wrap("あいうえお", Fixed{Columns: 2})
	assert.Equal(t, []string{"あい", "うえ", "お"}, got)
}

func TestWrap_CellsCountsWideRunes(t *testing.T) {
	// each kana is two cells wide
	got := Wrap("あいうえお", Cells{Columns: 4})
	assert.Equal(t, []string{"あい", "うえ", "お"}, got)
}

func TestWrap_RuneWiderThanDisplay(t *testing.T) {
	got := Wrap("あい", Cells{Columns: 1})
	assert.Equal(t, []string{"あ", "い"}, got)
}

func TestWrap_Deterministic(t *testing.T) {
	text := "the quick brown fox\njumps over the lazy dog"
	first := Wrap(text, Fixed{Columns: 7})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Wrap(text, Fixed{Columns: 7}))
	}
}

func TestWrap_PreservesText(t *testing.T) {
	text := "0123456789abcdefghijklmnopqrstuvwxyz"
	lines := Wrap(text, Fixed{Columns: 5})
	assert.Equal(t, text, strings.Join(lines, ""))
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 5)
	}
}

func TestWrap_IterationCeiling(t *testing.T) {
	calls := 0
	// never fits, never terminates on its own without the single-rune rule
	m := MeasureFunc(func(s string) int {
		calls++
		return 2
	})
	text := strings.Repeat("x", MaxIterations)
	lines := Wrap(text, m)

	require.NotEmpty(t, lines)
	assert.Equal(t, text, strings.Join(lines, ""))
	assert.LessOrEqual(t, calls, MaxIterations)
}

func TestMeasureFunc(t *testing.T) {
	m := MeasureFunc(func(s string) int { return len(s) })
	assert.Equal(t, 3, m.Lines("abc"))
}

func TestFixed_ZeroColumns(t *testing.T) {
	assert.Equal(t, 1, Fixed{}.Lines("anything"))
}
