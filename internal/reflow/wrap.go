package reflow

import (
	"log/slog"
	"strings"
)

// MaxIterations bounds the number of measurements spent on one logical line.
// Past it the remaining text is emitted as one oversized line.
const MaxIterations = 10000

// Wrap splits text on newlines and wraps every segment independently.
// An explicit newline always starts a new line, even an empty one.
//
// The result is identical for identical text and measurement.
func Wrap(text string, m Measurer) []string {
	var result []string
	for _, segment := range strings.Split(text, "\n") {
		result = append(result, wrapLine(segment, m)...)
	}
	return result
}

// wrapLine binary-searches the longest prefix that still fits one rendered
// line, emits it, and repeats on the remainder.
//
// Search positions are rune offsets so a code point is never cut in half.
func wrapLine(line string, m Measurer) []string {
	runes := []rune(line)
	n := len(runes)
	if n == 0 {
		return []string{""}
	}

	var result []string
	iterations := 0
	for begin := 0; begin < n; {
		// [begin:lo] fits; [begin:hi] overflows unless hi == n+1.
		lo, hi := begin, n+1
		for hi-lo > 1 {
			if iterations >= MaxIterations {
				slog.Warn("reflow iteration ceiling reached",
					"iterations", iterations,
					"remaining_runes", n-begin,
				)
				return append(result, string(runes[begin:]))
			}
			iterations++

			mid := (lo + hi) / 2
			if m.Lines(string(runes[begin:mid])) <= 1 {
				lo = mid
			} else {
				hi = mid
			}
		}

		cut := lo
		if cut == begin {
			// a single rune wider than the display still takes a line
			cut = begin + 1
		}
		result = append(result, string(runes[begin:cut]))
		begin = cut
	}
	return result
}
