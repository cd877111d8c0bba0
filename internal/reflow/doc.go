// Package reflow divides caption text into rendered display lines.
//
// Measurement is injected: a Measurer reports how many rendered lines an
// arbitrary string occupies at the current display width. The wrapping
// algorithm never touches a rendering surface, so it is deterministic for a
// given Measurer and testable with the Fixed fake.
//
// Usage:
//
//	lines := reflow.Wrap("hello\nworld", reflow.Cells{Columns: 40})
package reflow
