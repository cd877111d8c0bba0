// Package transcript implements the caption reconciliation log.
//
// Peers broadcast caption events over an unordered channel with no shared
// clock. Every receiver feeds those events into a Log, which reconstructs a
// plausible, locally stable order, absorbs duplicates, supports bounded
// non-destructive undo and filters history from before the local join.
// A Pager keeps the top-of-viewport position over the wrapped lines of the
// Log and skips undone entries.
//
// ORDERING:
//
// Two signals exist and neither is global:
//   - SortTime (sender-claimed send time) is trusted between entries of the
//     same sender.
//   - RecvTime (local arrival time) is the only signal across senders.
//
// Estimate scans the most recent MaxLogScan entries backwards and combines
// both signals into ADD, INSERT, UPDATE or REJECT.
//
// BATCHES:
//
// The transport delivers events in packets (a primary event plus its
// complements). Callers Ingest every event of a packet, Materialize once and
// then EndBatch. The Log never recomputes display state between Ingest calls
// of the same packet, so a packet is atomic from the Pager's point of view.
//
// The package is single-threaded and synchronous. It holds no timers and
// performs no I/O; the engine package owns the goroutine that drives it.
package transcript
