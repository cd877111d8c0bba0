// Package engine dispatches caption packets into the transcript.
//
// The engine owns one transcript.Log and its Pager and is their only
// writer. Packets from the transport and actions of the local captioner
// both pass through a FIFO queue into a single goroutine (Run), so the
// transcript core stays synchronous and single-threaded while the
// transport may deliver from any goroutine.
//
// Per packet the engine:
//  1. decodes the payload (malformed payloads stop here)
//  2. writes it to the session journal, keyed by the logical clock
//  3. ingests the main entry and every complement
//  4. applies an undo notice, or parks it until its target arrives
//  5. re-wraps the touched lines and moves the window to the latest lines
//  6. closes the batch and reports a Decision to the Sink
//
// Errors are logged and processing continues with the next packet. A
// packet that could not be journaled is not applied, so a journal always
// replays to the transcript that was shown.
package engine
