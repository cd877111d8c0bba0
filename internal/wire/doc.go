// Package wire converts between transport payloads and caption entries.
//
// A payload is one JSON object sent by a peer. It always carries a header
// (seqCount, sendTimeCount, senderName, memberType) and at most one main
// body keyed by its content letter:
//
//	D          display text
//	G          gross text (a checkpoint)
//	E          erase (the text is ignored)
//	U_ID       undo notice target sender, with U_SENDTIME
//	CM         complements: restated earlier entries of the same sender
//
// The transport supplies the sender ID and the local receipt time; neither
// is part of the payload. Decoding is the only place untrusted input is
// checked: malformed payloads return ErrMalformed and never reach the
// transcript.
package wire
