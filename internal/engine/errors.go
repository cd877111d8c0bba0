package engine

import (
	"errors"
	"fmt"

	"github.com/sksthrs/mekiku/internal/ir"
)

// ProcessError is a packet or action the engine could not handle.
type ProcessError struct {
	// Code identifies the error category.
	Code ProcessErrorCode

	// Message is a human-readable description.
	Message string

	// Seq is the journal seq assigned to the packet, 0 if none yet.
	Seq int64

	// SenderID is the peer the packet came from.
	SenderID ir.SenderID

	// Err is the underlying cause.
	Err error
}

// ProcessErrorCode categorizes process errors.
type ProcessErrorCode string

const (
	// ErrCodeMalformed indicates a payload that failed to decode.
	ErrCodeMalformed ProcessErrorCode = "MALFORMED_PAYLOAD"

	// ErrCodeJournal indicates the journal write failed; the packet was
	// not applied.
	ErrCodeJournal ProcessErrorCode = "JOURNAL_WRITE"

	// ErrCodeEncode indicates a local action could not be encoded.
	ErrCodeEncode ProcessErrorCode = "ENCODE_FAILED"

	// ErrCodeStopped indicates the engine no longer accepts work.
	ErrCodeStopped ProcessErrorCode = "ENGINE_STOPPED"
)

// Error implements the error interface.
func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.SenderID != "" {
		msg += fmt.Sprintf(" (sender=%s, seq=%d)", e.SenderID, e.Seq)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is a malformed payload error.
// Uses errors.As to handle wrapped errors.
func IsMalformed(err error) bool {
	return hasCode(err, ErrCodeMalformed)
}

// IsJournalError reports whether err is a journal write failure.
func IsJournalError(err error) bool {
	return hasCode(err, ErrCodeJournal)
}

func hasCode(err error, code ProcessErrorCode) bool {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

func newMalformedError(sender ir.SenderID, err error) *ProcessError {
	return &ProcessError{
		Code:     ErrCodeMalformed,
		Message:  "payload rejected",
		SenderID: sender,
		Err:      err,
	}
}

func newJournalError(seq int64, sender ir.SenderID, err error) *ProcessError {
	return &ProcessError{
		Code:     ErrCodeJournal,
		Message:  "packet not journaled, not applied",
		Seq:      seq,
		SenderID: sender,
		Err:      err,
	}
}
