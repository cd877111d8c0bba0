package transcript

import (
	"fmt"
	"strings"
)

// BatchFlags summarises the mutations of the current batch.
// The presentation layer uses them to choose an animated scroll or a snap.
type BatchFlags uint8

const (
	FlagNop    BatchFlags = 0
	FlagChange BatchFlags = 1 << (iota - 1)
	FlagInBetween
	FlagUndo
	FlagGross
	FlagErase
)

// restructureFlags force re-materialisation from the top of the display.
const restructureFlags = FlagInBetween | FlagUndo | FlagGross | FlagErase

// Has reports whether every bit of f2 is set in f.
func (f BatchFlags) Has(f2 BatchFlags) bool {
	return f&f2 == f2 && f2 != 0
}

// Restructure reports whether the batch changed more than the log tail.
func (f BatchFlags) Restructure() bool {
	return f&restructureFlags != 0
}

// Barrier reports whether a Gross or Erase entry arrived in the batch.
func (f BatchFlags) Barrier() bool {
	return f&(FlagGross|FlagErase) != 0
}

var flagNames = []struct {
	flag BatchFlags
	name string
}{
	{FlagChange, "change"},
	{FlagInBetween, "inbetween"},
	{FlagUndo, "undo"},
	{FlagGross, "gross"},
	{FlagErase, "erase"},
}

func (f BatchFlags) String() string {
	if f == FlagNop {
		return "nop"
	}
	var parts []string
	for _, n := range flagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// MarshalText renders the flags in their String form.
func (f BatchFlags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses the String form.
func (f *BatchFlags) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "nop" || s == "" {
		*f = FlagNop
		return nil
	}
	var out BatchFlags
	for _, part := range strings.Split(s, "|") {
		flag, ok := flagByName(part)
		if !ok {
			return fmt.Errorf("unknown batch flag %q", part)
		}
		out |= flag
	}
	*f = out
	return nil
}

func flagByName(name string) (BatchFlags, bool) {
	for _, n := range flagNames {
		if n.name == name {
			return n.flag, true
		}
	}
	return FlagNop, false
}

// UndoOutcome is the result of UndoByKey.
type UndoOutcome int

const (
	// Undone means the matching entry was found and flagged.
	Undone UndoOutcome = iota + 1
	// AlreadyUndone means the matching entry had been undone before.
	AlreadyUndone
	// NotFound means no entry matched; the caller may retry later.
	NotFound
)

func (o UndoOutcome) String() string {
	switch o {
	case Undone:
		return "undone"
	case AlreadyUndone:
		return "already_undone"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
