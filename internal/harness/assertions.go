package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s -> %s\n", event.Step, event.Type, event.Sender, event.Kind, event.Flags)
		}
	}

	return buf.String()
}

func assertLines(kind string, actual, expected []string, trace []TraceEvent) error {
	if slices.Equal(actual, expected) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%q", expected),
		Actual:   fmt.Sprintf("%q", actual),
		Trace:    trace,
	}
}

func assertCount(kind string, actual, expected int) error {
	if actual == expected {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d", expected),
		Actual:   fmt.Sprintf("%d", actual),
	}
}

// assertFlags compares the batch flags of one step in their string form.
func assertFlags(trace []TraceEvent, assertion Assertion) error {
	if assertion.Step < 1 || assertion.Step > len(trace) {
		return fmt.Errorf("flags assertion: step %d out of range 1..%d", assertion.Step, len(trace))
	}
	actual := trace[assertion.Step-1].Flags.String()
	if actual == assertion.Flags {
		return nil
	}
	return &AssertionError{
		Type:     AssertFlags,
		Expected: fmt.Sprintf("step %d flags %s", assertion.Step, assertion.Flags),
		Actual:   actual,
		Trace:    trace,
	}
}

// EvaluateAssertions runs all assertions against the result.
// Returns a list of error messages (empty if all pass).
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTranscript:
			err = assertLines(AssertTranscript, result.Transcript, assertion.Lines, result.Trace)
		case AssertVisible:
			err = assertLines(AssertVisible, result.Visible, assertion.Lines, result.Trace)
		case AssertLen:
			err = assertCount(AssertLen, result.Len, assertion.Count)
		case AssertPending:
			err = assertCount(AssertPending, result.Pending, assertion.Count)
		case AssertFlags:
			err = assertFlags(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
