package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted captioning session: packets arriving from peers
// at fixed receive times, actions of the local captioner, and assertions
// on the resulting transcript and view.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Display overrides the default wrap width and window height.
	Display *Display `yaml:"display,omitempty"`

	// MaxUndoRetries overrides how many packets a parked undo notice waits
	// for its target.
	MaxUndoRetries *int `yaml:"max_undo_retries,omitempty"`

	// JoinTime, when set, starts the session late: entries received
	// before it are ignored.
	JoinTime *int64 `yaml:"join_time,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the per-step trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Display sets the rendering geometry.
type Display struct {
	Columns int `yaml:"columns"`
	Lines   int `yaml:"lines"`
}

// Step is exactly one of a received packet or a local action.
type Step struct {
	Receive *Receive `yaml:"receive,omitempty"`
	Local   *Local   `yaml:"local,omitempty"`
}

// Receive is a packet from a peer.
type Receive struct {
	// From is the transport-level sender ID.
	From string `yaml:"from"`

	// At is the local receive time in milliseconds.
	At int64 `yaml:"at"`

	// Sent is the sender-claimed send time in milliseconds.
	Sent int64 `yaml:"sent"`

	// Kind is display, gross or erase. Empty for an undo-only packet.
	Kind string `yaml:"kind,omitempty"`
	Text string `yaml:"text,omitempty"`

	Undo        *UndoRef        `yaml:"undo,omitempty"`
	Complements []ComplementRef `yaml:"complements,omitempty"`

	// Raw replaces the encoded packet, e.g. to feed malformed input.
	Raw string `yaml:"raw,omitempty"`
}

// UndoRef names the entry an undo notice takes back.
type UndoRef struct {
	Sender string `yaml:"sender"`
	Sent   int64  `yaml:"sent"`
}

// ComplementRef restates an earlier entry of the same sender.
type ComplementRef struct {
	Kind   string `yaml:"kind"`
	Text   string `yaml:"text"`
	Sent   int64  `yaml:"sent"`
	Undone bool   `yaml:"undone,omitempty"`
}

// Local is an action of the local captioner.
type Local struct {
	// At sets the local wall clock before the action.
	At int64 `yaml:"at"`

	// Action is display, gross, erase or undo.
	Action string `yaml:"action"`
	Text   string `yaml:"text,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "transcript": content of every non-undone entry, in order
	// - "visible": lines in the window
	// - "len": number of logged entries, undone ones included
	// - "pending": number of parked undo notices
	// - "flags": batch flags of one step
	Type string `yaml:"type"`

	// Lines is the expected text (transcript, visible).
	Lines []string `yaml:"lines,omitempty"`

	// Count is the expected number (len, pending).
	Count int `yaml:"count,omitempty"`

	// Step is the 1-based step index (flags).
	Step int `yaml:"step,omitempty"`

	// Flags is the expected flag string, e.g. "change|inbetween" (flags).
	Flags string `yaml:"flags,omitempty"`
}

// Assertion type constants.
const (
	AssertTranscript = "transcript"
	AssertVisible    = "visible"
	AssertLen        = "len"
	AssertPending    = "pending"
	AssertFlags      = "flags"
)

var (
	receiveKinds = map[string]bool{"": true, "display": true, "gross": true, "erase": true}
	localActions = map[string]bool{"display": true, "gross": true, "erase": true, "undo": true}
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// strict: catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that all required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if d := s.Display; d != nil && (d.Columns < 1 || d.Lines < 1) {
		return fmt.Errorf("display: columns and lines must be positive")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step) error {
	switch {
	case step.Receive != nil && step.Local != nil:
		return fmt.Errorf("steps[%d]: receive and local are mutually exclusive", index)

	case step.Receive != nil:
		r := step.Receive
		if r.From == "" {
			return fmt.Errorf("steps[%d].receive: from is required", index)
		}
		if r.Raw != "" {
			return nil
		}
		if !receiveKinds[r.Kind] {
			return fmt.Errorf("steps[%d].receive: unknown kind %q", index, r.Kind)
		}
		if r.Kind == "" && r.Undo == nil && len(r.Complements) == 0 {
			return fmt.Errorf("steps[%d].receive: kind, undo or complements is required", index)
		}
		for j, c := range r.Complements {
			if !receiveKinds[c.Kind] || c.Kind == "" {
				return fmt.Errorf("steps[%d].receive.complements[%d]: unknown kind %q", index, j, c.Kind)
			}
		}

	case step.Local != nil:
		if !localActions[step.Local.Action] {
			return fmt.Errorf("steps[%d].local: unknown action %q", index, step.Local.Action)
		}

	default:
		return fmt.Errorf("steps[%d]: receive or local is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTranscript, AssertVisible:
		if a.Lines == nil {
			return fmt.Errorf("assertions[%d]: lines is required for %s (use [] for none)", index, a.Type)
		}
	case AssertLen, AssertPending:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertFlags:
		if a.Step < 1 || a.Step > steps {
			return fmt.Errorf("assertions[%d]: step must be between 1 and %d for flags", index, steps)
		}
		if a.Flags == "" {
			return fmt.Errorf("assertions[%d]: flags is required for flags", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
