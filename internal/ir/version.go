package ir

// Version constants for the wire format and engine.
const (
	// WireVersion is the payload format version written to the journal.
	WireVersion = "1"

	// EngineVersion is the mekiku engine version.
	EngineVersion = "0.1.0"
)
