package testutil

// FixedIDGenerator generates the same sender ID every time.
//
// Scenarios name the local peer (e.g. "me") so journals and golden
// transcripts do not depend on random UUIDs.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id.
// If id is empty, Generate returns "local".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "local"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
//
// Implements engine.IDGenerator interface.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
