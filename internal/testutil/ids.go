package testutil

// StaticID generates the same identifier every time.
//
// The same scenario with the same StaticID produces byte-identical artifacts
// and golden traces.
//
// Thread-safety: StaticID is stateless and safe for concurrent use.
type StaticID struct {
	id string
}

// NewStaticID creates a fixed identifier generator.
// If id is empty, Generate() returns "test-id-default".
func NewStaticID(id string) *StaticID {
	if id == "" {
		id = "test-id-default"
	}
	return &StaticID{id: id}
}

// Generate returns the fixed identifier.
func (g *StaticID) Generate() string {
	return g.id
}
