// Package idgen produces identifiers for export snapshots and resolver batch
// runs.
package idgen

import (
	"sync"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so snapshot and
// batch ids sort by creation time in logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Sequence returns predetermined identifiers for testing.
//
// Thread-safety: Sequence is safe for concurrent use via internal mutex.
type Sequence struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewSequence creates a generator that returns ids in order.
//
//	gen := NewSequence("run-1", "run-2")
//	gen.Generate() // "run-1"
//	gen.Generate() // "run-2"
//	gen.Generate() // panic: all ids exhausted
func NewSequence(ids ...string) *Sequence {
	return &Sequence{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, which catches a test that created
// more snapshots or batches than it declared.
func (g *Sequence) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("idgen.Sequence: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
