package testutil

import (
	"fmt"
	"sync"
)

// SequenceRunIDs generates run IDs "<prefix>-1", "<prefix>-2", ... so that
// migration logs are byte-identical across test runs.
//
// Thread-safety: Generate is safe for concurrent use.
type SequenceRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceRunIDs creates a generator. An empty prefix becomes "test-run".
func NewSequenceRunIDs(prefix string) *SequenceRunIDs {
	if prefix == "" {
		prefix = "test-run"
	}
	return &SequenceRunIDs{prefix: prefix}
}

// Generate returns the next run ID.
func (g *SequenceRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
