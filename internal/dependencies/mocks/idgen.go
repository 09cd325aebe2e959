package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/racecoord/internal/dependencies/idgen"
)

// MockIDGenerator issues predictable ids: queued values first, then "id-1", "id-2", ...
type MockIDGenerator struct {
	mu     sync.Mutex
	queued []string
	count  int
}

// Ensure MockIDGenerator implements Generator
var _ idgen.Generator = (*MockIDGenerator)(nil)

// NewMockIDGenerator creates a new MockIDGenerator
func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

// NewID returns the next queued id or a sequential fallback
func (g *MockIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queued) > 0 {
		id := g.queued[0]
		g.queued = g.queued[1:]
		return id
	}
	g.count++
	return fmt.Sprintf("id-%d", g.count)
}

// QueueIDs adds ids to be returned before the sequential fallback
func (g *MockIDGenerator) QueueIDs(ids ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queued = append(g.queued, ids...)
}
