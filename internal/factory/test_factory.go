package factory

import (
	"log/slog"
	"time"

	"github.com/mcoot/racecoord/internal/dependencies/mocks"
	"github.com/mcoot/racecoord/internal/services/catalog"
	"github.com/mcoot/racecoord/internal/services/race"
	"github.com/mcoot/racecoord/internal/services/supervisor"
	"github.com/mcoot/racecoord/internal/storage/memory"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	MockIDs    *mocks.MockIDGenerator
	Memory     *memory.Storage
}

// testItems is a small fixed target pool
var testItems = []string{
	"minecraft:diamond",
	"minecraft:elytra",
	"minecraft:beacon",
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp(logger *slog.Logger) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockIDs := mocks.NewMockIDGenerator()

	pool := catalog.New(logger)
	_ = pool.LoadItems(testItems)

	app := newWithDependencies(store, mockClock, mockRandom, mockIDs, pool, race.DefaultConfig(), supervisor.DefaultConfig(), logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		MockIDs:    mockIDs,
		Memory:     store,
	}
}
