package planning

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"sprintboard/internal/models"
	"sprintboard/internal/storage/sqlite"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store    *sqlite.Store
	clock    *testClock
	registry *Registry
	pages    *Paginator
	backlog  *Backlog
	ledger   *Ledger
	board    models.Board
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)}
	logger := zaptest.NewLogger(t)
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "planning.db"), logger, sqlite.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	board, err := store.CreateBoard(context.Background(), "Planning")
	require.NoError(t, err)

	pages := NewPaginator(store)
	return &fixture{
		store:    store,
		clock:    clock,
		registry: NewRegistry(store, pages, logger),
		pages:    pages,
		backlog:  NewBacklog(store, logger),
		ledger:   NewLedger(store),
		board:    board,
	}
}

func (f *fixture) createSprint(t *testing.T, name string) models.Sprint {
	t.Helper()
	sp, err := f.registry.CreateSprint(context.Background(), SprintInput{BoardID: f.board.ID, Name: name})
	require.NoError(t, err)
	return sp
}

func (f *fixture) closeSprint(t *testing.T, name string) models.Sprint {
	t.Helper()
	ctx := context.Background()
	sp := f.createSprint(t, name)
	_, err := f.registry.StartSprint(ctx, sp.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	closed, err := f.registry.CompleteSprint(ctx, sp.ID)
	require.NoError(t, err)
	return closed
}

func ptr[T any](v T) *T {
	return &v
}
