package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.ChangeEvent
}

func (p *recordingPublisher) PublishChange(_ context.Context, ev core.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) last() core.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newTestStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustUser(t *testing.T, store *storage.SQLiteRepository, email string) core.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), core.User{Email: email, Name: "", PasswordHash: "x"})
	require.NoError(t, err)
	return u
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
