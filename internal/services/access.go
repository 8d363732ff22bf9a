package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"tally/internal/core"
	"tally/internal/storage"
)

// AccessService decides what a user may do on a ledger. Collaborator
// permissions are cached briefly; accept and revoke evict the entry.
type AccessService struct {
	lookup    func(ctx context.Context, ownerID, userID int64) (core.Permission, error)
	cache     *ristretto.Cache[string, core.Permission]
	ttl       time.Duration
	evictions atomic.Uint64
}

func NewAccessService(store *storage.SQLiteRepository, ttl time.Duration) (*AccessService, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, core.Permission]{
		NumCounters: 1e5,
		MaxCost:     1 << 16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create access cache: %w", err)
	}
	return &AccessService{lookup: store.FindPermission, cache: cache, ttl: ttl}, nil
}

func accessKey(ownerID, userID int64) string {
	return fmt.Sprintf("%d:%d", ownerID, userID)
}

// Permission returns the caller's permission on ownerID's ledger. The owner
// always has full access; anyone without an accepted invite is forbidden.
func (a *AccessService) Permission(ctx context.Context, userID, ownerID int64) (core.Permission, error) {
	if userID == ownerID {
		return core.FullAccess, nil
	}

	key := accessKey(ownerID, userID)
	if p, ok := a.cache.Get(key); ok {
		return p, nil
	}

	seen := a.evictions.Load()
	p, err := a.lookup(ctx, ownerID, userID)
	if errors.Is(err, core.ErrNotFound) {
		return "", core.ErrForbidden
	}
	if err != nil {
		return "", fmt.Errorf("lookup permission: %w", err)
	}

	if a.ttl > 0 {
		a.cache.SetWithTTL(key, p, 1, a.ttl)
		a.cache.Wait()
		// An eviction during the lookup may have raced the read; drop what we stored.
		if a.evictions.Load() != seen {
			a.cache.Del(key)
		}
	}
	return p, nil
}

// Authorize fails with core.ErrForbidden unless the user may read, or write
// when write is set, on ownerID's ledger.
func (a *AccessService) Authorize(ctx context.Context, userID, ownerID int64, write bool) error {
	p, err := a.Permission(ctx, userID, ownerID)
	if err != nil {
		return err
	}
	if write && !p.CanWrite() {
		slog.WarnContext(ctx, "Write denied on shared ledger",
			"user_id", userID, "owner_id", ownerID, "permission", p)
		return core.ErrForbidden
	}
	return nil
}

// Evict forgets a cached permission so the next check hits storage.
func (a *AccessService) Evict(ownerID, userID int64) {
	a.evictions.Add(1)
	a.cache.Del(accessKey(ownerID, userID))
}

func (a *AccessService) Close() {
	a.cache.Close()
}
