package conflicts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/soundscape-ai/lexicon/internal/model"
)

// Lister loads the approved vocabulary. *storage.DB satisfies it.
type Lister interface {
	ListApprovedTerms(ctx context.Context, category model.Category) ([]model.StandardTerm, error)
}

// Cache holds the current vocabulary snapshot and rebuilds it lazily
// after invalidation. Every TermStore write (insert, merge, status
// change, delete) must call Invalidate; concurrent refreshes are
// coalesced so a busy invalidation window costs one query.
type Cache struct {
	lister Lister
	logger *slog.Logger

	mu   sync.RWMutex
	snap *Snapshot

	sf singleflight.Group
}

func NewCache(lister Lister, logger *slog.Logger) *Cache {
	return &Cache{lister: lister, logger: logger}
}

// Snapshot returns the current snapshot, refreshing if invalidated.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	return c.Refresh(ctx)
}

// Refresh rebuilds the snapshot from storage unconditionally.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.sf.Do("vocabulary", func() (any, error) {
		terms, err := c.lister.ListApprovedTerms(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("conflicts: refresh snapshot: %w", err)
		}
		snap := BuildSnapshot(terms)
		c.mu.Lock()
		c.snap = snap
		c.mu.Unlock()
		c.logger.Debug("vocabulary snapshot refreshed", "terms", snap.Size())
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate discards the cached snapshot. The next Snapshot call
// rebuilds it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}
