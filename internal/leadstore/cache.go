package leadstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CachedStore decorates a Store with a short-TTL read cache for Get.
// Every write to a lead invalidates its entry, so the orchestrator
// never decides on data older than one TTL and never on data it wrote
// through this decorator itself. List queries bypass the cache.
type CachedStore struct {
	inner Store
	ttl   time.Duration

	mu      sync.Mutex
	entries map[uuid.UUID]cacheEntry
}

type cacheEntry struct {
	lead    Lead
	expires time.Time
}

// NewCachedStore wraps inner with a read cache. A non-positive ttl
// disables caching entirely.
func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[uuid.UUID]cacheEntry),
	}
}

func (c *CachedStore) invalidate(id uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Get returns the cached lead when fresh, otherwise reads through.
func (c *CachedStore) Get(ctx context.Context, id uuid.UUID) (*Lead, error) {
	if c.ttl > 0 {
		c.mu.Lock()
		entry, ok := c.entries[id]
		c.mu.Unlock()
		if ok && time.Now().Before(entry.expires) {
			lead := entry.lead
			return &lead, nil
		}
	}

	lead, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 {
		c.mu.Lock()
		c.entries[id] = cacheEntry{lead: *lead, expires: time.Now().Add(c.ttl)}
		c.mu.Unlock()
	}
	return lead, nil
}

// GetByCallID always reads through; call-id lookups race with webhook
// writes and must see current state.
func (c *CachedStore) GetByCallID(ctx context.Context, callID string) (*Lead, error) {
	return c.inner.GetByCallID(ctx, callID)
}

func (c *CachedStore) Create(ctx context.Context, lead *Lead) error {
	return c.inner.Create(ctx, lead)
}

func (c *CachedStore) List(ctx context.Context, limit, offset int) ([]Lead, error) {
	return c.inner.List(ctx, limit, offset)
}

func (c *CachedStore) Delete(ctx context.Context, id uuid.UUID) error {
	c.invalidate(id)
	return c.inner.Delete(ctx, id)
}

func (c *CachedStore) BeginCall(ctx context.Context, id uuid.UUID, callID string, now time.Time) (bool, error) {
	c.invalidate(id)
	return c.inner.BeginCall(ctx, id, callID, now)
}

func (c *CachedStore) SwapCallID(ctx context.Context, id uuid.UUID, oldCallID, newCallID string) (bool, error) {
	c.invalidate(id)
	return c.inner.SwapCallID(ctx, id, oldCallID, newCallID)
}

func (c *CachedStore) ClearCall(ctx context.Context, id uuid.UUID, callID string) (bool, error) {
	c.invalidate(id)
	return c.inner.ClearCall(ctx, id, callID)
}

func (c *CachedStore) RecordOutcome(ctx context.Context, id uuid.UUID, out Outcome) error {
	c.invalidate(id)
	return c.inner.RecordOutcome(ctx, id, out)
}

func (c *CachedStore) SetStatus(ctx context.Context, id uuid.UUID, status EngagementStatus) error {
	c.invalidate(id)
	return c.inner.SetStatus(ctx, id, status)
}

func (c *CachedStore) MarkFallbackSent(ctx context.Context, id uuid.UUID) (bool, error) {
	c.invalidate(id)
	return c.inner.MarkFallbackSent(ctx, id)
}

func (c *CachedStore) ListDueForRetry(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return c.inner.ListDueForRetry(ctx, now)
}

func (c *CachedStore) ListStuck(ctx context.Context, cutoff time.Time) ([]Lead, error) {
	return c.inner.ListStuck(ctx, cutoff)
}

var _ Store = (*CachedStore)(nil)
