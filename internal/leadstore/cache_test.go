package leadstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store that counts Get calls.
type fakeStore struct {
	leads map[uuid.UUID]*Lead
	gets  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]*Lead)}
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*Lead, error) {
	f.gets++
	l, ok := f.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *l
	return &copied, nil
}

func (f *fakeStore) GetByCallID(_ context.Context, callID string) (*Lead, error) {
	for _, l := range f.leads {
		if l.ActiveCallID != nil && *l.ActiveCallID == callID {
			copied := *l
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) Create(_ context.Context, lead *Lead) error {
	f.leads[lead.ID] = lead
	return nil
}

func (f *fakeStore) List(_ context.Context, _, _ int) ([]Lead, error) { return nil, nil }

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.leads, id)
	return nil
}

func (f *fakeStore) BeginCall(_ context.Context, id uuid.UUID, callID string, now time.Time) (bool, error) {
	l := f.leads[id]
	if l.ActiveCallID != nil {
		return false, nil
	}
	l.ActiveCallID = &callID
	l.Status = StatusInitiated
	l.NextRetryTime = nil
	l.LastEngagementTime = &now
	return true, nil
}

func (f *fakeStore) ClearCall(_ context.Context, id uuid.UUID, callID string) (bool, error) {
	l := f.leads[id]
	if l.ActiveCallID == nil || *l.ActiveCallID != callID {
		return false, nil
	}
	l.ActiveCallID = nil
	return true, nil
}

func (f *fakeStore) SwapCallID(_ context.Context, id uuid.UUID, oldCallID, newCallID string) (bool, error) {
	l := f.leads[id]
	if l.ActiveCallID == nil || *l.ActiveCallID != oldCallID {
		return false, nil
	}
	l.ActiveCallID = &newCallID
	return true, nil
}

func (f *fakeStore) RecordOutcome(_ context.Context, id uuid.UUID, out Outcome) error {
	l, ok := f.leads[id]
	if !ok {
		return ErrNotFound
	}
	l.Status = out.Status
	l.RetryCount = out.RetryCount
	l.NextRetryTime = out.NextRetryTime
	if l.TerminalOutcome == nil {
		l.TerminalOutcome = out.TerminalOutcome
	}
	return nil
}

func (f *fakeStore) SetStatus(_ context.Context, id uuid.UUID, status EngagementStatus) error {
	l, ok := f.leads[id]
	if !ok {
		return ErrNotFound
	}
	l.Status = status
	return nil
}

func (f *fakeStore) MarkFallbackSent(_ context.Context, id uuid.UUID) (bool, error) {
	l := f.leads[id]
	if l.FallbackSent {
		return false, nil
	}
	l.FallbackSent = true
	return true, nil
}

func (f *fakeStore) ListDueForRetry(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeStore) ListStuck(_ context.Context, _ time.Time) ([]Lead, error) { return nil, nil }

func TestCachedStoreServesFromCacheWithinTTL(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStore()
	id := uuid.New()
	fake.leads[id] = &Lead{ID: id, Status: StatusPending}

	cached := NewCachedStore(fake, time.Minute)

	if _, err := cached.Get(ctx, id); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := cached.Get(ctx, id); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if fake.gets != 1 {
		t.Fatalf("expected 1 backing read, got %d", fake.gets)
	}
}

func TestCachedStoreInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStore()
	id := uuid.New()
	fake.leads[id] = &Lead{ID: id, Status: StatusPending}

	cached := NewCachedStore(fake, time.Minute)

	if _, err := cached.Get(ctx, id); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := cached.BeginCall(ctx, id, "call-1", time.Now()); err != nil {
		t.Fatalf("begin call: %v", err)
	}

	lead, err := cached.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after write: %v", err)
	}
	if !lead.HasActiveCall() {
		t.Fatal("cache served stale lead after invalidating write")
	}
	if fake.gets != 2 {
		t.Fatalf("expected 2 backing reads, got %d", fake.gets)
	}
}

func TestCachedStoreDisabledWithZeroTTL(t *testing.T) {
	ctx := context.Background()
	fake := newFakeStore()
	id := uuid.New()
	fake.leads[id] = &Lead{ID: id}

	cached := NewCachedStore(fake, 0)

	for i := 0; i < 3; i++ {
		if _, err := cached.Get(ctx, id); err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
	}
	if fake.gets != 3 {
		t.Fatalf("expected every read to hit the backing store, got %d", fake.gets)
	}
}
