package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hotel_scraper/internal/domain"
)

// keyedLock hands out one mutex per key and drops it when the last holder leaves.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock { return &keyedLock{locks: make(map[string]*keyLock)} }

func (k *keyedLock) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// VersionedPersister is the only writer of a source collection.
type VersionedPersister struct {
	store domain.RecordStore
	locks *keyedLock
	runID string
	now   func() time.Time
}

func NewVersionedPersister(store domain.RecordStore, runID string) *VersionedPersister {
	return &VersionedPersister{
		store: store,
		locks: newKeyedLock(),
		runID: runID,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Persist appends data as the next version for dedupKey. A uniqueness violation comes
// back as domain.ErrDuplicateVersion and is not retried.
func (p *VersionedPersister) Persist(ctx context.Context, dedupKey string, hotelName *string, sourceURL string, data domain.ExtractionResult) (domain.HotelRecord, error) {
	rec := domain.HotelRecord{
		DedupKey:  dedupKey,
		HotelName: hotelName,
		SourceURL: sourceURL,
		Data:      data,
		Timestamp: p.now(),
		RunID:     p.runID,
	}

	if ap, ok := p.store.(domain.AtomicAppender); ok {
		if err := ap.AppendNext(ctx, &rec); err != nil {
			return domain.HotelRecord{}, wrapPersistErr(dedupKey, err)
		}
		return rec, nil
	}

	unlock := p.locks.Lock(dedupKey)
	defer unlock()

	n, err := p.store.CountVersions(ctx, dedupKey)
	if err != nil {
		return domain.HotelRecord{}, fmt.Errorf("count versions for %s: %w", dedupKey, err)
	}
	rec.Version = n + 1
	if err := p.store.Insert(ctx, &rec); err != nil {
		return domain.HotelRecord{}, wrapPersistErr(dedupKey, err)
	}
	return rec, nil
}

func wrapPersistErr(key string, err error) error {
	if errors.Is(err, domain.ErrDuplicateVersion) {
		return err
	}
	return fmt.Errorf("insert record for %s: %w", key, err)
}
