package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"hotel_scraper/internal/app"
	"hotel_scraper/internal/domain"
)

var sample = domain.ExtractionResult{"section_1": domain.TextSection("Pool")}

func TestPersist_SequentialVersions(t *testing.T) {
	store := newMemStore()
	p := app.NewVersionedPersister(store, "run-1")
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		rec, err := p.Persist(ctx, "https://example.com/a.html", nil, "https://example.com/a.html", sample)
		require.NoError(t, err)
		require.Equal(t, want, rec.Version)
		require.Equal(t, "run-1", rec.RunID)
		require.Equal(t, "UTC", rec.Timestamp.Location().String())
	}
	// another key starts its own sequence
	rec, err := p.Persist(ctx, "https://example.com/b.html", nil, "", sample)
	require.NoError(t, err)
	require.EqualValues(t, 1, rec.Version)
}

func TestPersist_ConcurrentSameKeySerialized(t *testing.T) {
	store := newMemStore()
	p := app.NewVersionedPersister(store, "run-1")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Persist(context.Background(), "k", nil, "", sample)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	want := make([]int64, n)
	for i := range want {
		want[i] = int64(i + 1)
	}
	if diff := cmp.Diff(want, store.versions("k")); diff != "" {
		t.Fatalf("versions mismatch (-want +got):\n%s", diff)
	}
}

// Two writers that do not share a lock (separate processes) both read count 0. The
// uniqueness backstop must let exactly one of them through.
func TestPersist_UnsharedWritersOneDuplicate(t *testing.T) {
	store := newMemStore()
	var barrier sync.WaitGroup
	barrier.Add(2)
	store.afterCount = func() {
		barrier.Done()
		barrier.Wait()
	}

	p1 := app.NewVersionedPersister(store, "run-a")
	p2 := app.NewVersionedPersister(store, "run-b")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, p := range []*app.VersionedPersister{p1, p2} {
		wg.Add(1)
		go func(i int, p *app.VersionedPersister) {
			defer wg.Done()
			_, results[i] = p.Persist(context.Background(), "k", nil, "", sample)
		}(i, p)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicateVersion):
			dup++
		default:
			t.Fatalf("unexpected err: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, dup)
	require.Equal(t, []int64{1}, store.versions("k"))
}

func TestPersist_StorageErrorWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	store := newMemStore()
	store.insertErr = boom

	_, err := app.NewVersionedPersister(store, "r").Persist(context.Background(), "k", nil, "", sample)
	require.ErrorIs(t, err, boom)
	require.False(t, errors.Is(err, domain.ErrDuplicateVersion))
}

type appendStore struct {
	*memStore
	appended int
}

func (s *appendStore) AppendNext(ctx context.Context, rec *domain.HotelRecord) error {
	n, _ := s.memStore.CountVersions(ctx, rec.DedupKey)
	rec.Version = n + 1
	s.appended++
	return s.memStore.Insert(ctx, rec)
}

func TestPersist_PrefersAtomicAppender(t *testing.T) {
	s := &appendStore{memStore: newMemStore()}
	rec, err := app.NewVersionedPersister(s, "r").Persist(context.Background(), "k", nil, "", sample)
	require.NoError(t, err)
	require.EqualValues(t, 1, rec.Version)
	require.Equal(t, 1, s.appended)
}
