package app

import (
	"context"
	"fmt"
	"time"

	"hotel_scraper/internal/domain"
)

// QueryService reads the versioned log of each configured site.
type QueryService struct {
	stores   map[string]domain.RecordStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(stores map[string]domain.RecordStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{stores: stores, cache: c, cacheTTL: ttl}
}

func LatestCacheKey(site, key string) string { return fmt.Sprintf("rec:latest:%s:%s", site, key) }

func (s *QueryService) store(site string) (domain.RecordStore, error) {
	st, ok := s.stores[site]
	if !ok {
		return nil, fmt.Errorf("site %q: %w", site, domain.ErrNotFound)
	}
	return st, nil
}

func (s *QueryService) Latest(ctx context.Context, site, key string) (domain.RecordView, error) {
	st, err := s.store(site)
	if err != nil {
		return domain.RecordView{}, err
	}
	ck := LatestCacheKey(site, key)
	var rv domain.RecordView
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, ck, &rv); ok {
			return rv, nil
		}
	}
	rv, err = st.Latest(ctx, key)
	if err != nil {
		return domain.RecordView{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, ck, rv, int(s.cacheTTL.Seconds()))
	}
	return rv, nil
}

// ListVersions is newest first. History is not cached: it grows with every run.
func (s *QueryService) ListVersions(ctx context.Context, site, key string, limit int) (domain.RecordsPage, error) {
	st, err := s.store(site)
	if err != nil {
		return domain.RecordsPage{}, err
	}
	page, err := st.ListVersions(ctx, key, limit)
	if err != nil {
		return domain.RecordsPage{}, err
	}
	if len(page.Items) == 0 {
		return domain.RecordsPage{}, fmt.Errorf("no versions for %q: %w", key, domain.ErrNotFound)
	}
	return page, nil
}
