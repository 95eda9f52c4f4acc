// Package storage selects the record store backend from configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"hotel_scraper/internal/domain"
	"hotel_scraper/internal/shared"
	mongostore "hotel_scraper/internal/storage/mongo"
	mysqlrepo "hotel_scraper/internal/storage/mysql"
	"hotel_scraper/internal/storage/sqlite"
)

// Open connects to the configured backend once and returns one store per site name,
// each bound to the site's collection. closeFn releases the shared connection.
func Open(ctx context.Context, cfg shared.Config, sites []domain.SiteConfig) (stores map[string]domain.RecordStore, closeFn func(), err error) {
	dsn, err := cfg.StoreDSN()
	if err != nil {
		return nil, nil, err
	}
	stores = make(map[string]domain.RecordStore, len(sites))

	switch cfg.StoreDriver {
	case "mongo":
		cl, err := mongostore.Connect(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		db := cl.Database(cfg.MongoDB)
		for _, s := range sites {
			st, err := mongostore.New(ctx, db, s.Collection)
			if err != nil {
				_ = cl.Disconnect(context.Background())
				return nil, nil, err
			}
			stores[s.Name] = st
		}
		closeFn = func() { _ = cl.Disconnect(context.Background()) }

	case "mysql":
		db, err := mysqlrepo.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := mysqlrepo.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		for _, s := range sites {
			stores[s.Name] = mysqlrepo.New(db, s.Collection)
		}
		closeFn = func() { _ = db.Close() }

	case "sqlite":
		db, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		for _, s := range sites {
			stores[s.Name] = sqlite.New(db, s.Collection)
		}
		closeFn = func() { _ = db.Close() }

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	log.Info().Str("driver", cfg.StoreDriver).Int("collections", len(stores)).Msg("record store ready")
	return stores, closeFn, nil
}
