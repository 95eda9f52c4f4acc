//go:build integration

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"hotel_scraper/internal/domain"
	mysqlrepo "hotel_scraper/internal/storage/mysql"
)

func pstr(s string) *string { return &s }

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	// Start isolated MySQL; let Docker pick a free host port.
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=hotel_data",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/hotel_data?charset=utf8mb4", resource.GetPort("3306/tcp"))

	var db *sql.DB
	pool.MaxWait = 2 * time.Minute
	if err := pool.Retry(func() error {
		var e error
		db, e = mysqlrepo.Open(context.Background(), dsn)
		return e
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := mysqlrepo.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func TestRepo_MySQL_AppendAndRead(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()
	repo := mysqlrepo.New(db, "hotels_golf_extra")
	other := mysqlrepo.New(db, "hotels_golf-motion")

	data := domain.ExtractionResult{
		"section_1": domain.TextSection("Pool"),
		"prices": {Kind: domain.SectionPrices, Prices: []domain.PriceEntry{{
			DateRange:    "01.04. - 30.04.",
			RoomCategory: "Double room",
			PriceDetails: domain.PriceDetails{DoublePrice: "120 €", SingleSurcharge: domain.NotAvailable},
		}}},
	}
	for want := int64(1); want <= 2; want++ {
		rec := &domain.HotelRecord{DedupKey: "https://x/a", HotelName: pstr("Alpha"), SourceURL: "https://x/a", Data: data, Timestamp: time.Now(), RunID: "r1"}
		if err := repo.AppendNext(ctx, rec); err != nil {
			t.Fatalf("AppendNext: %v", err)
		}
		if rec.Version != want {
			t.Fatalf("expected version %d, got %d", want, rec.Version)
		}
	}
	// collections keep separate sequences
	rec := &domain.HotelRecord{DedupKey: "https://x/a", Data: data, Timestamp: time.Now()}
	if err := other.AppendNext(ctx, rec); err != nil || rec.Version != 1 {
		t.Fatalf("other collection: version=%d err=%v", rec.Version, err)
	}

	n, err := repo.CountVersions(ctx, "https://x/a")
	if err != nil || n != 2 {
		t.Fatalf("CountVersions = %d, %v", n, err)
	}

	rv, err := repo.Latest(ctx, "https://x/a")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if rv.Version != 2 || rv.HotelName == nil || *rv.HotelName != "Alpha" || rv.RunID != "r1" {
		t.Fatalf("unexpected latest: %+v", rv)
	}
	if _, err := repo.Latest(ctx, "https://x/missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// explicit version already taken
	dup := &domain.HotelRecord{DedupKey: "https://x/a", Version: 2, Data: data, Timestamp: time.Now()}
	if err := repo.Insert(ctx, dup); !errors.Is(err, domain.ErrDuplicateVersion) {
		t.Fatalf("expected ErrDuplicateVersion, got %v", err)
	}
}

func TestRepo_MySQL_ConcurrentAppend(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db, "hotels_classic_golf")

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &domain.HotelRecord{DedupKey: "Son Vida", Data: domain.ExtractionResult{}, Timestamp: time.Now()}
			errs <- repo.AppendNext(context.Background(), rec)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AppendNext: %v", err)
		}
	}

	page, err := repo.ListVersions(context.Background(), "Son Vida", 100)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(page.Items) != n {
		t.Fatalf("expected %d versions, got %d", n, len(page.Items))
	}
	for i, it := range page.Items {
		if it.Version != int64(n-i) {
			t.Fatalf("expected gapless descending versions, got %d at %d", it.Version, i)
		}
	}
}

func TestRepo_MySQL_KeysCompareExactly(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()
	repo := mysqlrepo.New(db, "hotels_classic_golf")

	long := "https://x/" + strings.Repeat("p", 1500)
	keys := []string{"https://x/A", "https://x/a", "Hotel Müller", "Hotel Muller", long}
	for _, key := range keys {
		rec := &domain.HotelRecord{DedupKey: key, Data: domain.ExtractionResult{}, Timestamp: time.Now()}
		if err := repo.AppendNext(ctx, rec); err != nil {
			t.Fatalf("AppendNext(%.20q): %v", key, err)
		}
		if rec.Version != 1 {
			t.Fatalf("key %.20q: expected version 1, got %d", key, rec.Version)
		}
	}
	for _, key := range keys {
		page, err := repo.ListVersions(ctx, key, 10)
		if err != nil {
			t.Fatalf("ListVersions: %v", err)
		}
		if len(page.Items) != 1 || page.Items[0].DedupKey != key {
			t.Fatalf("key %.20q: history mixed with another key: %+v", key, page.Items)
		}
	}
}
