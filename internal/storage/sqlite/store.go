// Package sqlite is the single-file backend, used for local runs and unit tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"hotel_scraper/internal/domain"
)

//go:embed schema.sql
var Schema string

// Open creates the database file if needed and applies the schema. One connection:
// SQLite serializes writers anyway and this keeps transactions from hitting SQLITE_BUSY.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

type Store struct {
	db         *sql.DB
	collection string
}

func New(db *sql.DB, collection string) *Store { return &Store{db: db, collection: collection} }

func (s *Store) CountVersions(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hotel_records WHERE collection = ? AND dedup_key = ?`,
		s.collection, key).Scan(&n)
	return n, err
}

func (s *Store) AppendNext(ctx context.Context, rec *domain.HotelRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
INSERT INTO hotel_record_heads (collection, dedup_key, last_version) VALUES (?, ?, 1)
ON CONFLICT (collection, dedup_key) DO UPDATE SET last_version = last_version + 1
RETURNING last_version`, s.collection, rec.DedupKey).Scan(&rec.Version)
		if err != nil {
			return err
		}
		return s.insert(ctx, tx, rec)
	})
}

func (s *Store) Insert(ctx context.Context, rec *domain.HotelRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO hotel_record_heads (collection, dedup_key, last_version) VALUES (?, ?, ?)
ON CONFLICT (collection, dedup_key) DO UPDATE SET last_version = MAX(last_version, excluded.last_version)`,
			s.collection, rec.DedupKey, rec.Version)
		if err != nil {
			return err
		}
		return s.insert(ctx, tx, rec)
	})
}

func (s *Store) insert(ctx context.Context, tx *sql.Tx, rec *domain.HotelRecord) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	var name any
	if rec.HotelName != nil {
		name = *rec.HotelName
	}
	res, err := tx.ExecContext(ctx, `
INSERT INTO hotel_records (collection, dedup_key, version, hotel_name, source_url, data, run_id, scraped_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.collection, rec.DedupKey, rec.Version, name, rec.SourceURL, string(data), rec.RunID,
		rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return mapErr(err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = fmt.Sprint(id)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func mapErr(err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", domain.ErrDuplicateVersion, err)
		}
	}
	return err
}

func (s *Store) Latest(ctx context.Context, key string) (domain.RecordView, error) {
	page, err := s.ListVersions(ctx, key, 1)
	if err != nil {
		return domain.RecordView{}, err
	}
	if len(page.Items) == 0 {
		return domain.RecordView{}, domain.ErrNotFound
	}
	return page.Items[0], nil
}

func (s *Store) ListVersions(ctx context.Context, key string, limit int) (domain.RecordsPage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT dedup_key, hotel_name, source_url, data, version, scraped_at, run_id
FROM hotel_records
WHERE collection = ? AND dedup_key = ?
ORDER BY version DESC
LIMIT ?`, s.collection, key, limit)
	if err != nil {
		return domain.RecordsPage{}, err
	}
	defer rows.Close()

	out := domain.RecordsPage{Items: []domain.RecordView{}}
	for rows.Next() {
		var (
			rv              domain.RecordView
			name, src, run  sql.NullString
			data, scrapedAt string
		)
		if err := rows.Scan(&rv.DedupKey, &name, &src, &data, &rv.Version, &scrapedAt, &run); err != nil {
			return domain.RecordsPage{}, err
		}
		if name.Valid {
			rv.HotelName = &name.String
		}
		rv.SourceURL, rv.RunID = src.String, run.String
		rv.Data = json.RawMessage(data)
		if rv.Timestamp, err = time.Parse(time.RFC3339Nano, scrapedAt); err != nil {
			return domain.RecordsPage{}, fmt.Errorf("parse scraped_at: %w", err)
		}
		out.Items = append(out.Items, rv)
	}
	return out, rows.Err()
}
