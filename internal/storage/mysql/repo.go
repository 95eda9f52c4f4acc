package mysql

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"hotel_scraper/internal/domain"
)

const (
	errDupEntry   = 1062
	errLockWait   = 1205
	errDeadlock   = 1213
	maxTxAttempts = 3
)

func keyHash(key string) []byte {
	h := sha256.Sum256([]byte(key))
	return h[:]
}

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valNonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Open connects with the settings the store relies on: parsed DATETIME columns in UTC.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	conn, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Repo is one source collection inside the shared hotel_records table.
type Repo struct {
	db         *sql.DB
	collection string
}

func New(db *sql.DB, collection string) *Repo { return &Repo{db: db, collection: collection} }

func (r *Repo) CountVersions(ctx context.Context, key string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, countVersionsSQL, r.collection, keyHash(key)).Scan(&n)
	return n, err
}

// AppendNext bumps the key's head row and inserts under its lock. A rollback leaves
// the head untouched, so versions have no gaps.
func (r *Repo) AppendNext(ctx context.Context, rec *domain.HotelRecord) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = r.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, bumpHeadSQL, r.collection, keyHash(rec.DedupKey)); err != nil {
				return err
			}
			if err := tx.QueryRowContext(ctx, readHeadSQL, r.collection, keyHash(rec.DedupKey)).Scan(&rec.Version); err != nil {
				return err
			}
			return r.insert(ctx, tx, rec)
		})
		if !isDeadlock(err) {
			return err
		}
	}
	return err
}

// First inserts of a new head row can deadlock under InnoDB; the loser is rolled back
// whole and may simply run again.
func isDeadlock(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && (me.Number == errDeadlock || me.Number == errLockWait)
}

func (r *Repo) Insert(ctx context.Context, rec *domain.HotelRecord) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, raiseHeadSQL, r.collection, keyHash(rec.DedupKey), rec.Version); err != nil {
			return err
		}
		return r.insert(ctx, tx, rec)
	})
}

func (r *Repo) insert(ctx context.Context, tx *sql.Tx, rec *domain.HotelRecord) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	res, err := tx.ExecContext(ctx, insertRecordSQL,
		r.collection,
		keyHash(rec.DedupKey),
		rec.DedupKey,
		rec.Version,
		valStr(rec.HotelName),
		valNonEmpty(rec.SourceURL),
		string(data),
		valNonEmpty(rec.RunID),
		rec.Timestamp.UTC(),
	)
	if err != nil {
		return mapErr(err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = fmt.Sprint(id)
	}
	return nil
}

func (r *Repo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return mapErr(tx.Commit())
}

func mapErr(err error) error {
	var me *gomysql.MySQLError
	if errors.As(err, &me) && me.Number == errDupEntry {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateVersion, me.Message)
	}
	return err
}

func (r *Repo) Latest(ctx context.Context, key string) (domain.RecordView, error) {
	page, err := r.ListVersions(ctx, key, 1)
	if err != nil {
		return domain.RecordView{}, err
	}
	if len(page.Items) == 0 {
		return domain.RecordView{}, domain.ErrNotFound
	}
	return page.Items[0], nil
}

func (r *Repo) ListVersions(ctx context.Context, key string, limit int) (domain.RecordsPage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listVersionsSQL, r.collection, keyHash(key), limit)
	if err != nil {
		return domain.RecordsPage{}, err
	}
	defer rows.Close()

	out := domain.RecordsPage{Items: []domain.RecordView{}}
	for rows.Next() {
		var (
			rv        domain.RecordView
			name      sql.NullString
			sourceURL sql.NullString
			runID     sql.NullString
			data      []byte
		)
		if err := rows.Scan(&rv.DedupKey, &name, &sourceURL, &data, &rv.Version, &rv.Timestamp, &runID); err != nil {
			return domain.RecordsPage{}, err
		}
		if name.Valid {
			rv.HotelName = &name.String
		}
		rv.SourceURL = sourceURL.String
		rv.RunID = runID.String
		rv.Data = json.RawMessage(data)
		out.Items = append(out.Items, rv)
	}
	return out, rows.Err()
}
