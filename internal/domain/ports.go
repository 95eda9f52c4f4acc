package domain

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// RecordStore is one source collection of the versioned log. There is no update or
// delete path.
type RecordStore interface {
	CountVersions(ctx context.Context, dedupKey string) (int64, error)
	Insert(ctx context.Context, rec *HotelRecord) error

	// Read paths
	Latest(ctx context.Context, dedupKey string) (RecordView, error)
	ListVersions(ctx context.Context, dedupKey string, limit int) (RecordsPage, error)
}

// AtomicAppender is implemented by stores that can assign the next version and insert
// in one transaction. It sets rec.Version.
type AtomicAppender interface {
	AppendNext(ctx context.Context, rec *HotelRecord) error
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Session is an exclusive rendered browser context.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Document(ctx context.Context) (*goquery.Document, error)
}

type Renderer interface {
	Acquire(ctx context.Context) (Session, func(), error)
}

type Translator interface {
	Translate(ctx context.Context, text, src, dst string) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
