package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"hotel_scraper/internal/domain"
)

func mustDoc(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(err)
	}
	return doc
}

// ---- store ----

// memStore enforces (dedup_key, version) uniqueness like the real backends.
type memStore struct {
	mu   sync.Mutex
	recs []domain.HotelRecord

	// afterCount runs between CountVersions and its return, outside the lock.
	afterCount func()
	insertErr  error
}

func newMemStore() *memStore { return &memStore{} }

func (s *memStore) CountVersions(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	var n int64
	for _, r := range s.recs {
		if r.DedupKey == key {
			n++
		}
	}
	s.mu.Unlock()
	if s.afterCount != nil {
		s.afterCount()
	}
	return n, nil
}

func (s *memStore) Insert(ctx context.Context, rec *domain.HotelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, r := range s.recs {
		if r.DedupKey == rec.DedupKey && r.Version == rec.Version {
			return domain.ErrDuplicateVersion
		}
	}
	rec.ID = fmt.Sprintf("%d", len(s.recs)+1)
	s.recs = append(s.recs, *rec)
	return nil
}

func (s *memStore) Latest(ctx context.Context, key string) (domain.RecordView, error) {
	page, _ := s.ListVersions(ctx, key, 1)
	if len(page.Items) == 0 {
		return domain.RecordView{}, domain.ErrNotFound
	}
	return page.Items[0], nil
}

func (s *memStore) ListVersions(ctx context.Context, key string, limit int) (domain.RecordsPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RecordView
	for _, r := range s.recs {
		if r.DedupKey != key {
			continue
		}
		data, _ := json.Marshal(r.Data)
		out = append(out, domain.RecordView{
			DedupKey:  r.DedupKey,
			HotelName: r.HotelName,
			SourceURL: r.SourceURL,
			Data:      data,
			Version:   r.Version,
			Timestamp: r.Timestamp,
			RunID:     r.RunID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return domain.RecordsPage{Items: out}, nil
}

func (s *memStore) versions(key string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var vs []int64
	for _, r := range s.recs {
		if r.DedupKey == key {
			vs = append(vs, r.Version)
		}
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	return vs
}

// ---- fetch ----

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	html, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, &domain.TransportError{URL: url, Status: 404}
	}
	return mustDoc(html), nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// ---- translate ----

type fakeTranslator struct {
	mu    sync.Mutex
	calls []string
	fn    func(text string) (string, error)
}

func (f *fakeTranslator) Translate(ctx context.Context, text, src, dst string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.fn == nil {
		return "EN:" + text, nil
	}
	return f.fn(text)
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errQuota = errors.New("429 too many requests")

// ---- render ----

// fakeSession serves pages by URL. Clicking submitSel swaps in the results page.
type fakeSession struct {
	pages     map[string]string
	submitSel string
	results   string

	current string
	ops     []string
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.ops = append(s.ops, "navigate "+url)
	html, ok := s.pages[strings.SplitN(url, "#", 2)[0]]
	if !ok {
		return &domain.TransportError{URL: url, Err: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	}
	s.current = html
	return nil
}

func (s *fakeSession) Click(ctx context.Context, sel string) error {
	s.ops = append(s.ops, "click "+sel)
	if sel == s.submitSel {
		s.current = s.results
	}
	return nil
}

func (s *fakeSession) Fill(ctx context.Context, sel, text string) error {
	s.ops = append(s.ops, "fill "+sel+"="+text)
	return nil
}

func (s *fakeSession) WaitFor(ctx context.Context, sel string, timeout time.Duration) error {
	if mustDoc(s.current).Find(sel).Length() == 0 {
		return fmt.Errorf("wait for %s: %w", sel, context.DeadlineExceeded)
	}
	return nil
}

func (s *fakeSession) Document(ctx context.Context) (*goquery.Document, error) {
	return mustDoc(s.current), nil
}

type fakeRenderer struct {
	mu       sync.Mutex
	newSess  func() *fakeSession
	acquired int
	released int
}

func (r *fakeRenderer) Acquire(ctx context.Context) (domain.Session, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquired++
	return r.newSess(), func() {
		r.mu.Lock()
		r.released++
		r.mu.Unlock()
	}, nil
}
