package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_scraper/internal/adapters/observability"
	"hotel_scraper/internal/domain"
)

type State string

const (
	StateStored            State = "stored"
	StateSkippedNoLocation State = "skipped_no_location"
	StateSkippedNoData     State = "skipped_no_data"
	StateSkippedDuplicate  State = "skipped_duplicate"
	StateFailed            State = "failed"
)

// States lists every terminal state in reporting order.
var States = []State{StateStored, StateSkippedNoLocation, StateSkippedNoData, StateSkippedDuplicate, StateFailed}

type Outcome struct {
	Name    string
	State   State
	URL     string
	Version int64
	Err     error
}

type Summary struct {
	Site     string
	RunID    string
	Outcomes []Outcome
	Counts   map[State]int
	Elapsed  time.Duration
}

type PipelineDeps struct {
	Site     domain.SiteConfig
	Fetcher  domain.Fetcher
	Renderer domain.Renderer
	Norm     Normalizer
	Store    domain.RecordStore
	Cache    domain.Cache // optional; latest-record entries are dropped after a store
	RunID    string
	Workers  int
}

// Pipeline runs locate, extract and persist for one site.
type Pipeline struct {
	site    domain.SiteConfig
	fetch   domain.Fetcher
	render  domain.Renderer
	locator *Locator
	extract *FieldExtractor
	persist *VersionedPersister
	cache   domain.Cache
	runID   string
	workers int
}

func NewPipeline(d PipelineDeps) (*Pipeline, error) {
	if d.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	if d.Site.Rendered() && d.Renderer == nil {
		return nil, fmt.Errorf("pipeline: site %s needs a renderer", d.Site.Name)
	}
	if !d.Site.Rendered() && d.Fetcher == nil {
		return nil, fmt.Errorf("pipeline: site %s needs a fetcher", d.Site.Name)
	}
	if d.Workers < 1 {
		d.Workers = 1
	}
	return &Pipeline{
		site:    d.Site,
		fetch:   d.Fetcher,
		render:  d.Renderer,
		locator: NewLocator(d.Fetcher),
		extract: NewFieldExtractor(d.Norm, d.Site.SourceLang, d.Site.TargetLang),
		persist: NewVersionedPersister(d.Store, d.RunID),
		cache:   d.Cache,
		runID:   d.RunID,
		workers: d.Workers,
	}, nil
}

// Run processes names on a bounded worker pool. One hotel never aborts the batch; a
// cancelled ctx marks the names not yet started as failed.
func (p *Pipeline) Run(ctx context.Context, names []string) Summary {
	start := time.Now()
	outcomes := make([]Outcome, len(names))
	sem := semaphore.NewWeighted(int64(p.workers))
	var wg sync.WaitGroup

	log.Info().
		Str("site", p.site.Name).
		Str("run", p.runID).
		Int("hotels", len(names)).
		Int("workers", p.workers).
		Msg("pipeline starting")

	for i, name := range names {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(names); j++ {
				outcomes[j] = Outcome{Name: names[j], State: StateFailed, Err: err}
			}
			break
		}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = p.ProcessHotel(ctx, name)
		}(i, name)
	}
	wg.Wait()

	s := Summary{
		Site:     p.site.Name,
		RunID:    p.runID,
		Outcomes: outcomes,
		Counts:   make(map[State]int, len(States)),
		Elapsed:  time.Since(start),
	}
	for _, o := range outcomes {
		s.Counts[o.State]++
	}
	log.Info().
		Str("site", p.site.Name).
		Str("run", p.runID).
		Int("stored", s.Counts[StateStored]).
		Int("skipped", len(outcomes)-s.Counts[StateStored]-s.Counts[StateFailed]).
		Int("failed", s.Counts[StateFailed]).
		Dur("elapsed", s.Elapsed).
		Msg("pipeline completed")
	return s
}

// ProcessHotel takes one name to a terminal state.
func (p *Pipeline) ProcessHotel(ctx context.Context, name string) Outcome {
	o := p.process(ctx, name)
	p.report(o)
	return o
}

func (p *Pipeline) process(ctx context.Context, name string) Outcome {
	o := Outcome{Name: name}

	var sess domain.Session
	if p.site.Rendered() {
		s, release, err := p.render.Acquire(ctx)
		if err != nil {
			o.State, o.Err = StateFailed, fmt.Errorf("acquire session: %w", err)
			return o
		}
		defer release()
		sess = s
	}

	var (
		loc domain.ResolvedLocation
		err error
	)
	if sess != nil {
		loc, err = p.locator.LocateInteractive(ctx, sess, name, p.site)
	} else {
		loc, err = p.locator.Locate(ctx, name, p.site)
	}
	if err != nil {
		o.State, o.Err = StateSkippedNoLocation, err
		return o
	}
	o.URL = loc.URL

	doc := p.load(ctx, sess, loc.URL)
	data := p.extract.Extract(ctx, doc, p.site.Rules)
	if data.IsEmpty() {
		o.State, o.Err = StateSkippedNoData, domain.ErrEmptyExtraction
		return o
	}

	key := loc.URL
	hotelName := p.extract.ExtractName(ctx, doc, p.site.NameSelector)
	if p.site.DedupField == domain.DedupByName {
		key = name
		hotelName = &name
	} else if hotelName == nil && loc.DisplayName != "" {
		dn := loc.DisplayName
		hotelName = &dn
	}

	rec, err := p.persist.Persist(ctx, key, hotelName, loc.URL, data)
	switch {
	case errors.Is(err, domain.ErrDuplicateVersion):
		o.State, o.Err = StateSkippedDuplicate, err
	case err != nil:
		o.State, o.Err = StateFailed, err
	default:
		o.State, o.Version = StateStored, rec.Version
		if p.cache != nil {
			_ = p.cache.Del(ctx, LatestCacheKey(p.site.Name, key))
		}
	}
	return o
}

// load returns the detail page or nil. A nil document extracts as all-empty sections.
func (p *Pipeline) load(ctx context.Context, sess domain.Session, url string) *goquery.Document {
	if sess == nil {
		doc, err := p.fetch.Fetch(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("site", p.site.Name).Str("url", url).Msg("detail page fetch failed")
			return nil
		}
		return doc
	}

	if err := sess.Navigate(ctx, url); err != nil {
		log.Warn().Err(err).Str("site", p.site.Name).Str("url", url).Msg("detail page render failed")
		return nil
	}
	if p.site.ReadySelector != "" {
		if err := sess.WaitFor(ctx, p.site.ReadySelector, p.site.ReadyTimeout); err != nil {
			log.Warn().Err(err).Str("site", p.site.Name).Str("url", url).Msg("detail content did not render, extracting current page")
		}
	}
	doc, err := sess.Document(ctx)
	if err != nil {
		log.Warn().Err(err).Str("site", p.site.Name).Str("url", url).Msg("read rendered page failed")
		return nil
	}
	return doc
}

func (p *Pipeline) report(o Outcome) {
	observability.ObserveOutcome(p.site.Name, string(o.State))
	ev := log.Info()
	switch o.State {
	case StateFailed:
		ev = log.Error()
	case StateSkippedNoLocation, StateSkippedNoData, StateSkippedDuplicate:
		ev = log.Warn()
	}
	ev = ev.Str("site", p.site.Name).Str("run", p.runID).Str("hotel", o.Name).Str("state", string(o.State))
	if o.URL != "" {
		ev = ev.Str("url", o.URL)
	}
	if o.Version > 0 {
		ev = ev.Int64("version", o.Version)
	}
	if o.Err != nil {
		ev = ev.Err(o.Err)
	}
	ev.Msg("hotel processed")
}
