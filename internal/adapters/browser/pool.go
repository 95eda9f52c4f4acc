package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"hotel_scraper/internal/adapters/observability"
	"hotel_scraper/internal/domain"
)

const navigateTimeout = 30 * time.Second

// Pool owns one headless browser and hands out exclusive tabs.
type Pool struct {
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	sessions      chan *Session
	all           []*Session
	closeOnce     sync.Once
}

func NewPool(ctx context.Context, size int, headless bool, userAgent string) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	p := &Pool{
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		sessions:      make(chan *Session, size),
	}
	for i := 0; i < size; i++ {
		tabCtx, cancelTab := chromedp.NewContext(browserCtx)
		if err := chromedp.Run(tabCtx); err != nil {
			cancelTab()
			p.Close()
			return nil, fmt.Errorf("open tab: %w", err)
		}
		s := &Session{ctx: tabCtx, cancel: cancelTab}
		p.all = append(p.all, s)
		p.sessions <- s
	}
	log.Info().Int("tabs", size).Bool("headless", headless).Msg("browser pool ready")
	return p, nil
}

// Acquire blocks until a tab is free. The returned func gives it back.
func (p *Pool) Acquire(ctx context.Context) (domain.Session, func(), error) {
	select {
	case <-ctx.Done():
		return nil, func() {}, ctx.Err()
	case s := <-p.sessions:
		var once sync.Once
		return s, func() { once.Do(func() { p.sessions <- s }) }, nil
	}
}

func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		for _, s := range p.all {
			s.cancel()
		}
		p.cancelBrowser()
		p.cancelAlloc()
	})
}

// Session is one chromedp tab.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *Session) run(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	err := chromedp.Run(runCtx, actions...)
	status := 200
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("render", op, status, time.Since(start))
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, "navigate", navigateTimeout, chromedp.Navigate(url)); err != nil {
		return &domain.TransportError{URL: url, Err: err}
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, "click", navigateTimeout, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *Session) Fill(ctx context.Context, selector, text string) error {
	return s.run(ctx, "fill", navigateTimeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// WaitFor returns an error once timeout elapses without selector becoming ready.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.run(ctx, "wait", timeout, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

func (s *Session) Document(ctx context.Context) (*goquery.Document, error) {
	var html string
	if err := s.run(ctx, "html", navigateTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
