package web

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"hotel_scraper/internal/adapters/observability"
	"hotel_scraper/internal/domain"
)

const maxAttempts = 4

// Client fetches HTML pages and parses them into document trees.
type Client struct {
	hc *resty.Client
	rl *rate.Limiter
}

func New(timeout time.Duration, rps int, userAgent string) *Client {
	if rps <= 0 {
		rps = 2
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	hc := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetHeader("Accept-Language", "de-DE,de;q=0.9,en;q=0.8")
	return &Client{
		hc: hc,
		rl: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Fetch performs a GET with client-side rate limiting and retries on 429 and transient
// 5xx, honoring Retry-After. Any other non-2xx is a *domain.TransportError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	endpoint := hostOf(rawURL)

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		// retries draw from the same budget as first attempts
		if err := c.rl.Wait(ctx); err != nil {
			return nil, &domain.TransportError{URL: rawURL, Err: err}
		}
		start := time.Now()
		resp, err := c.hc.R().SetContext(ctx).Get(rawURL)
		if err != nil {
			observability.ObserveExternal("fetch", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return nil, &domain.TransportError{URL: rawURL, Err: ctx.Err()}
			}
			lastErr = &domain.TransportError{URL: rawURL, Err: err}
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return nil, lastErr
		}
		status := resp.StatusCode()
		observability.ObserveExternal("fetch", endpoint, status, time.Since(start))

		switch {
		case status >= 200 && status < 300:
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", rawURL, err)
			}
			return doc, nil

		case status == http.StatusTooManyRequests || status >= 500:
			wait := retryAfter(resp.Header())
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = &domain.TransportError{URL: rawURL, Status: status}
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			return nil, lastErr

		default:
			return nil, &domain.TransportError{URL: rawURL, Status: status}
		}
	}
	if lastErr == nil {
		lastErr = &domain.TransportError{URL: rawURL, Err: errors.New("no attempt made")}
	}
	return nil, lastErr
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff: 200ms, 400ms, 800ms... with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
