package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_scraper/internal/adapters/observability"
	"hotel_scraper/internal/domain"
)

const DefaultMaxChars = 500

type NormalizerOptions struct {
	// MaxChars caps the submitted text in runes. Longer text is truncated, not chunked:
	// callers needing full-length translation must split upstream.
	MaxChars int
	Timeout  time.Duration
	Retries  int
	Cache    domain.Cache
	CacheTTL time.Duration
}

// TextNormalizer translates scraped text into the target language. It fails open: any
// backend problem yields the original text.
type TextNormalizer struct {
	tr   domain.Translator
	opts NormalizerOptions
}

func NewTextNormalizer(tr domain.Translator, opts NormalizerOptions) *TextNormalizer {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &TextNormalizer{tr: tr, opts: opts}
}

func (n *TextNormalizer) Normalize(ctx context.Context, text, src, dst string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	if src == dst || n.tr == nil {
		return text
	}
	input := truncateRunes(trimmed, n.opts.MaxChars)

	key := cacheKey(src, dst, input)
	if n.opts.Cache != nil {
		var cached string
		if ok, err := n.opts.Cache.Get(ctx, key, &cached); err == nil && ok && cached != "" {
			return cached
		}
	}

	var lastErr error
	for attempt := 0; attempt <= n.opts.Retries; attempt++ {
		if attempt > 0 && !sleepCtx(ctx, time.Duration(attempt)*250*time.Millisecond) {
			break
		}
		out, err := n.translateOnce(ctx, input, src, dst)
		if err == nil {
			if n.opts.Cache != nil {
				_ = n.opts.Cache.Set(ctx, key, out, int(n.opts.CacheTTL.Seconds()))
			}
			return out
		}
		lastErr = err
	}

	observability.ObserveTranslationFallback()
	log.Warn().
		Err(lastErr).
		Str("text", truncateRunes(trimmed, 100)).
		Msg("translation failed, keeping original text")
	return text
}

func (n *TextNormalizer) translateOnce(ctx context.Context, input, src, dst string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()
	out, err := n.tr.Translate(cctx, input, src, dst)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", domain.ErrTranslation
	}
	return out, nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func cacheKey(src, dst, text string) string {
	sum := sha1.Sum([]byte(text))
	return "tr:" + src + ":" + dst + ":" + hex.EncodeToString(sum[:])
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
