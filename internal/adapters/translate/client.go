package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"hotel_scraper/internal/adapters/observability"
	"hotel_scraper/internal/domain"
)

// Client talks to the Google gtx translation endpoint.
type Client struct {
	endpoint string
	hc       *resty.Client
}

func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		hc:       resty.New().SetTimeout(timeout),
	}
}

func (c *Client) Translate(ctx context.Context, text, src, dst string) (string, error) {
	start := time.Now()
	resp, err := c.hc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     src,
			"tl":     dst,
			"dt":     "t",
		}).
		SetQueryParam("q", text).
		Get(c.endpoint)
	if err != nil {
		observability.ObserveExternal("translate", "gtx", 0, time.Since(start))
		return "", fmt.Errorf("%w: %v", domain.ErrTranslation, err)
	}
	observability.ObserveExternal("translate", "gtx", resp.StatusCode(), time.Since(start))
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %d", domain.ErrTranslation, resp.StatusCode())
	}
	out, err := parse(resp.Body())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTranslation, err)
	}
	return out, nil
}

// parse reads [[["translated","source",...],...],...] and joins the translated chunks.
func parse(body []byte) (string, error) {
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty response")
	}
	chunks, ok := raw[0].([]any)
	if !ok {
		return "", fmt.Errorf("unexpected response shape")
	}
	var b strings.Builder
	for _, ch := range chunks {
		parts, ok := ch.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no translated text")
	}
	return b.String(), nil
}
