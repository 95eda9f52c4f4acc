package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/rs/zerolog/log"

	"hotel_scraper/internal/domain"
)

// Locator resolves a hotel display name to its detail page.
type Locator struct {
	fetch domain.Fetcher
}

func NewLocator(f domain.Fetcher) *Locator { return &Locator{fetch: f} }

// Locate handles the network-free strategies (search, construct). Interactive sites
// go through LocateInteractive with a held session.
func (l *Locator) Locate(ctx context.Context, name string, site domain.SiteConfig) (domain.ResolvedLocation, error) {
	switch site.Strategy {
	case domain.StrategySearch:
		return l.searchAndMatch(ctx, name, site)
	case domain.StrategyConstruct:
		return ConstructURL(name, site)
	default:
		return domain.ResolvedLocation{}, fmt.Errorf("strategy %q needs a rendered session", site.Strategy)
	}
}

// ConstructURL slugifies name into the site's URL template. No existence check is
// made; a bad slug shows up later as empty sections.
func ConstructURL(name string, site domain.SiteConfig) (domain.ResolvedLocation, error) {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
	if slug == "" {
		return domain.ResolvedLocation{}, domain.ErrNotFound
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(site.BaseURL, "/"))
	b.WriteByte('/')
	if p := strings.Trim(site.PathPrefix, "/"); p != "" {
		b.WriteString(p)
		b.WriteByte('/')
	}
	b.WriteString(slug)
	b.WriteString(site.SlugSuffix)
	u := b.String()
	log.Debug().Str("hotel", name).Str("url", u).Msg("constructed hotel url")
	return domain.ResolvedLocation{URL: u}, nil
}

func (l *Locator) searchAndMatch(ctx context.Context, name string, site domain.SiteConfig) (domain.ResolvedLocation, error) {
	searchURL := strings.ReplaceAll(site.SearchTemplate, "{query}", url.QueryEscape(name))
	doc, err := l.fetch.Fetch(ctx, searchURL)
	if err != nil {
		log.Warn().Err(err).Str("hotel", name).Str("url", searchURL).Msg("search request failed")
		return domain.ResolvedLocation{}, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}

	href, text, ok := firstSubstringMatch(doc, name)
	if !ok {
		log.Warn().Str("hotel", name).Msg("no search result link matches hotel name")
		return domain.ResolvedLocation{}, domain.ErrNotFound
	}
	abs, err := resolve(site.BaseURL, href)
	if err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("%w: bad result link %q", domain.ErrNotFound, href)
	}
	log.Info().Str("hotel", name).Str("url", abs).Msg("found hotel page")
	return domain.ResolvedLocation{URL: abs, DisplayName: text}, nil
}

// firstSubstringMatch returns the first anchor, in document order, whose visible text
// contains name case-insensitively. Runs of whitespace on either side compare as one
// space. Later matches are only reported: names shared by several properties resolve to
// whichever link comes first.
func firstSubstringMatch(doc *goquery.Document, name string) (href, text string, ok bool) {
	needle := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if needle == "" {
		return "", "", false
	}
	var others []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		t := strings.Join(strings.Fields(a.Text()), " ")
		if !strings.Contains(strings.ToLower(t), needle) {
			return
		}
		if !ok {
			href, _ = a.Attr("href")
			text, ok = t, true
			return
		}
		if t != text {
			others = append(others, t)
		}
	})
	if ok && len(others) > 0 {
		best, bestScore := "", 0.0
		for _, o := range others {
			if s := matchr.JaroWinkler(name, o, false); s > bestScore {
				best, bestScore = o, s
			}
		}
		log.Warn().
			Str("hotel", name).
			Str("chosen", text).
			Float64("chosen_score", matchr.JaroWinkler(name, text, false)).
			Str("alternative", best).
			Float64("alternative_score", bestScore).
			Int("candidates", len(others)+1).
			Msg("ambiguous search match, first link wins")
	}
	return href, text, ok
}

// LocateInteractive drives the site's search form through a held session.
func (l *Locator) LocateInteractive(ctx context.Context, s domain.Session, name string, site domain.SiteConfig) (domain.ResolvedLocation, error) {
	ir := site.Interactive
	if ir == nil {
		return domain.ResolvedLocation{}, errors.New("interactive rules missing")
	}
	if err := s.Navigate(ctx, ir.SearchURL); err != nil {
		log.Warn().Err(err).Str("hotel", name).Msg("search page failed to load")
		return domain.ResolvedLocation{}, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}

	if ir.Consent != "" {
		if err := s.WaitFor(ctx, ir.Consent, ir.ConsentTimeout); err != nil {
			log.Debug().Str("hotel", name).Msg("no consent dialog, proceeding")
		} else if err := s.Click(ctx, ir.Consent); err != nil {
			log.Warn().Err(err).Msg("consent dialog could not be closed, proceeding")
		}
	}

	if err := s.WaitFor(ctx, ir.Input, ir.InputTimeout); err != nil {
		log.Warn().Err(err).Str("hotel", name).Msg("search input not found")
		return domain.ResolvedLocation{}, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	if err := s.Fill(ctx, ir.Input, name); err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("%w: fill: %w", domain.ErrNotFound, err)
	}
	if err := s.Click(ctx, ir.Submit); err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("%w: submit: %w", domain.ErrNotFound, err)
	}
	if err := s.WaitFor(ctx, ir.Results, ir.ResultsTimeout); err != nil {
		log.Warn().Err(err).Str("hotel", name).Msg("search results did not render")
		return domain.ResolvedLocation{}, domain.ErrNotFound
	}

	doc, err := s.Document(ctx)
	if err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	first := doc.Find(ir.Results).First()
	href, ok := first.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		log.Warn().Str("hotel", name).Msg("no hotel links in search results")
		return domain.ResolvedLocation{}, domain.ErrNotFound
	}
	abs, err := resolve(site.BaseURL, href)
	if err != nil {
		return domain.ResolvedLocation{}, fmt.Errorf("%w: bad result link %q", domain.ErrNotFound, href)
	}
	if ir.Fragment != "" {
		u, _ := url.Parse(abs)
		u.Fragment = strings.TrimPrefix(ir.Fragment, "#")
		abs = u.String()
	}
	log.Info().Str("hotel", name).Str("url", abs).Msg("found hotel page")
	return domain.ResolvedLocation{URL: abs, DisplayName: strings.Join(strings.Fields(first.Text()), " ")}, nil
}

func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}
