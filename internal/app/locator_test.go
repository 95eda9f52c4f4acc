package app_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"hotel_scraper/internal/app"
	"hotel_scraper/internal/domain"
)

func searchSite() domain.SiteConfig {
	return domain.SiteConfig{
		Name:           "golf-extra",
		BaseURL:        "https://www.golf-extra.com",
		Strategy:       domain.StrategySearch,
		SearchTemplate: "https://www.golf-extra.com/suche?tx_solr%5Bq%5D={query}",
	}
}

func TestLocate_SearchFirstSubstringWins(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://www.golf-extra.com/suche?tx_solr%5Bq%5D=Alpha": `<html><body>
			<a href="/impressum">Impressum</a>
			<a href="/hotels/hotel-alpha-suites">Hotel <b>Alpha</b> Suites</a>
			<a href="/hotels/alpha-grand">Alpha Grand Resort</a>
		</body></html>`,
	}}
	loc, err := app.NewLocator(f).Locate(context.Background(), "Alpha", searchSite())
	require.NoError(t, err)
	require.Equal(t, "https://www.golf-extra.com/hotels/hotel-alpha-suites", loc.URL)
	require.Equal(t, "Hotel Alpha Suites", loc.DisplayName)
}

func TestLocate_SearchCaseInsensitiveAndEscaped(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://www.golf-extra.com/suche?tx_solr%5Bq%5D=la+finca": `<a href="https://www.golf-extra.com/la-finca">LA FINCA Golf &amp; Spa</a>`,
	}}
	loc, err := app.NewLocator(f).Locate(context.Background(), "la finca", searchSite())
	require.NoError(t, err)
	require.Equal(t, "https://www.golf-extra.com/la-finca", loc.URL)
}

func TestLocate_SearchCollapsesWhitespaceInName(t *testing.T) {
	for _, name := range []string{"Son  Vida", "Son\u00a0Vida", " Son Vida\t"} {
		search := "https://www.golf-extra.com/suche?tx_solr%5Bq%5D=" + url.QueryEscape(name)
		f := &fakeFetcher{pages: map[string]string{
			search: `<a href="/hotels/son-vida">Castillo Hotel Son
				Vida</a>`,
		}}
		loc, err := app.NewLocator(f).Locate(context.Background(), name, searchSite())
		require.NoError(t, err, "name %q", name)
		require.Equal(t, "https://www.golf-extra.com/hotels/son-vida", loc.URL)
	}
}

func TestLocate_SearchNoMatch(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://www.golf-extra.com/suche?tx_solr%5Bq%5D=Beta": `<a href="/x">Alpha</a>`,
	}}
	_, err := app.NewLocator(f).Locate(context.Background(), "Beta", searchSite())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLocate_SearchTransportErrorIsNotFound(t *testing.T) {
	_, err := app.NewLocator(&fakeFetcher{}).Locate(context.Background(), "Alpha", searchSite())
	require.ErrorIs(t, err, domain.ErrNotFound)
	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, 404, te.Status)
}

func TestLocate_ConstructNoNetwork(t *testing.T) {
	f := &fakeFetcher{}
	site := domain.SiteConfig{BaseURL: "https://example.com", Strategy: domain.StrategyConstruct, SlugSuffix: ".html"}

	loc, err := app.NewLocator(f).Locate(context.Background(), "Test Resort", site)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/test-resort.html", loc.URL)
	require.Zero(t, f.callCount())

	site.PathPrefix = "/hotels/"
	loc, err = app.ConstructURL("Test Resort", site)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/hotels/test-resort.html", loc.URL)
}

func interactiveSite() domain.SiteConfig {
	return domain.SiteConfig{
		Name:     "classicgolf",
		BaseURL:  "https://www.classicgolftours.de",
		Strategy: domain.StrategyInteractive,
		Interactive: &domain.InteractiveRules{
			SearchURL: "https://www.classicgolftours.de/search",
			Consent:   "#consent",
			Input:     "#email",
			Submit:    "form button",
			Results:   "ul.results > li > a",
			Fragment:  "preise",
		},
	}
}

func TestLocateInteractive_FirstResultWithFragment(t *testing.T) {
	s := &fakeSession{
		pages: map[string]string{
			"https://www.classicgolftours.de/search": `<button id="consent">OK</button><form><input id="email"><button>Go</button></form>`,
		},
		submitSel: "form button",
		results: `<ul class="results">
			<li><a href="/hotel/son-vida">Castillo Son Vida</a></li>
			<li><a href="/hotel/other">Other</a></li>
		</ul>`,
	}
	loc, err := app.NewLocator(nil).LocateInteractive(context.Background(), s, "Son Vida", interactiveSite())
	require.NoError(t, err)
	require.Equal(t, "https://www.classicgolftours.de/hotel/son-vida#preise", loc.URL)
	require.Equal(t, "Castillo Son Vida", loc.DisplayName)
	require.Equal(t, []string{
		"navigate https://www.classicgolftours.de/search",
		"click #consent",
		"fill #email=Son Vida",
		"click form button",
	}, s.ops)
}

func TestLocateInteractive_NoConsentNoResults(t *testing.T) {
	s := &fakeSession{
		pages: map[string]string{
			"https://www.classicgolftours.de/search": `<form><input id="email"><button>Go</button></form>`,
		},
		submitSel: "form button",
		results:   `<p>Keine Ergebnisse</p>`,
	}
	_, err := app.NewLocator(nil).LocateInteractive(context.Background(), s, "Nowhere", interactiveSite())
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NotContains(t, s.ops, "click #consent")
}
