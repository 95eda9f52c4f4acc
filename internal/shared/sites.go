package shared

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"hotel_scraper/internal/domain"
)

// Built-in site definitions. A SITES_FILE may override or add entries by name.
var builtinSites = []domain.SiteConfig{
	{
		Name:           "golf-extra",
		Collection:     "hotels_golf_extra",
		BaseURL:        "https://www.golf-extra.com",
		Strategy:       domain.StrategySearch,
		SearchTemplate: "https://www.golf-extra.com/suche?tx_solr%5Bq%5D={query}",
		NameSelector:   "#c1070 > section.ge-subheader > div > div.container > header > h1 > span.main-headline",
		Rules: domain.SelectorRules{
			Sections: []string{
				"#ge-hotel-information > div > div > div.col-lg-6.d-flex.mb-5.mb-lg-0 > div",
				"#ge-hotel-information > div > div > div:nth-child(2) > div",
			},
			Prices: &domain.PriceRules{
				Block:        ".ge-hotel-information__prices-accordion .accordion-item",
				Header:       ".accordion-header button",
				Row:          ".ge-price-table__table.ge-hotel-information__offers",
				RoomCategory: ".ge-price-table__column.room",
				PriceColumn:  ".ge-price-table__column.price",
			},
		},
		DedupField: domain.DedupByURL,
	},
	{
		Name:       "golfmotion",
		Collection: "hotels_golf-motion",
		BaseURL:    "https://www.golfmotion.com",
		Strategy:   domain.StrategyConstruct,
		SlugSuffix: ".html",
		Rules: domain.SelectorRules{
			Sections: []string{
				"#hoteldetail > div > div > div:nth-child(3)",
				"#hoteldetail > div > div > div:nth-child(4)",
			},
		},
		DedupField: domain.DedupByURL,
	},
	{
		Name:       "classicgolf",
		Collection: "hotels_classic_golf",
		BaseURL:    "https://www.classicgolftours.de",
		Strategy:   domain.StrategyInteractive,
		Interactive: &domain.InteractiveRules{
			SearchURL:      "https://www.classicgolftours.de/search",
			Consent:        "#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
			Input:          "#email",
			Submit:         "#mainContent > div.centeredContainer > div > div > form > div > button",
			Results:        "#region > div:nth-child(1) > div > div > ul > li > a",
			Fragment:       "preise",
			ConsentTimeout: 10 * time.Second,
			InputTimeout:   10 * time.Second,
			ResultsTimeout: 15 * time.Second,
		},
		ReadySelector: "#text_preise > div:nth-child(2) > table > tbody",
		ReadyTimeout:  15 * time.Second,
		Rules: domain.SelectorRules{
			Table: &domain.TableRules{Body: "#text_preise > div:nth-child(2) > table > tbody"},
		},
		DedupField: domain.DedupByName,
	},
}

type sitesFile struct {
	Sites []domain.SiteConfig `yaml:"sites"`
}

// LoadSites returns the built-in sites merged with the optional YAML file.
func LoadSites(path string) (map[string]domain.SiteConfig, error) {
	out := make(map[string]domain.SiteConfig, len(builtinSites))
	for _, s := range builtinSites {
		out[s.Name] = withDefaults(s)
	}
	if path == "" {
		return out, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	var f sitesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse sites file: %w", err)
	}
	for _, s := range f.Sites {
		if err := validateSite(s); err != nil {
			return nil, err
		}
		out[s.Name] = withDefaults(s)
	}
	return out, nil
}

func SiteNames(sites map[string]domain.SiteConfig) []string {
	names := make([]string, 0, len(sites))
	for n := range sites {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func validateSite(s domain.SiteConfig) error {
	if s.Name == "" {
		return fmt.Errorf("site: name is required")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("site %s: base_url is required", s.Name)
	}
	switch s.Strategy {
	case domain.StrategySearch:
		if s.SearchTemplate == "" {
			return fmt.Errorf("site %s: search_template is required", s.Name)
		}
	case domain.StrategyConstruct:
	case domain.StrategyInteractive:
		if s.Interactive == nil || s.Interactive.SearchURL == "" || s.Interactive.Results == "" {
			return fmt.Errorf("site %s: interactive.search_url and interactive.results are required", s.Name)
		}
	default:
		return fmt.Errorf("site %s: unknown strategy %q", s.Name, s.Strategy)
	}
	return nil
}

func withDefaults(s domain.SiteConfig) domain.SiteConfig {
	if s.Collection == "" {
		s.Collection = "hotels_" + s.Name
	}
	if s.DedupField == "" {
		s.DedupField = domain.DedupByURL
	}
	if s.SourceLang == "" {
		s.SourceLang = "de"
	}
	if s.TargetLang == "" {
		s.TargetLang = "en"
	}
	if s.ReadyTimeout == 0 {
		s.ReadyTimeout = 10 * time.Second
	}
	if s.Interactive != nil {
		ir := *s.Interactive
		s.Interactive = &ir
		if ir.ConsentTimeout == 0 {
			ir.ConsentTimeout = 10 * time.Second
		}
		if ir.InputTimeout == 0 {
			ir.InputTimeout = 10 * time.Second
		}
		if ir.ResultsTimeout == 0 {
			ir.ResultsTimeout = 10 * time.Second
		}
	}
	return s
}

// LoadHotelNames reads a JSON array of hotel display names. Any malformed input fails
// the whole load.
func LoadHotelNames(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hotel list: %w", err)
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return nil, fmt.Errorf("parse hotel list %s: %w", path, err)
	}
	return names, nil
}
