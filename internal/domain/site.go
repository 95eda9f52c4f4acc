package domain

import "time"

type Strategy string

const (
	StrategySearch      Strategy = "search"
	StrategyConstruct   Strategy = "construct"
	StrategyInteractive Strategy = "interactive"
)

type DedupField string

const (
	DedupByURL  DedupField = "url"
	DedupByName DedupField = "name"
)

// PriceRules describes an accordion-style price table.
type PriceRules struct {
	Block        string `yaml:"block"`
	Header       string `yaml:"header"`
	Row          string `yaml:"row"`
	RoomCategory string `yaml:"room_category"`
	PriceColumn  string `yaml:"price_column"`
}

// TableRules describes a plain table whose rows are kept as cell lists.
type TableRules struct {
	Body string `yaml:"body"`
}

type SelectorRules struct {
	Sections []string    `yaml:"sections"`
	Prices   *PriceRules `yaml:"prices,omitempty"`
	Table    *TableRules `yaml:"table,omitempty"`
}

// InteractiveRules drives the rendered search form.
type InteractiveRules struct {
	SearchURL      string        `yaml:"search_url"`
	Consent        string        `yaml:"consent"`
	Input          string        `yaml:"input"`
	Submit         string        `yaml:"submit"`
	Results        string        `yaml:"results"`
	Fragment       string        `yaml:"fragment"`
	ConsentTimeout time.Duration `yaml:"consent_timeout"`
	InputTimeout   time.Duration `yaml:"input_timeout"`
	ResultsTimeout time.Duration `yaml:"results_timeout"`
}

// SiteConfig parameterizes the one Pipeline for a source site.
type SiteConfig struct {
	Name           string            `yaml:"name"`
	Collection     string            `yaml:"collection"`
	BaseURL        string            `yaml:"base_url"`
	Strategy       Strategy          `yaml:"strategy"`
	SearchTemplate string            `yaml:"search_template"`
	PathPrefix     string            `yaml:"path_prefix"`
	SlugSuffix     string            `yaml:"slug_suffix"`
	Interactive    *InteractiveRules `yaml:"interactive,omitempty"`
	ReadySelector  string            `yaml:"ready_selector"`
	ReadyTimeout   time.Duration     `yaml:"ready_timeout"`
	NameSelector   string            `yaml:"name_selector"`
	Rules          SelectorRules     `yaml:"rules"`
	DedupField     DedupField        `yaml:"dedup_field"`
	SourceLang     string            `yaml:"source_lang"`
	TargetLang     string            `yaml:"target_lang"`
}

func (s SiteConfig) Rendered() bool { return s.Strategy == StrategyInteractive }
