package domain

import (
	"encoding/json"
	"time"
)

// NotAvailable is written into price fields the page does not provide.
const NotAvailable = "N/A"

type HotelQuery struct {
	Name string
	Site string
}

// ResolvedLocation is the Locator output. DisplayName is the visible text of the
// matched result link and may be empty.
type ResolvedLocation struct {
	URL         string
	DisplayName string
}

type SectionKind string

const (
	SectionText   SectionKind = "text"
	SectionPrices SectionKind = "prices"
	SectionRows   SectionKind = "rows"
)

type PriceDetails struct {
	DoublePrice     string `json:"double_price" bson:"double_price"`
	SingleSurcharge string `json:"single_surcharge" bson:"single_surcharge"`
}

type PriceEntry struct {
	DateRange    string       `json:"date_range" bson:"date_range"`
	RoomCategory string       `json:"room_category" bson:"room_category"`
	PriceDetails PriceDetails `json:"price_details" bson:"price_details"`
}

type Section struct {
	Kind   SectionKind
	Items  []string
	Prices []PriceEntry
	Rows   [][]string
}

func TextSection(items ...string) Section {
	if items == nil {
		items = []string{}
	}
	return Section{Kind: SectionText, Items: items}
}

func (s Section) Len() int {
	switch s.Kind {
	case SectionPrices:
		return len(s.Prices)
	case SectionRows:
		return len(s.Rows)
	default:
		return len(s.Items)
	}
}

// Value is the plain representation stored in every backend: []string,
// []PriceEntry or [][]string. Never nil.
func (s Section) Value() any {
	switch s.Kind {
	case SectionPrices:
		if s.Prices == nil {
			return []PriceEntry{}
		}
		return s.Prices
	case SectionRows:
		if s.Rows == nil {
			return [][]string{}
		}
		return s.Rows
	default:
		if s.Items == nil {
			return []string{}
		}
		return s.Items
	}
}

func (s Section) MarshalJSON() ([]byte, error) { return json.Marshal(s.Value()) }

// ExtractionResult maps section identifiers (section_1, prices, ...) to sections.
// Every configured identifier is present, possibly empty.
type ExtractionResult map[string]Section

func (r ExtractionResult) IsEmpty() bool {
	for _, s := range r {
		if s.Len() > 0 {
			return false
		}
	}
	return true
}

// HotelRecord is one immutable entry of the versioned log.
type HotelRecord struct {
	ID        string
	DedupKey  string
	HotelName *string
	SourceURL string
	Data      ExtractionResult
	Version   int64
	Timestamp time.Time
	RunID     string
}

// RecordView is the read-side shape returned by the API.
type RecordView struct {
	DedupKey  string          `json:"dedup_key"`
	HotelName *string         `json:"hotel_name,omitempty"`
	SourceURL string          `json:"source_url,omitempty"`
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	RunID     string          `json:"run_id,omitempty"`
}

type RecordsPage struct {
	Items []RecordView `json:"items"`
}
