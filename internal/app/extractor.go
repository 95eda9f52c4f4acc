package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hotel_scraper/internal/domain"
)

const (
	PricesKey = "prices"
	TableKey  = "table_data"
)

// Normalizer is the text hook applied to every extracted item.
type Normalizer interface {
	Normalize(ctx context.Context, text, src, dst string) string
}

// FieldExtractor pulls configured sections out of a document tree.
type FieldExtractor struct {
	norm     Normalizer
	src, dst string
}

func NewFieldExtractor(n Normalizer, src, dst string) *FieldExtractor {
	return &FieldExtractor{norm: n, src: src, dst: dst}
}

func SectionKey(i int) string { return fmt.Sprintf("section_%d", i+1) }

// Extract always returns every configured key, empty when nothing matched.
func (e *FieldExtractor) Extract(ctx context.Context, doc *goquery.Document, rules domain.SelectorRules) domain.ExtractionResult {
	out := make(domain.ExtractionResult, len(rules.Sections)+2)
	for i, sel := range rules.Sections {
		items := []string{}
		if doc != nil {
			doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
				t := strings.TrimSpace(s.Text())
				if t == "" {
					return
				}
				items = append(items, e.normalize(ctx, t))
			})
		}
		out[SectionKey(i)] = domain.TextSection(items...)
	}
	if rules.Prices != nil {
		out[PricesKey] = domain.Section{Kind: domain.SectionPrices, Prices: e.prices(ctx, doc, *rules.Prices)}
	}
	if rules.Table != nil {
		out[TableKey] = domain.Section{Kind: domain.SectionRows, Rows: e.table(ctx, doc, *rules.Table)}
	}
	return out
}

// ExtractName reads the page headline. Nil when the selector is empty or unmatched.
func (e *FieldExtractor) ExtractName(ctx context.Context, doc *goquery.Document, selector string) *string {
	if selector == "" || doc == nil {
		return nil
	}
	t := strings.TrimSpace(doc.Find(selector).First().Text())
	if t == "" {
		return nil
	}
	n := e.normalize(ctx, t)
	return &n
}

// prices reads accordion blocks: header = date range, each row = room category plus
// up to two price columns. Rows with fewer than two columns get N/A in both fields.
func (e *FieldExtractor) prices(ctx context.Context, doc *goquery.Document, r domain.PriceRules) []domain.PriceEntry {
	out := []domain.PriceEntry{}
	if doc == nil {
		return out
	}
	doc.Find(r.Block).Each(func(_ int, block *goquery.Selection) {
		dateRange := strings.TrimSpace(block.Find(r.Header).First().Text())
		block.Find(r.Row).Each(func(_ int, row *goquery.Selection) {
			room := strings.TrimSpace(row.Find(r.RoomCategory).First().Text())
			if room != "" {
				room = e.normalize(ctx, room)
			}
			details := domain.PriceDetails{DoublePrice: domain.NotAvailable, SingleSurcharge: domain.NotAvailable}
			cols := row.Find(r.PriceColumn)
			if cols.Length() >= 2 {
				details.DoublePrice = strings.TrimSpace(cols.Eq(0).Text())
				details.SingleSurcharge = strings.TrimSpace(cols.Eq(1).Text())
			}
			out = append(out, domain.PriceEntry{
				DateRange:    dateRange,
				RoomCategory: room,
				PriceDetails: details,
			})
		})
	})
	return out
}

func (e *FieldExtractor) table(ctx context.Context, doc *goquery.Document, r domain.TableRules) [][]string {
	out := [][]string{}
	if doc == nil {
		return out
	}
	doc.Find(r.Body).First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := []string{}
		tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, e.normalize(ctx, strings.TrimSpace(c.Text())))
		})
		out = append(out, cells)
	})
	return out
}

func (e *FieldExtractor) normalize(ctx context.Context, text string) string {
	if e.norm == nil {
		return text
	}
	return e.norm.Normalize(ctx, text, e.src, e.dst)
}
