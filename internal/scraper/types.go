package scraper

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Data attributes carried by product tiles on the rendered category pages.
const (
	attrItemID     = "data-cnstrc-item-id"
	attrItemName   = "data-cnstrc-item-name"
	attrItemPrice  = "data-cnstrc-item-price"
	attrStrategyID = "data-cnstrc-strategy-id"
)

// ProductRecord is one scraped product listing. The JSON shape matches the
// layout of the persisted results file.
type ProductRecord struct {
	Name           string            `json:"name"`
	Price          string            `json:"price"`
	PriceValue     string            `json:"price_value,omitempty"`
	OriginalPrice  string            `json:"original_price,omitempty"`
	ProductURL     string            `json:"product_url,omitempty"`
	ImageURL       string            `json:"image_url,omitempty"`
	ProductID      string            `json:"product_id"`
	MainCategory   string            `json:"main_category"`
	SubCategory    string            `json:"sub_category"`
	CategoryURL    string            `json:"category_url"`
	ScrapedAt      time.Time         `json:"scraped_at"`
	DataAttributes map[string]string `json:"data_attributes,omitempty"`
}

// CategoryTarget is one listing page (and its pagination chain) to scrape.
// Targets are built from static configuration before a run and are immutable.
type CategoryTarget struct {
	URL          string
	MainCategory string
	SubCategory  string
	// Keywords switches the category to keyword-targeted extraction: only
	// the first element matching each keyword is extracted.
	Keywords []string
}

// Strategy selects the breadth of selector fallbacks during extraction.
type Strategy int

const (
	// StrategyPrimary uses the configured selector candidate lists.
	StrategyPrimary Strategy = iota
	// StrategyAggressive widens every candidate list to generic fallbacks
	// and requires the currency marker before accepting a price.
	StrategyAggressive
)

// String returns the strategy name for logging
func (s Strategy) String() string {
	if s == StrategyAggressive {
		return "aggressive"
	}
	return "primary"
}

// ExtractionPolicy configures one orchestrator run. The near-duplicate
// spider variants of the original service collapse into this one struct.
type ExtractionPolicy struct {
	// ContainerSelectors locate product-tile fragments; the first entry is
	// the primary selector, the rest are tried when it matches nothing.
	ContainerSelectors []string

	NameSelectors         []string
	PriceSelectors        []string
	URLSelectors          []string
	ImageSelector         string
	OriginalPriceSelector string
	NextPageSelector      string

	// WaitSelector is handed to the rendering service so extraction only
	// starts once the product grid has been scripted into the DOM.
	WaitSelector string

	// ProductsPerCategory caps Primary extraction per category.
	ProductsPerCategory int
	// MinValidRecords triggers the Aggressive re-run when Primary yields
	// fewer valid records and unexamined elements remain.
	MinValidRecords int
	// MaxPages bounds pagination per category.
	MaxPages int
}

// DefaultPolicy returns the selector configuration for the current site
// markup. The ordering inside each candidate list is the fallback priority.
func DefaultPolicy() ExtractionPolicy {
	return ExtractionPolicy{
		ContainerSelectors: []string{
			"div.product-grid-item",
			"div[data-cnstrc-item-id]",
			"div.product-card",
		},
		NameSelectors: []string{
			"a.product-grid-item__info-container__name",
			"a.product-action",
			"[aria-label]",
			"h3.item-product__name",
			"div.product-name",
		},
		PriceSelectors: []string{
			"div.product-grid-item__price",
			"span.price",
			"div.price",
		},
		URLSelectors: []string{
			"a.product-action",
			"a.product-grid-item__info-container__name",
		},
		ImageSelector:         "img",
		OriginalPriceSelector: ".old",
		NextPageSelector:      "a[rel='next'], li.pagination-next a",
		WaitSelector:          "div.product-grid-item",
		ProductsPerCategory:   2,
		MinValidRecords:       1,
		MaxPages:              1,
	}
}

// RawElement is an opaque handle to one product-tile fragment. It is only
// valid while the page it came from is being parsed.
type RawElement struct {
	sel   *goquery.Selection
	index int
}

// NewRawElement wraps a goquery selection as an element fragment
func NewRawElement(sel *goquery.Selection, index int) RawElement {
	return RawElement{sel: sel, index: index}
}

// Index returns the element's position within the page's element sequence
func (e RawElement) Index() int {
	return e.index
}

// Attr returns the trimmed value of an attribute, or "" when absent
func (e RawElement) Attr(name string) string {
	v, _ := e.sel.Attr(name)
	return strings.TrimSpace(v)
}

// Find runs a selector query scoped to the fragment subtree
func (e RawElement) Find(selector string) *goquery.Selection {
	return e.sel.Find(selector)
}

// DataAttributes echoes the tile's data attributes for diagnostics.
func (e RawElement) DataAttributes() map[string]string {
	return map[string]string{
		"item_id":     e.Attr(attrItemID),
		"item_name":   e.Attr(attrItemName),
		"item_price":  e.Attr(attrItemPrice),
		"strategy_id": e.Attr(attrStrategyID),
	}
}

// RenderedPage is a parsed category page as returned by the rendering
// client.
type RenderedPage struct {
	Status   int
	FinalURL string
	Doc      *goquery.Document
}

// Elements locates product fragments with the given container selector
func (p *RenderedPage) Elements(selector string) []RawElement {
	var elements []RawElement
	p.Doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		elements = append(elements, NewRawElement(s, i))
	})
	return elements
}

// ResolveURL resolves href against the page's final URL
func (p *RenderedPage) ResolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(p.FinalURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// NextPageURL returns the absolute URL of the pagination follow-up link, or
// "" when the page has none.
func (p *RenderedPage) NextPageURL(selector string) string {
	if selector == "" {
		return ""
	}
	href, exists := p.Doc.Find(selector).First().Attr("href")
	if !exists || strings.TrimSpace(href) == "" {
		return ""
	}
	return p.ResolveURL(href)
}
