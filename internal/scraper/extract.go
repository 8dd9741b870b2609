package scraper

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// currencyMarker is the Rand prefix the site renders in front of prices.
const currencyMarker = "R"

// numberPattern matches the first run of digits with an optional decimal
// part, so "R24.99" yields "24.99".
var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Aggressive-only selector fallbacks, appended after the configured lists.
var (
	aggressiveNameSelectors  = []string{"span"}
	aggressivePriceSelectors = []string{"[class*='price']"}
	aggressiveURLSelectors   = []string{"a[href]"}
)

// Extractor recovers ProductRecords from page-element fragments using
// prioritized selector fallback.
type Extractor struct {
	policy ExtractionPolicy
	now    func() time.Time
}

// NewExtractor creates an extractor for the given policy
func NewExtractor(policy ExtractionPolicy) *Extractor {
	return &Extractor{
		policy: policy,
		now:    time.Now,
	}
}

// WithClock overrides the extractor's clock, for tests
func (x *Extractor) WithClock(now func() time.Time) *Extractor {
	x.now = now
	return x
}

// Extract attempts to recover a product record from one fragment. The bool
// result is false when the element yields neither a name nor a price after
// every candidate is exhausted; that is a skip, not an error.
func (x *Extractor) Extract(el RawElement, page *RenderedPage, target CategoryTarget, strategy Strategy) (*ProductRecord, bool) {
	name := x.ElementName(el, strategy)
	priceValue := x.elementPrice(el, strategy)

	if name == "" && priceValue == "" {
		return nil, false
	}

	productID := el.Attr(attrItemID)
	if productID == "" {
		productID = fmt.Sprintf("item_%d", el.Index())
	}

	record := &ProductRecord{
		Name:           name,
		PriceValue:     priceValue,
		OriginalPrice:  x.originalPrice(el),
		ProductURL:     x.productURL(el, page, strategy),
		ImageURL:       x.imageURL(el),
		ProductID:      productID,
		MainCategory:   target.MainCategory,
		SubCategory:    target.SubCategory,
		CategoryURL:    page.FinalURL,
		ScrapedAt:      x.now().UTC(),
		DataAttributes: el.DataAttributes(),
	}

	return record, true
}

// ElementName recovers the element's product name: data attribute first,
// then the first non-empty text among the selector candidates. Exposed so
// keyword-targeted extraction can match names without building a record.
func (x *Extractor) ElementName(el RawElement, strategy Strategy) string {
	if name := el.Attr(attrItemName); name != "" {
		return name
	}

	candidates := x.policy.NameSelectors
	if strategy == StrategyAggressive {
		candidates = append(append([]string{}, candidates...), aggressiveNameSelectors...)
	}

	for _, selector := range candidates {
		sel := el.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			// ARIA labels carry the name as an attribute, not text
			text = strings.TrimSpace(sel.AttrOr("aria-label", ""))
		}
		if text != "" {
			return text
		}
	}
	return ""
}

// elementPrice recovers the numeric price text. The aggressive strategy
// additionally requires the matched text to contain the currency marker, so
// unrelated numeric text is not picked up by the widened selectors.
func (x *Extractor) elementPrice(el RawElement, strategy Strategy) string {
	if price := el.Attr(attrItemPrice); price != "" {
		return price
	}

	candidates := x.policy.PriceSelectors
	if strategy == StrategyAggressive {
		candidates = append(append([]string{}, candidates...), aggressivePriceSelectors...)
	}

	for _, selector := range candidates {
		text := strings.TrimSpace(el.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if strategy == StrategyAggressive && !strings.Contains(text, currencyMarker) {
			continue
		}
		if value := numberPattern.FindString(text); value != "" {
			return value
		}
	}
	return ""
}

// productURL returns the first non-empty href among the anchor candidates,
// resolved to an absolute URL against the page base.
func (x *Extractor) productURL(el RawElement, page *RenderedPage, strategy Strategy) string {
	candidates := x.policy.URLSelectors
	if strategy == StrategyAggressive {
		candidates = append(append([]string{}, candidates...), aggressiveURLSelectors...)
	}

	for _, selector := range candidates {
		href, exists := el.Find(selector).First().Attr("href")
		if exists && strings.TrimSpace(href) != "" {
			return page.ResolveURL(href)
		}
	}
	return ""
}

func (x *Extractor) imageURL(el RawElement) string {
	src, _ := el.Find(x.policy.ImageSelector).First().Attr("src")
	return strings.TrimSpace(src)
}

func (x *Extractor) originalPrice(el RawElement) string {
	if x.policy.OriginalPriceSelector == "" {
		return ""
	}
	return strings.TrimSpace(el.Find(x.policy.OriginalPriceSelector).First().Text())
}
