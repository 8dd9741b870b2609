package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tmabaso28/pnpscraper/internal/window"
	"tmabaso28/pnpscraper/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
)

// mockRenderer serves canned HTML per URL.
type mockRenderer struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
	err     error
}

var _ Renderer = (*mockRenderer)(nil)

func (m *mockRenderer) FetchRendered(ctx context.Context, pageURL, waitSelector string) (*RenderedPage, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, pageURL)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	html, ok := m.pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("no canned page for %s", pageURL)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &RenderedPage{Status: 200, FinalURL: pageURL, Doc: doc}, nil
}

// mockSink collects appended records in memory.
type mockSink struct {
	mu        sync.Mutex
	opened    bool
	closed    bool
	records   []*ProductRecord
	appendErr error
}

var _ Sink = (*mockSink)(nil)

func (m *mockSink) Open() error {
	m.opened = true
	return nil
}

func (m *mockSink) Append(record *ProductRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockSink) Close() error {
	m.closed = true
	return nil
}

func openClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC)
	}
}

func closedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	}
}

func tile(name, price string) string {
	return fmt.Sprintf(`<div class="product-grid-item">
		<a class="product-grid-item__info-container__name" href="/p/%s">%s</a>
		<div class="product-grid-item__price">R%s</div>
	</div>`, strings.ReplaceAll(strings.ToLower(name), " ", "-"), name, price)
}

func TestRunRejectedOutsideWindow(t *testing.T) {
	renderer := &mockRenderer{}
	sink := &mockSink{}
	o := NewOrchestrator(renderer, sink, DefaultPolicy(), window.Default).WithClock(closedClock())

	result, err := o.Run(context.Background(), []CategoryTarget{{URL: "https://example.test/c", MainCategory: "Food"}})

	assert.Nil(t, result)
	assert.True(t, errors.IsWindowClosed(err))
	assert.Empty(t, renderer.fetched)
	assert.False(t, sink.opened)
}

func TestRunEmitsValidRecordsUpToCap(t *testing.T) {
	url := "https://example.test/c/food"
	renderer := &mockRenderer{pages: map[string]string{
		url: tile("White Bread 700g", "18.99") +
			tile("Loading...", "18.99") + // placeholder name, dropped
			tile("Full Cream Milk 2L", "21.99") +
			tile("Sunflower Oil 2L", "89.99"), // beyond the cap
	}}
	sink := &mockSink{}
	o := NewOrchestrator(renderer, sink, DefaultPolicy(), window.Default).WithClock(openClock())

	result, err := o.Run(context.Background(), []CategoryTarget{{URL: url, MainCategory: "Food Cupboard"}})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Products)
	assert.Equal(t, 1, result.Categories)
	assert.Equal(t, 0, result.Failures)
	assert.True(t, sink.opened)
	assert.True(t, sink.closed)
	assert.Len(t, sink.records, 2)
	assert.Equal(t, "White Bread 700g", sink.records[0].Name)
	assert.Equal(t, "R 21.99", sink.records[1].Price)
}

func TestRunSkipsEmptyAndDeduplicatesWithinCategory(t *testing.T) {
	url := "https://example.test/c/food"
	renderer := &mockRenderer{pages: map[string]string{
		url: tile("PnP Eggs", "42.99") +
			`<div class="product-grid-item"><span class="badge">New</span></div>` + // no name, no price
			tile("pnp eggs", "42.99"), // duplicate of the first, case-insensitively
	}}
	sink := &mockSink{}

	policy := DefaultPolicy()
	policy.ProductsPerCategory = 10
	o := NewOrchestrator(renderer, sink, policy, window.Default).WithClock(openClock())

	result, err := o.Run(context.Background(), []CategoryTarget{{URL: url, MainCategory: "Food Cupboard"}})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Products)
	assert.Len(t, sink.records, 1)
	assert.Equal(t, "PnP Eggs", sink.records[0].Name)
}

func TestRunAggressiveFallbackWhenBelowMinimum(t *testing.T) {
	url := "https://example.test/c/household"
	// Only generic markup: no primary selector matches, so Primary skips
	// every element and Aggressive recovers them.
	page := `
	<div class="product-grid-item">
		<span>Dishwashing Liquid 750ml</span>
		<div class="promo-price">R 32.99</div>
	</div>
	<div class="product-grid-item">
		<span>Washing Powder 2kg</span>
		<div class="promo-price">R 79.99</div>
	</div>
	<div class="product-grid-item">
		<span>Sponges 5 pack</span>
		<div class="promo-price">R 24.99</div>
	</div>`
	renderer := &mockRenderer{pages: map[string]string{url: page}}
	sink := &mockSink{}

	policy := DefaultPolicy()
	policy.ProductsPerCategory = 5
	policy.MinValidRecords = 2
	o := NewOrchestrator(renderer, sink, policy, window.Default).WithClock(openClock())

	result, err := o.Run(context.Background(), []CategoryTarget{{URL: url, MainCategory: "Household"}})

	assert.NoError(t, err)
	// Aggressive stops once the minimum is met.
	assert.Equal(t, 2, result.Products)
	assert.Len(t, sink.records, 2)
	assert.Equal(t, "Dishwashing Liquid 750ml", sink.records[0].Name)
	assert.Equal(t, "Washing Powder 2kg", sink.records[1].Name)
}

func TestRunAggressiveToppingUpPrimaryYield(t *testing.T) {
	url := "https://example.test/c/personal-care"
	// One tile uses the primary markup; the other four only yield to the
	// widened selectors.
	generic := func(name, price string) string {
		return fmt.Sprintf(`<div class="product-grid-item">
			<span>%s</span>
			<div class="promo-price">R %s</div>
		</div>`, name, price)
	}
	page := tile("Roll-on Deodorant 50ml", "34.99") +
		generic("Toothpaste 100ml", "26.99") +
		generic("Bar Soap 175g", "12.99") +
		generic("Shampoo 400ml", "64.99") +
		generic("Body Lotion 400ml", "54.99")
	renderer := &mockRenderer{pages: map[string]string{url: page}}
	sink := &mockSink{}

	policy := DefaultPolicy()
	policy.ProductsPerCategory = 5
	policy.MinValidRecords = 2
	o := NewOrchestrator(renderer, sink, policy, window.Default).WithClock(openClock())

	result, err := o.Run(context.Background(), []CategoryTarget{{URL: url, MainCategory: "Personal Care"}})

	assert.NoError(t, err)
	// Primary yields one record; the aggressive pass tops up to the minimum.
	assert.Equal(t, 2, result.Products)
	assert.Equal(t, "Roll-on Deodorant 50ml", sink.records[0].Name)
	assert.Equal(t, "Toothpaste 100ml", sink.records[1].Name)
}

func TestRunDeduplicatesAcrossCategories(t *testing.T) {
	urlA := "https://example.test/c/a"
	urlB := "https://example.test/c/b"
	renderer := &mockRenderer{pages: map[string]string{
		urlA: tile("White Bread 700g", "18.99"),
		urlB: tile("WHITE BREAD 700G", "18.99") + tile("Brown Bread 700g", "17.99"),
	}}
	sink := &mockSink{}
	o := NewOrchestrator(renderer, sink, DefaultPolicy(), window.Default).WithClock(openClock())

	result, err := o.Run(context.Background(), []CategoryTarget{
		{URL: urlA, MainCategory: "Food Cupboard"},
		{URL: urlB, MainCategory: "Bakery"},
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Products)
	assert.Len(t, sink.records, 2)
	assert.Equal(t, "White Bread 700g", sink.records[0].Name)
	assert.Equal(t, "Brown Bread 700g", sink.records[1].Name)
}

func TestRunFetchFailureIsolatedPerCategory(t *testing.T) {
	okURL := "https://example.test/c/ok"
	renderer := &mockRenderer{pages: map[string]string{
		okURL: tile("White Bread 700g", "18.99"),
	}}
	sink := &mockSink{}
	o := NewOrchestrator(renderer, sink, DefaultPolicy(), window.Default).WithClock(openClock())

	result, err := o.Run(context.Background(), []CategoryTarget{
		{URL: "https://example.test/c/missing", MainCategory: "Broken"},
		{URL: okURL, MainCategory: "Food Cupboard"},
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, 2, result.Categories)
	assert.Equal(t, 1, result.Products)
	assert.True(t, sink.closed)
}

func TestRunSinkFailureIsFatal(t *testing.T) {
	url := "https://example.test/c/food"
	renderer := &mockRenderer{pages: map[string]string{
		url: tile("White Bread 700g", "18.99"),
	}}
	sink := &mockSink{appendErr: fmt.Errorf("disk full")}
	o := NewOrchestrator(renderer, sink, DefaultPolicy(), window.Default).WithClock(openClock())

	result, err := o.Run(context.Background(), []CategoryTarget{
		{URL: url, MainCategory: "Food Cupboard"},
		{URL: "https://example.test/c/never", MainCategory: "Never Reached"},
	})

	assert.Error(t, err)
	se, ok := err.(*errors.ScrapeError)
	assert.True(t, ok)
	assert.True(t, se.IsFatal())
	// The fatal error stops sibling categories.
	assert.Equal(t, 1, result.Categories)
	assert.Len(t, renderer.fetched, 1)
}

func TestRunWindowClosureStopsPagination(t *testing.T) {
	first := "https://example.test/c/food"
	second := "https://example.test/c/food?currentPage=1"
	renderer := &mockRenderer{pages: map[string]string{
		first: tile("White Bread 700g", "18.99") +
			`<li class="pagination-next"><a href="?currentPage=1">Next</a></li>`,
		second: tile("Brown Bread 700g", "17.99"),
	}}
	sink := &mockSink{}

	policy := DefaultPolicy()
	policy.MaxPages = 3
	policy.ProductsPerCategory = 10

	// The window closes after the first fetch.
	times := []time.Time{
		time.Date(2025, 3, 10, 8, 44, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 8, 44, 30, 0, time.UTC),
		time.Date(2025, 3, 10, 8, 46, 0, 0, time.UTC),
	}
	var mu sync.Mutex
	idx := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := times[idx]
		if idx < len(times)-1 {
			idx++
		}
		return now
	}

	o := NewOrchestrator(renderer, sink, policy, window.Default).WithClock(clock)

	result, err := o.Run(context.Background(), []CategoryTarget{{URL: first, MainCategory: "Food Cupboard"}})

	assert.NoError(t, err)
	// Records from the page fetched before closure are kept.
	assert.Equal(t, 1, result.Products)
	assert.Equal(t, []string{first}, renderer.fetched)
}

func TestRunPaginationFollowsNextLink(t *testing.T) {
	first := "https://example.test/c/food"
	second := "https://example.test/c/food?currentPage=1"
	renderer := &mockRenderer{pages: map[string]string{
		first: tile("White Bread 700g", "18.99") +
			`<li class="pagination-next"><a href="?currentPage=1">Next</a></li>`,
		second: tile("Brown Bread 700g", "17.99"),
	}}
	sink := &mockSink{}

	policy := DefaultPolicy()
	policy.MaxPages = 2
	policy.ProductsPerCategory = 10
	o := NewOrchestrator(renderer, sink, policy, window.Default).WithClock(openClock())

	result, err := o.Run(context.Background(), []CategoryTarget{{URL: first, MainCategory: "Food Cupboard"}})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Products)
	assert.Equal(t, []string{first, second}, renderer.fetched)
}

func TestRunKeywordTargets(t *testing.T) {
	url := "https://example.test/c/electronics"
	renderer := &mockRenderer{pages: map[string]string{
		url: tile("HP Laptop 15 inch", "8999.99") +
			tile("USB Cable 1m", "59.99") +
			tile("Wireless Mouse", "249.99"),
	}}
	sink := &mockSink{}

	policy := DefaultPolicy()
	policy.ProductsPerCategory = 10
	o := NewOrchestrator(renderer, sink, policy, window.Default).WithClock(openClock())

	target := CategoryTarget{
		URL:          url,
		MainCategory: "Electronics",
		Keywords:     []string{"laptop", "mouse", "printer"},
	}
	result, err := o.Run(context.Background(), []CategoryTarget{target})

	assert.NoError(t, err)
	// "printer" matches nothing and is skipped without error.
	assert.Equal(t, 2, result.Products)
	assert.Equal(t, "HP Laptop 15 inch", sink.records[0].Name)
	assert.Equal(t, "Wireless Mouse", sink.records[1].Name)
}

func TestRunCancelledContextStopsDispatch(t *testing.T) {
	url := "https://example.test/c/food"
	renderer := &mockRenderer{pages: map[string]string{
		url: tile("White Bread 700g", "18.99"),
	}}
	sink := &mockSink{}
	o := NewOrchestrator(renderer, sink, DefaultPolicy(), window.Default).WithClock(openClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Run(ctx, []CategoryTarget{{URL: url, MainCategory: "Food Cupboard"}})

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Categories)
	assert.Empty(t, renderer.fetched)
	assert.True(t, sink.closed)
}
