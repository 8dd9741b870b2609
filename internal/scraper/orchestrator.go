package scraper

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tmabaso28/pnpscraper/internal/window"
	"tmabaso28/pnpscraper/logger"
	"tmabaso28/pnpscraper/pkg/errors"
	"tmabaso28/pnpscraper/services/publisher"
)

// Renderer fetches a category page through the rendering service. Politeness
// (inter-request delay, single in-flight request) is the renderer's job.
type Renderer interface {
	FetchRendered(ctx context.Context, pageURL, waitSelector string) (*RenderedPage, error)
}

// Sink receives emitted records. Appends may arrive from any category in any
// order and must not be reordered or dropped; the sink is never read during
// a run.
type Sink interface {
	Open() error
	Append(record *ProductRecord) error
	Close() error
}

// RunResult summarizes one crawl run.
type RunResult struct {
	Products   int
	Categories int
	Failures   int
	StartTime  time.Time
	EndTime    time.Time
}

// Orchestrator drives the per-category fetch, extract, normalize, emit loop.
// One orchestrator handles every category variant; behavior differences live
// entirely in the ExtractionPolicy and the targets.
type Orchestrator struct {
	renderer  Renderer
	sink      Sink
	pub       publisher.Publisher
	policy    ExtractionPolicy
	window    window.CrawlWindow
	extractor *Extractor
	metrics   *Metrics
	now       func() time.Time
	log       *logger.Logger
}

// NewOrchestrator creates an orchestrator for the given collaborators
func NewOrchestrator(renderer Renderer, sink Sink, policy ExtractionPolicy, win window.CrawlWindow) *Orchestrator {
	return &Orchestrator{
		renderer:  renderer,
		sink:      sink,
		policy:    policy,
		window:    win,
		extractor: NewExtractor(policy),
		now:       time.Now,
		log:       logger.ForOrchestrator(),
	}
}

// WithPublisher attaches an optional record publisher
func (o *Orchestrator) WithPublisher(pub publisher.Publisher) *Orchestrator {
	o.pub = pub
	return o
}

// WithMetrics attaches Prometheus collectors
func (o *Orchestrator) WithMetrics(m *Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// WithClock overrides the orchestrator's clock, for tests
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	o.extractor.WithClock(now)
	return o
}

// Run crawls all targets in order. The initial gate rejection aborts the run
// before any fetch; per-category failures are isolated and never abort
// siblings. Sink failures are fatal.
func (o *Orchestrator) Run(ctx context.Context, targets []CategoryTarget) (*RunResult, error) {
	allowed, message := o.window.Describe(o.now())
	if !allowed {
		return nil, errors.NewWindowClosed("run", message)
	}

	o.log.Info().
		Int("categories", len(targets)).
		Int("products_per_category", o.policy.ProductsPerCategory).
		Msg("Within crawling window, starting scrape")

	if err := o.sink.Open(); err != nil {
		return nil, errors.NewSink("opening output sink", err)
	}

	result := &RunResult{StartTime: o.now()}
	var emitted []*ProductRecord

	var runErr error
	for _, target := range targets {
		if ctx.Err() != nil {
			o.log.Warn().Msg("Run cancelled, stopping category dispatch")
			break
		}

		count, err := o.crawlCategory(ctx, target, &emitted)
		result.Categories++
		result.Products += count
		if err != nil {
			if se, ok := err.(*errors.ScrapeError); ok && se.IsFatal() {
				runErr = err
				break
			}
			result.Failures++
		}
	}

	if err := o.sink.Close(); err != nil && runErr == nil {
		runErr = errors.NewSink("closing output sink", err)
	}

	if o.pub != nil {
		if err := o.pub.TrimStreams(); err != nil {
			logger.ForPublisher().Warn().Err(err).Msg("Trimming streams failed")
		}
	}

	result.EndTime = o.now()
	if runErr != nil {
		return result, runErr
	}

	o.log.Info().
		Int("products", result.Products).
		Int("category_failures", result.Failures).
		Dur("elapsed", result.EndTime.Sub(result.StartTime)).
		Msg("Scrape run finished")
	return result, nil
}

// crawlCategory walks one category's pagination chain. The crawl window is
// re-checked before every follow-up fetch; a closure stops further requests
// for this category only, already-yielded records stay.
func (o *Orchestrator) crawlCategory(ctx context.Context, target CategoryTarget, emitted *[]*ProductRecord) (int, error) {
	log := logger.ForCategory(target.MainCategory)
	pageURL := target.URL
	count := 0

	for page := 1; page <= o.policy.MaxPages; page++ {
		start := o.now()
		rendered, err := o.renderer.FetchRendered(ctx, pageURL, o.policy.WaitSelector)
		if err != nil {
			o.metrics.IncFetchError()
			log.Error().Err(err).Str("url", pageURL).Msg("Fetch failed, category yields no further records")
			return count, errors.NewFetch(target.MainCategory, "fetching rendered page", err)
		}
		o.metrics.IncPageFetched(target.MainCategory)
		o.metrics.ObserveRender(time.Since(start))

		elements := o.locateElements(rendered)
		if len(elements) == 0 {
			log.Warn().Str("url", rendered.FinalURL).Msg("No product elements found")
			return count, nil
		}
		log.Info().Int("elements", len(elements)).Str("url", rendered.FinalURL).Msg("Processing category page")

		var pageCount int
		var emitErr error
		if len(target.Keywords) > 0 {
			pageCount, emitErr = o.extractKeywords(elements, rendered, target, emitted)
		} else {
			pageCount, emitErr = o.extractElements(elements, rendered, target, emitted)
		}
		count += pageCount
		if emitErr != nil {
			return count, emitErr
		}

		next := rendered.NextPageURL(o.policy.NextPageSelector)
		if next == "" {
			break
		}
		if allowed, message := o.window.Describe(o.now()); !allowed {
			log.Info().Str("reason", message).Msg("Crawl window closed, stopping pagination")
			break
		}
		pageURL = next
	}

	log.Info().Int("products", count).Msg("Finished category")
	return count, nil
}

// locateElements tries the container selectors in order until one matches.
func (o *Orchestrator) locateElements(page *RenderedPage) []RawElement {
	for _, selector := range o.policy.ContainerSelectors {
		if elements := page.Elements(selector); len(elements) > 0 {
			return elements
		}
	}
	return nil
}

// extractElements runs Primary extraction up to the per-category cap, then
// re-runs Aggressive over the elements Primary could not use while the valid
// count is below the configured minimum.
func (o *Orchestrator) extractElements(elements []RawElement, page *RenderedPage, target CategoryTarget, emitted *[]*ProductRecord) (int, error) {
	log := logger.ForCategory(target.MainCategory)
	valid := 0
	var leftover []RawElement

	for _, el := range elements {
		if valid >= o.policy.ProductsPerCategory {
			break
		}
		ok, err := o.tryEmit(el, page, target, StrategyPrimary, emitted, log)
		if err != nil {
			return valid, err
		}
		if ok {
			valid++
		} else {
			leftover = append(leftover, el)
		}
	}

	if valid >= o.policy.MinValidRecords || len(leftover) == 0 {
		return valid, nil
	}

	log.Info().
		Int("valid", valid).
		Int("minimum", o.policy.MinValidRecords).
		Int("remaining", len(leftover)).
		Msg("Too few valid records, retrying remainder with aggressive fallback")

	for _, el := range leftover {
		if valid >= o.policy.MinValidRecords {
			break
		}
		ok, err := o.tryEmit(el, page, target, StrategyAggressive, emitted, log)
		if err != nil {
			return valid, err
		}
		if ok {
			valid++
		}
	}

	return valid, nil
}

// extractKeywords extracts the first element whose name contains each target
// keyword, case-insensitively. Unmatched keywords are logged, not errors.
func (o *Orchestrator) extractKeywords(elements []RawElement, page *RenderedPage, target CategoryTarget, emitted *[]*ProductRecord) (int, error) {
	log := logger.ForCategory(target.MainCategory)
	valid := 0

	for _, keyword := range target.Keywords {
		matched := false
		for _, el := range elements {
			name := o.extractor.ElementName(el, StrategyPrimary)
			if name == "" || !containsFold(name, keyword) {
				continue
			}
			matched = true
			ok, err := o.tryEmit(el, page, target, StrategyPrimary, emitted, log)
			if err != nil {
				return valid, err
			}
			if ok {
				valid++
			}
			break
		}
		if !matched {
			log.Warn().Str("keyword", keyword).Msg("No element matched keyword")
		}
	}

	return valid, nil
}

// tryEmit extracts, cleans, validates, dedups and emits one element. The
// bool result reports whether a record was emitted; the error is non-nil
// only for fatal sink failures.
func (o *Orchestrator) tryEmit(el RawElement, page *RenderedPage, target CategoryTarget, strategy Strategy, emitted *[]*ProductRecord, log *logger.Logger) (bool, error) {
	record, ok := o.extractor.Extract(el, page, target, strategy)
	if !ok {
		o.metrics.IncElementSkipped()
		log.Debug().Int("index", el.Index()).Str("strategy", strategy.String()).Msg("Element yields neither name nor price, skipping")
		return false, nil
	}

	Clean(record)

	if !IsValid(record) {
		o.metrics.IncRecordDropped("validation")
		log.Debug().Str("name", record.Name).Str("price_value", record.PriceValue).Msg("Record failed plausibility checks")
		return false, nil
	}
	if IsDuplicate(record, *emitted) {
		o.metrics.IncRecordDropped("duplicate")
		return false, nil
	}

	if err := o.sink.Append(record); err != nil {
		return false, errors.NewSink("appending record", err)
	}
	*emitted = append(*emitted, record)
	o.metrics.IncProductEmitted()

	if o.pub != nil {
		data, err := json.Marshal(record)
		if err != nil {
			log.Error().Err(err).Msg("Marshalling record for publish")
		} else if err := o.pub.Publish(record.ProductID, data); err != nil {
			logger.ForPublisher().Error().Err(err).Str("product_id", record.ProductID).Msg("Publishing record failed")
		}
	}

	log.Info().Str("name", record.Name).Str("price", record.Price).Msg("Product extracted")
	return true, nil
}

func containsFold(haystack, needle string) bool {
	return needle != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
