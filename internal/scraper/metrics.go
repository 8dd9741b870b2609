package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a crawl run.
type Metrics struct {
	Registry             *prometheus.Registry
	PagesFetchedTotal    *prometheus.CounterVec
	FetchErrorsTotal     prometheus.Counter
	RenderDuration       prometheus.Histogram
	ProductsEmittedTotal prometheus.Counter
	ElementsSkippedTotal prometheus.Counter
	RecordsDroppedTotal  *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pagesFetched := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "Total rendered category pages fetched.",
		},
		[]string{"category"},
	)
	fetchErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_fetch_errors_total",
			Help: "Total rendering or network failures.",
		},
	)
	renderDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_render_duration_seconds",
			Help:    "Latency of rendered page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	productsEmitted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_products_emitted_total",
			Help: "Total valid product records written to the sink.",
		},
	)
	elementsSkipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_elements_skipped_total",
			Help: "Total elements yielding neither name nor price.",
		},
	)
	recordsDropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_records_dropped_total",
			Help: "Total extracted records dropped before emission.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(pagesFetched, fetchErrors, renderDuration, productsEmitted, elementsSkipped, recordsDropped)

	return &Metrics{
		Registry:             registry,
		PagesFetchedTotal:    pagesFetched,
		FetchErrorsTotal:     fetchErrors,
		RenderDuration:       renderDuration,
		ProductsEmittedTotal: productsEmitted,
		ElementsSkippedTotal: elementsSkipped,
		RecordsDroppedTotal:  recordsDropped,
	}
}

// IncPageFetched increments the fetched-page counter for a category.
func (m *Metrics) IncPageFetched(category string) {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.WithLabelValues(category).Inc()
}

// IncFetchError increments the fetch error counter.
func (m *Metrics) IncFetchError() {
	if m == nil {
		return
	}
	m.FetchErrorsTotal.Inc()
}

// ObserveRender records a rendered fetch duration.
func (m *Metrics) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(d.Seconds())
}

// IncProductEmitted increments the emitted-record counter.
func (m *Metrics) IncProductEmitted() {
	if m == nil {
		return
	}
	m.ProductsEmittedTotal.Inc()
}

// IncElementSkipped increments the skipped-element counter.
func (m *Metrics) IncElementSkipped() {
	if m == nil {
		return
	}
	m.ElementsSkippedTotal.Inc()
}

// IncRecordDropped increments the dropped-record counter for a reason label.
func (m *Metrics) IncRecordDropped(reason string) {
	if m == nil {
		return
	}
	m.RecordsDroppedTotal.WithLabelValues(reason).Inc()
}
