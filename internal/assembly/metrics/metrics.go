package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks document generation outcomes.
type Metrics struct {
	Generations *prometheus.CounterVec
	Duration    prometheus.Histogram
	Pages       prometheus.Histogram
	PageRetries prometheus.Counter
	Coalesced   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Generations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_generations_total",
			Help: "Document generations by outcome code",
		}, []string{"outcome"}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_generation_duration_seconds",
			Help:    "Wall-clock time of document generations",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		Pages: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_generation_pages",
			Help:    "Page count of completed documents",
			Buckets: prometheus.LinearBuckets(2, 4, 10),
		}),
		PageRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_page_render_retries_total",
			Help: "Pages rendered a second time after a failure",
		}),
		Coalesced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_generations_coalesced_total",
			Help: "Generate calls that joined an identical in-flight generation",
		}),
	}
}

func (m *Metrics) ObserveGeneration(outcome string, d time.Duration, pages int) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
	m.Duration.Observe(d.Seconds())
	if pages > 0 {
		m.Pages.Observe(float64(pages))
	}
}

func (m *Metrics) IncPageRetry() {
	if m != nil {
		m.PageRetries.Inc()
	}
}

func (m *Metrics) IncCoalesced() {
	if m != nil {
		m.Coalesced.Inc()
	}
}
