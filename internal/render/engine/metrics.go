package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsInUse prometheus.Gauge
	AcquireWait   prometheus.Histogram
	Saturated     prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		SessionsInUse: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_render_sessions_in_use",
			Help: "Rendering sessions currently held by generations",
		}),
		AcquireWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_render_acquire_wait_seconds",
			Help:    "Time spent waiting for a rendering slot",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 2, 5},
		}),
		Saturated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_render_pool_saturated_total",
			Help: "Acquire attempts rejected because every slot stayed busy",
		}),
	}
}

func (m *Metrics) SetInUse(n int64) {
	if m != nil {
		m.SessionsInUse.Set(float64(n))
	}
}

func (m *Metrics) ObserveWait(d time.Duration) {
	if m != nil {
		m.AcquireWait.Observe(d.Seconds())
	}
}

func (m *Metrics) IncSaturated() {
	if m != nil {
		m.Saturated.Inc()
	}
}
