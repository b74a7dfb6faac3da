package wkhtmltox

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by a Runtime and the
// Workers and Converters built on it. A nil *Metrics records nothing.
type Metrics struct {
	conversions     *prometheus.CounterVec
	duration        prometheus.Histogram
	events          *prometheus.CounterVec
	liveConverters  prometheus.Gauge
	initializations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wkhtmltox_conversions_total",
				Help: "Conversions by result (success, failure)",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wkhtmltox_conversion_duration_seconds",
				Help:    "Time spent inside the native convert call",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wkhtmltox_events_total",
				Help: "Engine callbacks delivered to listeners, by kind",
			},
			[]string{"kind"},
		),
		liveConverters: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wkhtmltox_live_converters",
				Help: "Native converters created and not yet destroyed",
			},
		),
		initializations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wkhtmltox_initializations_total",
				Help: "Engine initialization attempts by result",
			},
			[]string{"result"},
		),
	}

	for _, c := range []prometheus.Collector{m.conversions, m.duration, m.events, m.liveConverters, m.initializations} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}
	return m, nil
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *Metrics) observeConversion(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(result(ok)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) observeEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeInit(ok bool) {
	if m == nil {
		return
	}
	m.initializations.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) converterOpened() {
	if m != nil {
		m.liveConverters.Inc()
	}
}

func (m *Metrics) converterClosed() {
	if m != nil {
		m.liveConverters.Dec()
	}
}
