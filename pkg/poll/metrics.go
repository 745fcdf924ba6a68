package poll

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics records poll activity. A nil *Metrics records nothing.
type Metrics struct {
	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	giveUps  *prometheus.CounterVec
}

// NewMetrics registers the poll collectors with reg, reusing collectors
// that are already registered. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "temps",
			Subsystem: "poll",
			Name:      "fetches_total",
			Help:      "Count of poll fetches by outcome",
		}, []string{"resource", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "temps",
			Subsystem: "poll",
			Name:      "duration_seconds",
			Help:      "Latency distribution of poll fetches",
			Buckets:   histogramBuckets,
		}, []string{"resource"}),
		giveUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "temps",
			Subsystem: "poll",
			Name:      "give_ups_total",
			Help:      "Number of poll loops that hit their max duration",
		}, []string{"resource"}),
	}

	if err := reg.Register(m.fetches); err != nil {
		if existing, ok := alreadyRegistered[*prometheus.CounterVec](err); ok {
			m.fetches = existing
		}
	}
	if err := reg.Register(m.duration); err != nil {
		if existing, ok := alreadyRegistered[*prometheus.HistogramVec](err); ok {
			m.duration = existing
		}
	}
	if err := reg.Register(m.giveUps); err != nil {
		if existing, ok := alreadyRegistered[*prometheus.CounterVec](err); ok {
			m.giveUps = existing
		}
	}
	return m
}

func alreadyRegistered[C prometheus.Collector](err error) (C, bool) {
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		c, ok := are.ExistingCollector.(C)
		return c, ok
	}
	var zero C
	return zero, false
}

func (m *Metrics) observeFetch(resource, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.With(prometheus.Labels{"resource": resource, "outcome": outcome}).Inc()
	m.duration.With(prometheus.Labels{"resource": resource}).Observe(d.Seconds())
}

func (m *Metrics) observeGiveUp(resource string) {
	if m == nil {
		return
	}
	m.giveUps.With(prometheus.Labels{"resource": resource}).Inc()
}
