package waitlist

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

type Metrics struct {
	signups   *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
}

// NewMetrics registers the waitlist collectors on reg. A nil reg yields
// working but unexported collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		signups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_signups_total",
				Help: "Waitlist signup attempts by serving backend and outcome.",
			},
			[]string{"backend", "outcome"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_store_fallbacks_total",
				Help: "Store operations answered by the fallback file store because the hosted store failed.",
			},
			[]string{"operation"},
		),
	}

	if reg != nil {
		m.signups = registerOrReuse(reg, m.signups)
		m.fallbacks = registerOrReuse(reg, m.fallbacks)
	}

	return m
}

func registerOrReuse(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) ObserveSignup(backend, outcome string) {
	if m == nil {
		return
	}
	m.signups.WithLabelValues(backend, outcome).Inc()
}

func (m *Metrics) ObserveFallback(operation string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(operation).Inc()
}
