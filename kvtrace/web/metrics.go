package web

import (
	"github.com/ZanzyTHEbar/kvtrace/kvtrace/instrument"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts page cache hits and misses.
type Metrics struct {
	lookups *prometheus.CounterVec
}

// NewMetrics registers the page cache counters on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	lookups, err := instrument.RegisterCounter(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "page_cache",
			Name:      "lookups_total",
			Help:      "Page cache lookups by result",
		},
		[]string{"result"},
	))
	if err != nil {
		return nil, err
	}
	return &Metrics{lookups: lookups}, nil
}

func (m *Metrics) hit() {
	if m != nil {
		m.lookups.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.lookups.WithLabelValues("miss").Inc()
	}
}
