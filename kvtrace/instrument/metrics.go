package instrument

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts wrapped calls per identity.
type Metrics struct {
	calls    *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewMetrics registers the call counters on reg. Registering twice on the
// same registry returns collectors bound to the first registration.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	calls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of calls to instrumented operations",
		},
		[]string{"identity"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_failures_total",
			Help:      "Total number of instrumented calls that returned an error",
		},
		[]string{"identity"},
	)

	var err error
	if calls, err = RegisterCounter(reg, calls); err != nil {
		return nil, err
	}
	if failures, err = RegisterCounter(reg, failures); err != nil {
		return nil, err
	}

	return &Metrics{calls: calls, failures: failures}, nil
}

func (m *Metrics) observe(identity string, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(identity).Inc()
	if err != nil {
		m.failures.WithLabelValues(identity).Inc()
	}
}

// RegisterCounter registers c on reg, reusing a counter already registered
// under the same descriptor.
func RegisterCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}
