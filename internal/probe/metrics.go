package probe

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports probe counts and latencies to Prometheus.
// It implements Observer.
type Metrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the probe collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workbench",
			Name:      "probe_total",
			Help:      "Printer reachability probes by protocol and outcome.",
		}, []string{"protocol", "ok"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workbench",
			Name:      "probe_duration_seconds",
			Help:      "Wall time of printer probes including the ipp root fallback.",
			// Attempts are capped at 2.5s each, two attempts at most.
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"protocol"}),
	}

	for _, c := range []prometheus.Collector{m.total, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveProbe records one completed probe.
func (m *Metrics) ObserveProbe(target Target, result Result) {
	protocol := string(target.Protocol)
	m.total.WithLabelValues(protocol, strconv.FormatBool(result.OK)).Inc()
	m.duration.WithLabelValues(protocol).Observe(result.Elapsed().Seconds())
}
