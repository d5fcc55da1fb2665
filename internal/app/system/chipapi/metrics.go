// internal/app/system/chipapi/metrics.go
package chipapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records backend call counts and latencies. A nil *Metrics is a no-op.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chipdash",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "CHIP backend requests by method, path and outcome.",
		}, []string{"method", "path", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chipdash",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "CHIP backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(method, path, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, outcome).Inc()
	m.duration.WithLabelValues(method, path).Observe(d.Seconds())
}
