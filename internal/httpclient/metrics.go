package httpclient

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts and times requests per method and status code.
// A nil *Metrics records nothing.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caldav_client_requests_total",
			Help: "CalDAV requests issued, by method and HTTP status code",
		}, []string{"method", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caldav_client_request_duration_seconds",
			Help:    "Latency of CalDAV requests, by method",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if reg == nil {
		return m, nil
	}

	if err := reg.Register(m.Requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		m.Requests = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(m.Duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		m.Duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return m, nil
}

func (m *Metrics) observe(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, code).Inc()
	m.Duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
