package metrics

import (
	"net/http"
	"strconv"
	"time"

	"airemover/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records gateway metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	attempts   *prometheus.CounterVec
	transports *prometheus.CounterVec
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Provider HTTP attempts by outcome class",
		}, []string{"provider", "outcome"}),
		transports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_selections_total",
			Help:      "How images were sent to providers",
		}, []string{"provider", "transport"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Processed requests by response status",
		}, []string{"provider", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End to end request duration",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90, 120, 300},
		}, []string{"provider"}),
	}
}

func (c *Collector) ObserveAttempt(provider string, class domain.FailureClass) {
	outcome := string(class)
	if class == domain.FailureNone {
		outcome = "success"
	}

	c.attempts.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) ObserveTransport(provider string, kind domain.TransportKind) {
	c.transports.WithLabelValues(provider, string(kind)).Inc()
}

func (c *Collector) ObserveRequest(provider string, status int, duration time.Duration) {
	c.requests.WithLabelValues(provider, strconv.Itoa(status)).Inc()
	c.duration.WithLabelValues(provider).Observe(duration.Seconds())
}

// Handler exposes the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
