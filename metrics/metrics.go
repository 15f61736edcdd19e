package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamzali/surge"
)

// Collector exposes the live state of a run for scraping. Every Collector
// registers its metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeWorkers   prometheus.Gauge
	level           prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surge_requests_total",
			Help: "Requests issued, by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "surge_request_duration_seconds",
			Help:    "Duration of completed requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "surge_active_workers",
			Help: "Workers issuing requests right now.",
		}),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "surge_level",
			Help: "Target concurrency of the running level.",
		}),
	}

	c.registry.MustRegister(c.requestsTotal, c.requestDuration, c.activeWorkers, c.level)

	return c
}

func (c *Collector) Observe(r surge.RequestResult) {
	c.requestsTotal.WithLabelValues(r.Endpoint, strconv.Itoa(r.StatusCode)).Inc()
	if r.Completed() {
		c.requestDuration.WithLabelValues(r.Endpoint).Observe(r.Duration.Seconds())
	}
	c.activeWorkers.Set(float64(r.Concurrency))
}

func (c *Collector) SetLevel(concurrency int) {
	c.level.Set(float64(concurrency))
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
