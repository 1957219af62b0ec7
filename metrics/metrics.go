// Package metrics exports registry activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	Invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "invocations_total",
			Help:      "Messages applied, by method and exit code.",
		},
		[]string{"method", "code"},
	)

	InvokeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uptime",
			Name:      "invoke_duration_seconds",
			Help:      "Time to apply a message, including state flush.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"method"},
	)

	Evictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uptime",
			Name:      "evictions_total",
			Help:      "Checkers removed by offline vote.",
		},
	)

	Checkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "uptime",
			Name:      "checkers",
			Help:      "Registered checkers.",
		},
	)

	Members = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "uptime",
			Name:      "members",
			Help:      "Registered members.",
		},
	)
)

func init() {
	Registry.MustRegister(Invocations, InvokeDuration, Evictions, Checkers, Members)
}

// ObserveInvocation records one applied message.
func ObserveInvocation(method string, code string, started time.Time) {
	Invocations.WithLabelValues(method, code).Inc()
	InvokeDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

func SetPopulation(checkers int, members int) {
	Checkers.Set(float64(checkers))
	Members.Set(float64(members))
}

// Handler serves the registry on /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
