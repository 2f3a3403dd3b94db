// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registryRequestsTotal *prometheus.CounterVec
	registryRetriesTotal  prometheus.Counter
	pagesTotal            *prometheus.CounterVec
	recordsTotal          *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registryRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_requests_total",
				Help: "Total registry API requests, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		registryRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "registry_retries_total",
				Help: "Total retry attempts against the registry API.",
			},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_pages_total",
				Help: "Total listing pages processed, labeled by year.",
			},
			[]string{"year"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_records_total",
				Help: "Total records seen, labeled by year and disposition (new, skipped, failed).",
			},
			[]string{"year", "disposition"},
		)
	})
}

// ObserveRequest counts one registry request with the given outcome
// ("success", "error", "unavailable").
func ObserveRequest(outcome string) {
	if registryRequestsTotal != nil {
		registryRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRetry counts one retry attempt.
func ObserveRetry() {
	if registryRetriesTotal != nil {
		registryRetriesTotal.Inc()
	}
}

// ObservePage counts one processed listing page for a year.
func ObservePage(year string) {
	if pagesTotal != nil {
		pagesTotal.WithLabelValues(year).Inc()
	}
}

// ObserveRecords adds n records for a year under a disposition.
func ObserveRecords(year, disposition string, n int) {
	if recordsTotal != nil && n > 0 {
		recordsTotal.WithLabelValues(year, disposition).Add(float64(n))
	}
}

// Handler returns the HTTP handler that serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
