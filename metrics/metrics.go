// Package metrics holds the Prometheus collectors shared across the tracker
// service. Collectors are registered on the default registry and exposed by
// the API server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Suppression reasons for EventsSuppressed.
const (
	ReasonSubframe   = "subframe"
	ReasonUntracked  = "untracked_url"
	ReasonSameTabURL = "same_tab_url"
	ReasonDebounced  = "debounced"
)

var (
	// EventsReceived counts raw navigation events by trigger.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_navigation_events_total",
		Help: "Raw navigation events received, by trigger.",
	}, []string{"trigger"})

	// EventsSuppressed counts events dropped before emission, by reason.
	EventsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_navigation_events_suppressed_total",
		Help: "Navigation events suppressed by the dedup gate, by reason.",
	}, []string{"reason"})

	// VisitsEmitted counts visit records handed to the enrichment boundary.
	VisitsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_visits_emitted_total",
		Help: "Visit records emitted, by kind.",
	}, []string{"kind"})

	// RepoSearches counts repository-search provider calls by outcome.
	RepoSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_repo_searches_total",
		Help: "Repository search API calls, by status.",
	}, []string{"status"})

	// GenerateCalls counts text-generation provider calls by outcome.
	GenerateCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_generate_calls_total",
		Help: "Text generation API calls, by status.",
	}, []string{"status"})

	// DBOpenConns gauges the connection pool, refreshed by the stats ticker.
	DBOpenConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_db_open_connections",
		Help: "Open connections in the database pool.",
	})
)
