// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noteintel_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noteintel_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// SearchDuration measures search calls by mode (hybrid, vector, keyword).
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noteintel_search_duration_seconds",
			Help:    "Execution time of search calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	// SearchBranchFailures counts sub-searches that failed and were degraded
	// to an empty list during hybrid search.
	SearchBranchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noteintel_search_branch_failures_total",
			Help: "Hybrid search sub-searches that failed",
		},
		[]string{"branch"},
	)

	GraphBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "noteintel_graph_build_duration_seconds",
			Help:    "Time spent rebuilding the link graph from the store",
			Buckets: prometheus.DefBuckets,
		},
	)

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "noteintel_graph_nodes",
		Help: "Nodes in the most recently built link graph",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "noteintel_graph_edges",
		Help: "Edges in the most recently built link graph",
	})

	// ValidationFindings reports the last validation pass by issue kind
	// (broken, orphan, circular, duplicate).
	ValidationFindings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "noteintel_link_validation_findings",
			Help: "Issues found by the last link validation pass",
		},
		[]string{"kind"},
	)

	LinksRepaired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noteintel_links_repaired_total",
		Help: "Link rows deleted by repair passes",
	})

	SuggestionsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noteintel_link_suggestions_total",
			Help: "Link suggestions returned by mode (note, keywords)",
		},
		[]string{"mode"},
	)
)
