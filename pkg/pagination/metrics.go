package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for replication runs.
var (
	sherpaPagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_pages_fetched_total",
			Help: "Total number of pages fetched by collection",
		},
		[]string{"collection"},
	)

	sherpaRecordsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_records_emitted_total",
			Help: "Total number of records emitted by collection",
		},
		[]string{"collection"},
	)

	sherpaItemsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_items_skipped_total",
			Help: "Total number of malformed items skipped by collection",
		},
		[]string{"collection"},
	)

	sherpaRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_runs_total",
			Help: "Total number of replication runs by collection and termination reason",
		},
		[]string{"collection", "termination"},
	)

	sherpaCursorPosition = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sherpa_cursor_position",
			Help: "Last persisted cursor by collection",
		},
		[]string{"collection"},
	)

	sherpaFanOutKeysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_fanout_keys_total",
			Help: "Total number of distinct child keys handed to fan-out by collection",
		},
		[]string{"collection"},
	)
)
