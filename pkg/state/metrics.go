package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookmarkReads tracks bookmark loads by backend
	BookmarkReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_bookmark_reads_total",
			Help: "Total number of bookmark loads",
		},
		[]string{"backend"}, // "redis", "file"
	)

	// BookmarkMisses tracks loads for collections that were never synced
	BookmarkMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sherpa_bookmark_misses_total",
			Help: "Total number of bookmark loads finding no stored bookmark",
		},
	)

	// BookmarkWrites tracks bookmark writes by backend
	BookmarkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_bookmark_writes_total",
			Help: "Total number of bookmark writes",
		},
		[]string{"backend"}, // "redis", "file"
	)

	// StoreErrors tracks bookmark store failures by operation
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sherpa_state_errors_total",
			Help: "Total number of bookmark store failures",
		},
		[]string{"operation"}, // "get", "put", "delete"
	)
)
