// Package metrics provides the centralized Prometheus metrics reference for
// the replicator. All metrics are defined in their respective packages
// (client, pagination, state) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the replicator.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - sherpa_requests_total{service, status} (Counter): Total requests by service and HTTP status
//   - sherpa_request_duration_seconds{service} (Histogram): Request duration by service
//   - sherpa_errors_total{error_class} (Counter): Errors by class (transient, auth, fatal)
//
// Retry Metrics (pkg/client):
//   - sherpa_retries_total{error_class} (Counter): Retry attempts by error class
//   - sherpa_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - sherpa_retry_exhausted_total{error_class} (Counter): Operations that exhausted max retries
//
// Replication Metrics (pkg/pagination):
//   - sherpa_pages_fetched_total{collection} (Counter): Pages fetched by collection
//   - sherpa_records_emitted_total{collection} (Counter): Records emitted by collection
//   - sherpa_items_skipped_total{collection} (Counter): Malformed items skipped by collection
//   - sherpa_runs_total{collection, termination} (Counter): Replication runs by termination reason
//   - sherpa_cursor_position{collection} (Gauge): Last persisted cursor by collection
//   - sherpa_fanout_keys_total{collection} (Counter): Distinct child keys handed to fan-out
//
// State Metrics (pkg/state):
//   - sherpa_bookmark_reads_total{backend} (Counter): Bookmark loads by backend
//   - sherpa_bookmark_misses_total (Counter): Bookmark loads finding no stored bookmark
//   - sherpa_bookmark_writes_total{backend} (Counter): Bookmark writes by backend
//   - sherpa_state_errors_total{operation} (Counter): Bookmark store failures by operation
//
// Example Prometheus Queries:
//
//   # Records per second by collection
//   rate(sherpa_records_emitted_total[5m])
//
//   # Request Error Rate
//   rate(sherpa_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(sherpa_request_duration_seconds_bucket[5m]))
//
//   # Runs that stopped for a reason other than catching up
//   sum(rate(sherpa_runs_total{termination!="exhausted"}[30m])) by (collection, termination)
//
//   # Cursor progression per collection
//   sherpa_cursor_position
