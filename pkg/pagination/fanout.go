package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/XAbade/tap-sherpaan/pkg/client"
	"github.com/XAbade/tap-sherpaan/pkg/normalize"
)

// KeyEmitter deduplicates fan-out keys within one replication run. Two
// parent records naming the same child key produce a single fan-out, even
// across pages. Safe for concurrent use.
type KeyEmitter struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewKeyEmitter creates an empty emitter.
func NewKeyEmitter() *KeyEmitter {
	return &KeyEmitter{seen: make(map[string]struct{})}
}

// Observe marks key as seen and reports whether it was new.
func (e *KeyEmitter) Observe(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.seen[key]; ok {
		return false
	}
	e.seen[key] = struct{}{}
	return true
}

// Reset clears the seen set. The driver calls it at the start of every run;
// keys from earlier runs never suppress new fan-outs.
func (e *KeyEmitter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seen = make(map[string]struct{})
}

// Len returns the number of distinct keys observed since the last Reset.
func (e *KeyEmitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.seen)
}

// DetailFetcher fetches the detail payload for one child key.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, key string) (map[string]any, error)
}

// DetailConfig holds the configuration of a detail driver.
type DetailConfig struct {
	// Collection names the child stream (required).
	Collection string

	// Fetcher performs one detail fetch. Every call is wrapped in Retry
	// (required).
	Fetcher DetailFetcher

	// ContainerPath locates the detail payload inside a response, e.g.
	// ["ResponseValue"] (required).
	ContainerPath []string

	// Unwrap lifts the named wrapper's fields into each record during
	// normalization. Empty means no unwrapping.
	Unwrap string

	// Retry wraps each detail fetch. The zero value uses the default
	// policy.
	Retry client.RetryPolicy

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DetailDriver fetches and normalizes single-key detail records for child
// collections fed by a parent's fan-out keys. Detail fetches are not
// paginated and never touch the bookmark store.
type DetailDriver struct {
	cfg    DetailConfig
	logger zerolog.Logger
}

// NewDetailDriver creates a detail driver for one child collection.
func NewDetailDriver(cfg DetailConfig) (*DetailDriver, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if len(cfg.ContainerPath) == 0 {
		return nil, fmt.Errorf("container path is required")
	}

	logger := log.With().
		Str("component", "pagination").
		Str("collection", cfg.Collection).
		Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("collection", cfg.Collection).Logger()
	}

	return &DetailDriver{cfg: cfg, logger: logger}, nil
}

// Fetch returns the normalized records for one child key. Detail responses
// usually hold a single mapping, which yields one record; an empty
// container yields none.
func (d *DetailDriver) Fetch(ctx context.Context, key string) ([]normalize.Record, error) {
	var page map[string]any
	err := d.cfg.Retry.Do(ctx, func() error {
		var fetchErr error
		page, fetchErr = d.cfg.Fetcher.FetchDetail(ctx, key)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s %q: %w", d.cfg.Collection, key, err)
	}

	items, responseTime, err := resolveContainer(page, d.cfg.ContainerPath)
	if err != nil {
		return nil, err
	}

	records := make([]normalize.Record, 0, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			d.logger.Error().
				Str("key", key).
				Msgf("Skipping detail item of type %T", raw)
			continue
		}

		record, err := normalize.Normalize(item, normalize.Options{UnwrapKey: d.cfg.Unwrap})
		if err != nil {
			d.logger.Error().
				Err(err).
				Str("key", key).
				Msg("Skipping detail item that failed normalization")
			continue
		}
		record["response_time"] = responseTime
		records = append(records, record)
	}

	return records, nil
}
