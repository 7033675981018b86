package pagination

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/XAbade/tap-sherpaan/pkg/client"
	"github.com/XAbade/tap-sherpaan/pkg/normalize"
	"github.com/XAbade/tap-sherpaan/pkg/state"
)

// ErrMalformedResponse indicates a page whose item container is neither a
// list, a mapping, nor empty. The run stops rather than guess.
var ErrMalformedResponse = errors.New("malformed response")

// Fetcher fetches one page of a collection starting at a cursor.
type Fetcher interface {
	FetchPage(ctx context.Context, cursor int64, pageSize int) (map[string]any, error)
}

// TerminationReason says why a replication run stopped.
type TerminationReason string

const (
	// TerminationExhausted means a page came back with no items.
	TerminationExhausted TerminationReason = "exhausted"

	// TerminationNoProgress means a non-empty page failed to advance the
	// cursor. Its records were emitted, but the cursor was not persisted.
	TerminationNoProgress TerminationReason = "no_progress"

	// TerminationCancelled means the context was cancelled at a page
	// boundary or during a retry wait.
	TerminationCancelled TerminationReason = "cancelled"

	// TerminationError means a fetch, decode, or state write failed.
	TerminationError TerminationReason = "error"

	// TerminationConsumer means the consumer stopped iterating mid-run.
	TerminationConsumer TerminationReason = "consumer_stop"
)

// Stats summarizes the most recent Records run.
type Stats struct {
	Pages       int64
	Records     int64
	Skipped     int64
	Filtered    int64
	FanOutKeys  int64
	FinalCursor int64
	Termination TerminationReason
}

// Config holds the driver configuration for one collection.
type Config struct {
	// Collection names the stream. It keys the bookmark and labels logs
	// and metrics (required).
	Collection string

	// Fetcher performs one page fetch. Every call is wrapped in Retry
	// (required).
	Fetcher Fetcher

	// Store persists the cursor between pages (required).
	Store state.Store

	// ContainerPath locates the item container inside a page, e.g.
	// ["ResponseValue", "ItemStockToken"]. A missing or empty container
	// means the collection is exhausted (required).
	ContainerPath []string

	// Unwrap lifts the named wrapper's fields into each record during
	// normalization. Empty means no unwrapping.
	Unwrap string

	// PageSize is passed through to the fetcher. Defaults to 200.
	PageSize int

	// StartCursor is where replication begins when no bookmark exists.
	// Defaults to 1.
	StartCursor int64

	// Filter drops records before they are emitted. A dropped record
	// still advances the cursor. Optional.
	Filter func(normalize.Record) bool

	// FanOutKey extracts a child-collection key from an emitted record.
	// Optional.
	FanOutKey func(normalize.Record) (string, bool)

	// OnFanOut receives each distinct child key exactly once per run.
	// Requires FanOutKey.
	OnFanOut func(key string)

	// Retry wraps each page fetch. The zero value uses the default
	// policy (3 attempts, 4s-10s backoff).
	Retry client.RetryPolicy

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// Driver replicates one collection in token order. Not safe for concurrent
// use; run one Records traversal at a time.
type Driver struct {
	cfg     Config
	logger  zerolog.Logger
	emitter *KeyEmitter
	stats   Stats
}

// NewDriver creates a replication driver for one collection.
func NewDriver(cfg Config) (*Driver, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if len(cfg.ContainerPath) == 0 {
		return nil, fmt.Errorf("container path is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.StartCursor <= 0 {
		cfg.StartCursor = 1
	}

	logger := log.With().
		Str("component", "pagination").
		Str("collection", cfg.Collection).
		Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("collection", cfg.Collection).Logger()
	}

	return &Driver{
		cfg:     cfg,
		logger:  logger,
		emitter: NewKeyEmitter(),
	}, nil
}

// Stats returns the counters of the most recent Records run.
func (d *Driver) Stats() Stats {
	return d.stats
}

// Records iterates the collection from its bookmark, page by page, until it
// is exhausted. Each advancing page is persisted before the next fetch. A
// failure is yielded as the final pair and ends the sequence.
func (d *Driver) Records(ctx context.Context) iter.Seq2[normalize.Record, error] {
	return func(yield func(normalize.Record, error) bool) {
		start := time.Now()
		d.stats = Stats{}
		d.emitter.Reset()

		cursor, err := d.loadCursor(ctx)
		if err != nil {
			d.finish(TerminationError, start)
			yield(nil, fmt.Errorf("load bookmark: %w", err))
			return
		}
		d.stats.FinalCursor = cursor

		d.logger.Info().
			Int64("cursor", cursor).
			Int("page_size", d.cfg.PageSize).
			Msg("Starting replication run")

		var processed int64
		for {
			// Cancellation is only honored between pages.
			if ctx.Err() != nil {
				d.finish(TerminationCancelled, start)
				yield(nil, fmt.Errorf("%w: %v", client.ErrContextCancelled, ctx.Err()))
				return
			}

			page, err := d.fetchPage(ctx, cursor)
			if err != nil {
				d.finish(TerminationError, start)
				yield(nil, fmt.Errorf("fetch page at cursor %d: %w", cursor, err))
				return
			}
			d.stats.Pages++
			sherpaPagesFetchedTotal.WithLabelValues(d.cfg.Collection).Inc()

			items, responseTime, err := resolveContainer(page, d.cfg.ContainerPath)
			if err != nil {
				d.finish(TerminationError, start)
				yield(nil, err)
				return
			}
			if len(items) == 0 {
				d.finish(TerminationExhausted, start)
				return
			}

			maxToken := cursor
			for _, raw := range items {
				item, ok := raw.(map[string]any)
				if !ok {
					d.skipItem(cursor, fmt.Errorf("item is %T, not a mapping", raw))
					continue
				}

				record, err := normalize.Normalize(item, normalize.Options{UnwrapKey: d.cfg.Unwrap})
				if err != nil {
					d.skipItem(cursor, err)
					continue
				}

				if token := ParseToken(item["Token"]); token > maxToken {
					maxToken = token
				}

				record["response_time"] = responseTime

				if d.cfg.Filter != nil && !d.cfg.Filter(record) {
					d.stats.Filtered++
					continue
				}

				d.observeFanOut(record)

				if !yield(record, nil) {
					d.finish(TerminationConsumer, start)
					return
				}
				d.stats.Records++
				processed++
				sherpaRecordsEmittedTotal.WithLabelValues(d.cfg.Collection).Inc()
			}

			if maxToken <= cursor {
				d.logger.Warn().
					Int64("cursor", cursor).
					Int("items", len(items)).
					Msg("Page made no token progress, stopping")
				d.finish(TerminationNoProgress, start)
				return
			}

			cursor = maxToken
			d.stats.FinalCursor = cursor

			if err := d.cfg.Store.Put(ctx, d.cfg.Collection, state.Bookmark{
				Cursor:           cursor,
				LastSync:         time.Now().UTC(),
				RecordsProcessed: processed,
			}); err != nil {
				d.finish(TerminationError, start)
				yield(nil, fmt.Errorf("persist bookmark at cursor %d: %w", cursor, err))
				return
			}
			sherpaCursorPosition.WithLabelValues(d.cfg.Collection).Set(float64(cursor))

			d.logger.Debug().
				Int64("cursor", cursor).
				Int("items", len(items)).
				Msg("Page complete, cursor persisted")
		}
	}
}

// loadCursor returns the persisted cursor, falling back to StartCursor on
// the first run.
func (d *Driver) loadCursor(ctx context.Context) (int64, error) {
	bm, err := d.cfg.Store.Get(ctx, d.cfg.Collection)
	switch {
	case err == nil:
		return bm.Cursor, nil
	case errors.Is(err, state.ErrNoBookmark):
		return d.cfg.StartCursor, nil
	default:
		return 0, err
	}
}

// fetchPage performs one page fetch under the retry policy.
func (d *Driver) fetchPage(ctx context.Context, cursor int64) (map[string]any, error) {
	var page map[string]any
	err := d.cfg.Retry.Do(ctx, func() error {
		var fetchErr error
		page, fetchErr = d.cfg.Fetcher.FetchPage(ctx, cursor, d.cfg.PageSize)
		return fetchErr
	})
	return page, err
}

func (d *Driver) skipItem(cursor int64, err error) {
	d.stats.Skipped++
	sherpaItemsSkippedTotal.WithLabelValues(d.cfg.Collection).Inc()
	d.logger.Error().
		Err(err).
		Int64("cursor", cursor).
		Msg("Skipping malformed item")
}

func (d *Driver) observeFanOut(record normalize.Record) {
	if d.cfg.FanOutKey == nil {
		return
	}
	key, ok := d.cfg.FanOutKey(record)
	if !ok || key == "" {
		return
	}
	if !d.emitter.Observe(key) {
		return
	}
	d.stats.FanOutKeys++
	sherpaFanOutKeysTotal.WithLabelValues(d.cfg.Collection).Inc()
	if d.cfg.OnFanOut != nil {
		d.cfg.OnFanOut(key)
	}
}

func (d *Driver) finish(reason TerminationReason, start time.Time) {
	d.stats.Termination = reason
	sherpaRunsTotal.WithLabelValues(d.cfg.Collection, string(reason)).Inc()
	d.logger.Info().
		Str("termination", string(reason)).
		Int64("pages", d.stats.Pages).
		Int64("records", d.stats.Records).
		Int64("skipped", d.stats.Skipped).
		Int64("cursor", d.stats.FinalCursor).
		Dur("duration", time.Since(start)).
		Msg("Replication run finished")
}

// resolveContainer walks path inside a page and returns the item list plus
// the page's ResponseTime. A missing container or an empty value at the end
// of the path resolves to no items. A single mapping counts as a one-item
// list, the way a one-element XML sequence decodes. Anything else at the
// end of the path is malformed.
func resolveContainer(page map[string]any, path []string) ([]any, int64, error) {
	responseTime := ParseToken(page["ResponseTime"])

	current := any(page)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, responseTime, nil
		}
		v, ok := m[key]
		if !ok || v == nil {
			return nil, responseTime, nil
		}
		current = v
	}

	switch items := current.(type) {
	case []any:
		return items, responseTime, nil
	case map[string]any:
		return []any{items}, responseTime, nil
	case string:
		if strings.TrimSpace(items) == "" {
			return nil, responseTime, nil
		}
		return nil, responseTime, fmt.Errorf("%w: container %s is a scalar", ErrMalformedResponse, strings.Join(path, "."))
	default:
		return nil, responseTime, fmt.Errorf("%w: container %s has type %T", ErrMalformedResponse, strings.Join(path, "."), current)
	}
}
