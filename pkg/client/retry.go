package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry behavior.
var (
	sherpaRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sherpa_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	sherpaRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sherpa_retry_backoff_seconds",
		Help:    "Backoff duration in seconds before each retry",
		Buckets: []float64{0.5, 1, 2, 4, 8, 10, 30},
	}, []string{"error_class"})

	sherpaRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sherpa_retry_exhausted_total",
		Help: "Total number of operations that failed after all retry attempts",
	}, []string{"error_class"})
)

// RetryPolicy retries an operation with bounded exponential backoff. The
// wait before attempt n+1 is WaitMin doubled n-1 times, capped at WaitMax,
// with jitter. Only transient errors are retried; auth and fatal errors
// return immediately.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// WaitMin is the backoff before the first retry.
	WaitMin time.Duration

	// WaitMax caps every backoff wait.
	WaitMax time.Duration

	// OnBackoff, if set, is called with each wait duration before
	// sleeping. Used by tests and progress reporting.
	OnBackoff func(wait time.Duration)
}

// DefaultRetryPolicy returns the standard policy: 3 attempts with waits
// between 4 and 10 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		WaitMin:     4 * time.Second,
		WaitMax:     10 * time.Second,
	}
}

// Do executes fn, retrying transient failures until it succeeds, a
// non-retryable error occurs, the attempts run out, or ctx is cancelled
// during a wait. Exhaustion returns an error matching both
// ErrRetryExhausted and the last underlying error.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	waitMin := p.WaitMin
	if waitMin <= 0 {
		waitMin = 4 * time.Second
	}
	waitMax := p.WaitMax
	if waitMax < waitMin {
		waitMax = waitMin
	}

	var lastErr error
	backoff := waitMin

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err
		class := Classify(err)

		if !shouldRetry(class) {
			log.Debug().
				Str("error_class", string(class)).
				Err(err).
				Msg("Error is not retryable")
			return err
		}

		if attempt == maxAttempts {
			break
		}

		// Add jitter (±20%) to prevent thundering herd
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		if wait > waitMax {
			wait = waitMax
		}

		sherpaRetriesTotal.WithLabelValues(string(class)).Inc()
		sherpaRetryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", wait).
			Err(err).
			Msg("Retrying after backoff")

		if p.OnBackoff != nil {
			p.OnBackoff(wait)
		}

		select {
		case <-ctx.Done():
			log.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > waitMax {
			backoff = waitMax
		}
	}

	class := Classify(lastErr)
	sherpaRetryExhaustedTotal.WithLabelValues(string(class)).Inc()

	log.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", maxAttempts).
		Err(lastErr).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}
