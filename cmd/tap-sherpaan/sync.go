package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/XAbade/tap-sherpaan/internal/config"
	"github.com/XAbade/tap-sherpaan/pkg/client"
	"github.com/XAbade/tap-sherpaan/pkg/logging"
	"github.com/XAbade/tap-sherpaan/pkg/normalize"
	"github.com/XAbade/tap-sherpaan/pkg/pagination"
	"github.com/XAbade/tap-sherpaan/pkg/state"
	"github.com/XAbade/tap-sherpaan/pkg/streams"
)

func newSyncCmd() *cobra.Command {
	var (
		configFile  string
		streamNames []string
		statePath   string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replicate the configured collections to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if len(streamNames) > 0 {
				cfg.Streams = streamNames
			}
			if statePath != "" {
				cfg.State.Backend = "file"
				cfg.State.Path = statePath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runSync(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	cmd.Flags().StringSliceVar(&streamNames, "streams", nil, "collections to sync (default: every paginated collection)")
	cmd.Flags().StringVar(&statePath, "state", "", "state file path (forces the file backend)")
	return cmd
}

// runSync replicates every selected collection concurrently, one goroutine
// per collection. Collections fail independently; the run reports every
// failure after all of them have finished.
func runSync(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logging.Setup(cfg.LoggingConfig())
	logger := logging.NewLogger("sync")

	selected, err := selectStreams(cfg.Streams)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no paginated collections selected")
	}

	c, err := client.New(cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	store, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = startMetricsServer(cfg.MetricsAddr, logger)
	}

	logger.Info().
		Str("endpoint", c.Endpoint()).
		Int("collections", len(selected)).
		Str("state_backend", cfg.State.Backend).
		Msg("Starting sync run")

	writer := &recordWriter{enc: json.NewEncoder(out)}
	retry := cfg.RetryPolicy()

	var wg sync.WaitGroup
	failures := make(chan error, len(selected))
	for _, def := range selected {
		wg.Add(1)
		go func(def streams.Definition) {
			defer wg.Done()
			if err := syncCollection(ctx, cfg, c, store, writer, retry, def); err != nil {
				logger.Error().
					Err(err).
					Str("collection", def.Name).
					Msg("Collection sync failed")
				failures <- fmt.Errorf("%s: %w", def.Name, err)
			}
		}(def)
	}
	wg.Wait()
	close(failures)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
	}

	var errs []error
	for err := range failures {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// syncCollection runs one collection's replication and, for collections
// with a fan-out edge, fetches the child detail records after the parent
// run finishes. Child keys are already deduplicated per run by the driver.
func syncCollection(ctx context.Context, cfg *config.Config, c *client.Client, store state.Store, w *recordWriter, retry client.RetryPolicy, def streams.Definition) error {
	dcfg := def.DriverConfig(c, store)
	dcfg.PageSize = cfg.PageSize
	dcfg.Retry = retry

	var (
		detail    *pagination.DetailDriver
		childKeys []string
	)
	if def.FanOut != nil {
		childDef, ok := streams.Get(def.FanOut.Child)
		if !ok {
			return fmt.Errorf("unknown child collection %q", def.FanOut.Child)
		}
		ccfg := childDef.DetailDriverConfig(c)
		ccfg.Retry = retry

		var err error
		detail, err = pagination.NewDetailDriver(ccfg)
		if err != nil {
			return err
		}
		dcfg.OnFanOut = func(key string) {
			childKeys = append(childKeys, key)
		}
	}

	driver, err := pagination.NewDriver(dcfg)
	if err != nil {
		return err
	}

	for record, err := range driver.Records(ctx) {
		if err != nil {
			return err
		}
		if err := w.Write(def.Name, record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	for _, key := range childKeys {
		records, err := detail.Fetch(ctx, key)
		if err != nil {
			return err
		}
		for _, record := range records {
			if err := w.Write(def.FanOut.Child, record); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}
	}

	return nil
}

// selectStreams resolves the configured stream names to paginated
// definitions. Detail collections are driven by their parent's fan-out and
// never sync on their own, so naming one selects nothing extra.
func selectStreams(names []string) ([]streams.Definition, error) {
	if len(names) == 0 {
		var defs []streams.Definition
		for _, def := range streams.All() {
			if !def.IsDetail() {
				defs = append(defs, def)
			}
		}
		return defs, nil
	}

	defs := make([]streams.Definition, 0, len(names))
	for _, name := range names {
		def, ok := streams.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown stream %q", name)
		}
		if def.IsDetail() {
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func newStore(ctx context.Context, cfg *config.Config) (state.Store, func(), error) {
	switch cfg.State.Backend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.State.RedisAddr,
			Password: cfg.State.RedisPassword,
			DB:       cfg.State.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.State.RedisAddr, err)
		}
		return state.NewRedisStore(redisClient, cfg.State.KeyPrefix), func() { redisClient.Close() }, nil
	default:
		return state.NewFileStore(cfg.State.Path), func() {}, nil
	}
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving /metrics and /health")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

// recordWriter serializes record output across collection goroutines.
// Records from different collections interleave, but every line is one
// complete JSON object.
type recordWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *recordWriter) Write(stream string, record normalize.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.enc.Encode(map[string]any{
		"stream": stream,
		"record": record,
	})
}
