package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/XAbade/tap-sherpaan/internal/testutil"
	"github.com/XAbade/tap-sherpaan/pkg/client"
	"github.com/XAbade/tap-sherpaan/pkg/normalize"
	"github.com/XAbade/tap-sherpaan/pkg/pagination"
	"github.com/XAbade/tap-sherpaan/pkg/state"
	"github.com/XAbade/tap-sherpaan/pkg/streams"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newTestClient(t *testing.T, mock *testutil.MockSherpa) *client.Client {
	t.Helper()

	c, err := client.New(client.Config{
		ShopID:       "testshop",
		SecurityCode: "secret",
		BaseURL:      mock.URL(),
		Timeout:      5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func fastRetry() client.RetryPolicy {
	return client.RetryPolicy{
		MaxAttempts: 3,
		WaitMin:     10 * time.Millisecond,
		WaitMax:     20 * time.Millisecond,
	}
}

func collect(t *testing.T, driver *pagination.Driver) ([]normalize.Record, error) {
	t.Helper()

	var records []normalize.Record
	for record, err := range driver.Records(context.Background()) {
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

// TestFullSyncWithRedisState replicates a collection end-to-end against the
// mock SOAP server with Redis-backed bookmarks.
func TestFullSyncWithRedisState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockSherpa()
	defer mock.Close()

	mock.AddPage("ChangedStock", 1, testutil.StockPage(2, 5, 7))
	mock.AddPage("ChangedStock", 7, testutil.StockPage(2, 9))

	def, _ := streams.Get("changed_stock")
	store := state.NewRedisStore(redisClient, "inttest")

	cfg := def.DriverConfig(newTestClient(t, mock), store)
	cfg.Retry = fastRetry()

	driver, err := pagination.NewDriver(cfg)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	records, err := collect(t, driver)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Records = %d, want 3", len(records))
	}
	if got := records[2]["ItemCode"]; got != "SKU-9" {
		t.Errorf("Last record ItemCode = %v, want SKU-9", got)
	}

	bm, err := store.Get(context.Background(), "changed_stock")
	if err != nil {
		t.Fatalf("Bookmark read failed: %v", err)
	}
	if bm.Cursor != 9 {
		t.Errorf("Persisted cursor = %d, want 9", bm.Cursor)
	}
	if bm.LastSync.IsZero() {
		t.Error("Bookmark LastSync is zero")
	}
}

// TestCrashResume simulates a process restart: a fresh driver against the
// same Redis state picks up where the previous run stopped.
func TestCrashResume(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockSherpa()
	defer mock.Close()

	mock.AddPage("ChangedStock", 1, testutil.StockPage(2, 5, 7))

	def, _ := streams.Get("changed_stock")
	store := state.NewRedisStore(redisClient, "inttest")
	c := newTestClient(t, mock)

	cfg := def.DriverConfig(c, store)
	cfg.Retry = fastRetry()

	driver, err := pagination.NewDriver(cfg)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	records, err := collect(t, driver)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("First run records = %d, want 2", len(records))
	}

	// New changes arrive while the process is down.
	mock.AddPage("ChangedStock", 7, testutil.StockPage(2, 12))

	cfg2 := def.DriverConfig(c, store)
	cfg2.Retry = fastRetry()
	driver2, err := pagination.NewDriver(cfg2)
	if err != nil {
		t.Fatalf("Failed to create second driver: %v", err)
	}
	records2, err := collect(t, driver2)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	// Only the new change is delivered again; nothing before cursor 7.
	if len(records2) != 1 {
		t.Fatalf("Second run records = %d, want 1", len(records2))
	}
	if got := records2[0]["ItemCode"]; got != "SKU-12" {
		t.Errorf("Resumed record ItemCode = %v, want SKU-12", got)
	}

	bm, err := store.Get(context.Background(), "changed_stock")
	if err != nil {
		t.Fatalf("Bookmark read failed: %v", err)
	}
	if bm.Cursor != 12 {
		t.Errorf("Persisted cursor = %d, want 12", bm.Cursor)
	}
}

// TestRetryTransientFailures verifies that server faults are retried and
// the page still lands.
func TestRetryTransientFailures(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockSherpa()
	defer mock.Close()

	mock.FailNext("ChangedStock", 2)
	mock.AddPage("ChangedStock", 1, testutil.StockPage(2, 3))

	def, _ := streams.Get("changed_stock")
	store := state.NewRedisStore(redisClient, "inttest")

	backoffs := 0
	retry := fastRetry()
	retry.OnBackoff = func(time.Duration) { backoffs++ }

	cfg := def.DriverConfig(newTestClient(t, mock), store)
	cfg.Retry = retry

	driver, err := pagination.NewDriver(cfg)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	records, err := collect(t, driver)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if len(records) != 1 {
		t.Errorf("Records = %d, want 1", len(records))
	}
	if backoffs != 2 {
		t.Errorf("Backoff waits = %d, want 2", backoffs)
	}
	// 2 failures + 1 success on the first page, plus the exhaustion fetch.
	if got := mock.CallCount("ChangedStock"); got != 4 {
		t.Errorf("ChangedStock calls = %d, want 4", got)
	}
}

// TestAuthFailureNotRetried verifies a rejected security code aborts the
// run on the first attempt and leaves no bookmark behind.
func TestAuthFailureNotRetried(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockSherpa()
	defer mock.Close()

	mock.SetHandler("ChangedStock", testutil.AuthFaultHandler())

	def, _ := streams.Get("changed_stock")
	store := state.NewRedisStore(redisClient, "inttest")

	cfg := def.DriverConfig(newTestClient(t, mock), store)
	cfg.Retry = fastRetry()

	driver, err := pagination.NewDriver(cfg)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	_, err = collect(t, driver)
	if err == nil {
		t.Fatal("Expected auth failure, got none")
	}
	if client.Classify(err) != client.ErrorClassAuth {
		t.Errorf("Error class = %v, want auth: %v", client.Classify(err), err)
	}
	if got := mock.CallCount("ChangedStock"); got != 1 {
		t.Errorf("ChangedStock calls = %d, want 1 (no retries)", got)
	}

	if _, err := store.Get(context.Background(), "changed_stock"); !errors.Is(err, state.ErrNoBookmark) {
		t.Errorf("Bookmark after failed run = %v, want ErrNoBookmark", err)
	}
}
