// Package client implements the Sherpa SOAP client: request envelopes,
// response decoding into generic mappings, error classification, and a
// bounded retry policy.
//
// A Call performs exactly one HTTP exchange. Callers that want retries wrap
// Call with a RetryPolicy, which retries transient failures and gives up on
// auth and fatal ones.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for Sherpa requests.
var (
	sherpaRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sherpa_requests_total",
		Help: "Total number of Sherpa requests by service and outcome",
	}, []string{"service", "status"})

	sherpaRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sherpa_request_duration_seconds",
		Help:    "Sherpa request duration in seconds by service",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"service"})

	sherpaErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sherpa_errors_total",
		Help: "Total number of Sherpa errors by error class",
	}, []string{"error_class"})
)

// Environment selects the Sherpa service host.
type Environment string

const (
	// EnvProduction targets the production Sherpa cloud.
	EnvProduction Environment = "production"

	// EnvTest targets the Sherpa test cloud.
	EnvTest Environment = "test"
)

const (
	productionBaseURL = "https://sherpaservices-prd.sherpacloud.eu"
	testBaseURL       = "https://sherpaservices-tst.sherpacloud.eu"

	soapContentType = "application/soap+xml; charset=utf-8"
)

// Config holds the client configuration.
type Config struct {
	// ShopID identifies the shop and becomes part of the endpoint path
	// (required).
	ShopID string

	// SecurityCode authenticates every call. It is injected as the
	// first parameter of each request (required).
	SecurityCode string

	// Environment selects the service host. Defaults to EnvProduction.
	Environment Environment

	// BaseURL overrides the environment-derived host when set. Useful
	// for tests and proxies.
	BaseURL string

	// Timeout bounds each HTTP exchange. Defaults to 30s.
	Timeout time.Duration

	// CastValues enables typed decoding of scalar response values.
	// The default leaves every scalar a string, matching the service's
	// declared field types.
	CastValues bool

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a production configuration for a shop.
func DefaultConfig(shopID, securityCode string) Config {
	return Config{
		ShopID:       shopID,
		SecurityCode: securityCode,
		Environment:  EnvProduction,
		Timeout:      30 * time.Second,
	}
}

// Client is a Sherpa SOAP client bound to one shop.
type Client struct {
	httpClient   *http.Client
	endpoint     string
	securityCode string
	castValues   bool
	logger       zerolog.Logger
}

// New creates a new Sherpa client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.ShopID == "" {
		return nil, fmt.Errorf("shop ID is required")
	}
	if cfg.SecurityCode == "" {
		return nil, fmt.Errorf("security code is required")
	}

	base := cfg.BaseURL
	if base == "" {
		switch cfg.Environment {
		case EnvProduction, "":
			base = productionBaseURL
		case EnvTest:
			base = testBaseURL
		default:
			return nil, fmt.Errorf("unknown environment %q", cfg.Environment)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "sherpa-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		endpoint:     strings.TrimRight(base, "/") + "/" + cfg.ShopID + "/Sherpa.asmx",
		securityCode: cfg.SecurityCode,
		castValues:   cfg.CastValues,
		logger:       logger,
	}, nil
}

// Endpoint returns the resolved service URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SetHTTPClient replaces the underlying HTTP client (for testing).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Call performs one service call and returns the decoded result mapping.
// It makes a single attempt; failures come back as *ServiceError with the
// class that tells the caller whether retrying makes sense.
func (c *Client) Call(ctx context.Context, req Request) (map[string]any, error) {
	start := time.Now()
	defer func() {
		sherpaRequestDuration.WithLabelValues(req.Service).Observe(time.Since(start).Seconds())
	}()

	envelope := buildEnvelope(c.securityCode, req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", soapContentType)
	httpReq.Header.Set("SOAPAction", soapAction(req.Service))

	c.logger.Debug().
		Str("service", req.Service).
		Msg("Calling Sherpa service")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		sherpaRequestsTotal.WithLabelValues(req.Service, "network_error").Inc()
		sherpaErrorsTotal.WithLabelValues(string(ErrorClassTransient)).Inc()
		c.logger.Error().
			Err(err).
			Str("service", req.Service).
			Msg("HTTP request failed")
		return nil, &ServiceError{
			Service: req.Service,
			Class:   ErrorClassTransient,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		sherpaRequestsTotal.WithLabelValues(req.Service, "read_error").Inc()
		sherpaErrorsTotal.WithLabelValues(string(ErrorClassTransient)).Inc()
		return nil, &ServiceError{
			Service:    req.Service,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassTransient,
			Message:    "read response body",
			Err:        err,
		}
	}

	sherpaRequestsTotal.WithLabelValues(req.Service, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		svcErr := c.statusError(req.Service, resp.StatusCode, body)
		sherpaErrorsTotal.WithLabelValues(string(svcErr.Class)).Inc()
		c.logger.Warn().
			Str("service", req.Service).
			Int("status", resp.StatusCode).
			Str("error_class", string(svcErr.Class)).
			Str("message", svcErr.Message).
			Msg("Sherpa request failed")
		return nil, svcErr
	}

	result, err := decodeResponse(req.Service, body, c.castValues)
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			// SOAP fault delivered with a 200 status.
			sherpaErrorsTotal.WithLabelValues(string(svcErr.Class)).Inc()
			c.logger.Warn().
				Str("service", req.Service).
				Str("error_class", string(svcErr.Class)).
				Str("fault", svcErr.Message).
				Msg("Sherpa call returned a fault")
			return nil, svcErr
		}

		sherpaErrorsTotal.WithLabelValues(string(ErrorClassFatal)).Inc()
		c.logger.Error().
			Err(err).
			Str("service", req.Service).
			Msg("Failed to decode Sherpa response")
		return nil, &ServiceError{
			Service:    req.Service,
			StatusCode: resp.StatusCode,
			Class:      ErrorClassFatal,
			Message:    "malformed response",
			Err:        err,
		}
	}

	c.logger.Debug().
		Str("service", req.Service).
		Dur("duration", time.Since(start)).
		Msg("Sherpa call completed")

	return result, nil
}

// statusError classifies a non-200 response. ASMX services report faults
// with a 500 status, so 5xx bodies are inspected: a credential fault
// classifies as auth, everything else stays transient.
func (c *Client) statusError(service string, status int, body []byte) *ServiceError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ServiceError{
			Service:    service,
			StatusCode: status,
			Class:      ErrorClassAuth,
			Message:    http.StatusText(status),
		}
	case status >= 500 || status == http.StatusTooManyRequests:
		if fault := parseFault(service, body); fault != nil {
			fault.StatusCode = status
			if fault.Class == ErrorClassFatal {
				// A server-side fault that is not about
				// credentials may still clear up.
				fault.Class = ErrorClassTransient
			}
			return fault
		}
		return &ServiceError{
			Service:    service,
			StatusCode: status,
			Class:      ErrorClassTransient,
			Message:    http.StatusText(status),
		}
	default:
		return &ServiceError{
			Service:    service,
			StatusCode: status,
			Class:      ErrorClassFatal,
			Message:    http.StatusText(status),
		}
	}
}
