package qase

// Package qase is a small client for the Qase REST API v1, covering the
// calls the reporter needs: case listing, runs, results and attachments.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.qase.io/v1"

	tokenHeader     = "Token"
	requestIDHeader = "X-Request-Id"
)

// Metrics observes every API call.
type Metrics interface {
	RecordRequest(endpoint string, code int, d time.Duration)
}

// Client talks to one Qase project.
type Client struct {
	logger  zerolog.Logger
	http    *retryablehttp.Client
	limiter *rate.Limiter
	metrics Metrics
	baseURL string
	token   string
	project string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithRateLimit limits the client to rps requests per second.
// A non-positive rps removes the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryMax sets how many times a failed request is retried.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		c.http.RetryMax = n
	}
}

// WithRetryWait sets the retry backoff bounds.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = minWait
		c.http.RetryWaitMax = maxWait
	}
}

// WithMetrics records every request.
func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client authenticated with token for the project code.
func NewClient(logger zerolog.Logger, token, projectCode string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.Logger = leveledLogger{logger: logger}
	rc.RetryMax = 3
	rc.CheckRetry = checkRetry
	rc.HTTPClient.Timeout = 60 * time.Second

	c := &Client{
		logger:  logger,
		http:    rc,
		limiter: rate.NewLimiter(rate.Inf, 0),
		baseURL: DefaultBaseURL,
		token:   token,
		project: projectCode,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type methodKey struct{}

// checkRetry keeps the default policy for reads. Writes are repeated only
// when the server never processed them: a 429 or a failed dial.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	method, _ := ctx.Value(methodKey{}).(string)
	if method == "" || method == http.MethodGet || method == http.MethodHead {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return notSent(err), nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// notSent reports whether err happened before the request left the client.
func notSent(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// Project returns the project code the client reports to.
func (c *Client) Project() string {
	return c.project
}

// envelope wraps every Qase v1 response
type envelope struct {
	Status       bool            `json:"status"`
	Result       json.RawMessage `json:"result"`
	ErrorMessage string          `json:"errorMessage"`
	ErrorFields  []struct {
		Field string `json:"field"`
		Error string `json:"error"`
	} `json:"errorFields"`
}

// APIError is returned when Qase rejects a request.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("qase api %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("qase api %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

type request struct {
	method string
	// Path below the base URL, endpoint label for metrics
	path     string
	endpoint string
	query    url.Values
	body     []byte
	// Content type of body, JSON when empty
	contentType string
}

func (c *Client) jsonRequest(method, endpoint, path string, payload any) (request, error) {
	req := request{method: method, endpoint: endpoint, path: path}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return request{}, fmt.Errorf("failed to encode %s payload: %w", endpoint, err)
		}
		req.body = body
	}
	return req, nil
}

// do sends r and decodes the result field into out.
func (c *Client) do(ctx context.Context, r request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := retryablehttp.NewRequestWithContext(context.WithValue(ctx, methodKey{}, r.method), r.method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(tokenHeader, c.token)
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		ct := r.contentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}

	logger := c.logger.With().Str("method", r.method).Str("path", r.path).Str("request_id", requestID).Logger()
	logger.Debug().Msg("Sending Qase API request")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.record(r.endpoint, 0, time.Since(start))
		return fmt.Errorf("qase api %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()
	c.record(r.endpoint, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response of %s %s: %w", r.method, r.path, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		return fmt.Errorf("failed to decode response of %s %s: %w", r.method, r.path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		msg := env.ErrorMessage
		for _, f := range env.ErrorFields {
			msg += fmt.Sprintf("; %s: %s", f.Field, f.Error)
		}
		return &APIError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode, Message: msg}
	}

	logger.Debug().Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("Qase API request done")

	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to decode result of %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func (c *Client) record(endpoint string, code int, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordRequest(endpoint, code, d)
	}
}

// leveledLogger routes retryablehttp logs through zerolog
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Info is demoted to debug, retryablehttp is chatty
func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}
