// Package executor talks to the remote script executor and feeds its raw
// output through the analyzer.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucasnoah/scriptcheck/internal/logger"
)

// Errors for executor operations.
var (
	// ErrNotConfigured is returned when no executor address is set.
	ErrNotConfigured = errors.New("executor not configured")

	// ErrUnavailable is returned when the executor could not be reached
	// after all retries.
	ErrUnavailable = errors.New("executor unavailable")

	// ErrRejected is returned when the executor refuses a request.
	ErrRejected = errors.New("executor rejected request")
)

// Script is a unit of code to run remotely.
type Script struct {
	Code     string
	Language string
	// Timeout is the execution limit the executor should enforce. Zero lets
	// the executor choose.
	Timeout time.Duration
}

// RawResult is what the executor captured. A nil ExecutionTime means the
// executor killed the script at its time limit.
type RawResult struct {
	Output        string
	ExecutionTime *float64
}

// TimedOut reports whether the executor hit its time limit.
func (r RawResult) TimedOut() bool {
	return r.ExecutionTime == nil
}

// Executor runs scripts.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Execute must honor cancellation and deadlines.
// - Errors: transport failures are errors; a script timeout is a RawResult.
type Executor interface {
	Execute(ctx context.Context, s Script) (RawResult, error)
}

// HTTPDoer is the subset of *http.Client the client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the executor address, e.g. http://wine-box:5000. Required.
	BaseURL string

	// RequestTimeout bounds a single HTTP attempt. Execute extends it to the
	// script's own limit plus ScriptTimeoutMargin when that is longer.
	// Default: 60s.
	RequestTimeout time.Duration

	// MaxRetries is the number of extra attempts after the first. Negative
	// values are treated as zero.
	MaxRetries int

	// RetryDelay is the base delay between attempts; attempt n waits n*RetryDelay.
	// Default: 1s.
	RetryDelay time.Duration

	// HTTPClient overrides the HTTP client. Optional.
	HTTPClient HTTPDoer

	// Logger is an optional logger for transport events.
	Logger logger.Logger
}

// Client executes scripts on a remote executor over HTTP.
type Client struct {
	baseURL        string
	requestTimeout time.Duration
	maxRetries     int
	retryDelay     time.Duration
	http           HTTPDoer
	logger         logger.Logger
}

// NewClient creates a client. It returns ErrNotConfigured when BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	c := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		requestTimeout: cfg.RequestTimeout,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		http:           cfg.HTTPClient,
		logger:         cfg.Logger,
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = 60 * time.Second
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryDelay <= 0 {
		c.retryDelay = time.Second
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	return c, nil
}

// Endpoint returns the executor base URL.
func (c *Client) Endpoint() string {
	return c.baseURL
}

// executeRequest is the wire request to the executor.
type executeRequest struct {
	Code     string  `json:"code"`
	Language string  `json:"language,omitempty"`
	Timeout  float64 `json:"timeout,omitempty"`
}

// executeResponse is the wire response. execution_time is null on timeout.
type executeResponse struct {
	Output        string   `json:"output"`
	ExecutionTime *float64 `json:"execution_time"`
	Error         string   `json:"error,omitempty"`
}

// ScriptTimeoutMargin is added to a script's limit to cover executor startup
// and response time.
const ScriptTimeoutMargin = 10 * time.Second

// attemptTimeout bounds one execute attempt so a script may use its whole
// limit before the request is abandoned.
func (c *Client) attemptTimeout(s Script) time.Duration {
	if s.Timeout > 0 && s.Timeout+ScriptTimeoutMargin > c.requestTimeout {
		return s.Timeout + ScriptTimeoutMargin
	}
	return c.requestTimeout
}

// Execute sends the script to the executor, retrying connection failures and
// 5xx responses. An attempt that runs out of time is not retried since the
// script may already have run.
func (c *Client) Execute(ctx context.Context, s Script) (RawResult, error) {
	body, err := json.Marshal(executeRequest{
		Code:     s.Code,
		Language: s.Language,
		Timeout:  s.Timeout.Seconds(),
	})
	if err != nil {
		return RawResult{}, fmt.Errorf("encode request: %w", err)
	}

	timeout := c.attemptTimeout(s)
	var resp executeResponse
	if err := c.withRetry(ctx, "execute", func(ctx context.Context) error {
		return c.post(ctx, "/execute", timeout, body, &resp)
	}); err != nil {
		return RawResult{}, err
	}
	if resp.Error != "" {
		return RawResult{}, fmt.Errorf("%w: %s", ErrRejected, resp.Error)
	}

	return RawResult{Output: resp.Output, ExecutionTime: resp.ExecutionTime}, nil
}

// Health checks that the executor answers on /health.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("%w: health returned %s", ErrUnavailable, res.Status)
	}
	return nil
}

// retryableError marks failures worth another attempt.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.retryDelay
			c.logger.Warnf("%s attempt %d/%d failed: %v; retrying in %s", op, attempt, c.maxRetries+1, lastErr, delay)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		var retry *retryableError
		if !errors.As(err, &retry) {
			return err
		}
		lastErr = retry.err
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w after %d attempt(s): %v", ErrUnavailable, c.maxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, path string, timeout time.Duration, body []byte, out any) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return attemptError(ctx, attemptCtx, timeout, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return attemptError(ctx, attemptCtx, timeout, fmt.Errorf("read response: %w", err))
	}

	switch {
	case res.StatusCode >= 500:
		return &retryableError{err: fmt.Errorf("executor returned %s", res.Status)}
	case res.StatusCode >= 400:
		return fmt.Errorf("%w: %s: %s", ErrRejected, res.Status, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// attemptError classifies a failed attempt. Running out of the attempt's own
// time is final: the executor received the request and may still be running it.
func attemptError(parent, attempt context.Context, timeout time.Duration, err error) error {
	if parent.Err() == nil && errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: no response within %s: %v", ErrUnavailable, timeout, err)
	}
	return &retryableError{err: err}
}

var _ Executor = (*Client)(nil)
