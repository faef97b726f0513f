// Package apiclient talks to the employee API over HTTP: bearer
// authentication, retries of idempotent calls and a circuit breaker.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"

	"github.com/odyssey-erp/employee-console/internal/shared"
)

const maxBodyBytes = 4 << 20

// Observer receives one event per HTTP attempt.
type Observer interface {
	ObserveAPICall(method, route string, status int, elapsed time.Duration)
}

// Config controls the transport.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RetryMax        int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = 200 * time.Millisecond
	}
	if c.RetryWaitMax <= 0 {
		c.RetryWaitMax = 2 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	return c
}

// Client is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	auth    *authTransport
	logger  *slog.Logger
}

// Option customises a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger   *slog.Logger
	observer Observer
	base     http.RoundTripper
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithObserver sets the per-attempt metrics observer.
func WithObserver(observer Observer) Option {
	return func(o *clientOptions) { o.observer = observer }
}

// WithBaseTransport replaces the underlying RoundTripper.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.base = rt }
}

// New builds a Client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base url %q", cfg.BaseURL)
	}

	options := clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = nil
	retryClient.CheckRetry = checkRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	next := options.base
	if next == nil {
		next = retryClient.HTTPClient.Transport
	}
	auth := &authTransport{next: next, logger: options.logger, observer: options.observer}
	retryClient.HTTPClient.Transport = auth

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "employee-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			options.logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: base,
		http:    retryClient.StandardClient(),
		breaker: breaker,
		auth:    auth,
		logger:  options.logger,
	}, nil
}

// SetTokenSource registers the function consulted for the bearer token.
func (c *Client) SetTokenSource(source func() string) {
	c.auth.setSource(source)
}

// OnUnauthorized registers fn to run whenever a request that carried a
// bearer token is answered with 401.
func (c *Client) OnUnauthorized(fn func(ctx context.Context)) {
	if fn != nil {
		c.auth.addListener(fn)
	}
}

// BreakerState exposes the breaker state for health reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// checkRetry retries transport errors and 5xx/429 answers, but only for
// idempotent methods.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if !callFrom(ctx).idempotent {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// breakerSuccess counts only unreachable API and 5xx answers as failures.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status < http.StatusInternalServerError
	}
	return false
}

type response struct {
	status int
	body   []byte
}

// do performs one logical call. Non-2xx answers come back as *StatusError.
func (c *Client) do(ctx context.Context, cl call, method, path string, in any) (*response, error) {
	var body []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode %s %s: %w", method, cl.route, err)
		}
		body = encoded
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(withCall(ctx, cl), method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", shared.ErrUnavailable)
		}
		return nil, err
	}
	return result.(*response), nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*response, error) {
	target := c.baseURL.JoinPath(path)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %v", shared.ErrUnavailable, method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Message: messageFromBody(data)}
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

func decode(resp *response, out any) error {
	if len(bytes.TrimSpace(resp.body)) == 0 {
		return fmt.Errorf("%w: empty body", shared.ErrMalformedResponse)
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}
	return nil
}
