package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/nucleus/pm-sync/internal/logging"
	"github.com/nucleus/pm-sync/internal/metrics"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// DefaultRetryAfter is used when a 429 response carries no Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// ClientConfig configures the HTTP client behavior.
type ClientConfig struct {
	// Name labels logs, metrics and the circuit breaker (e.g. "github:svc-1").
	Name string

	// BaseURL is prefixed to every relative request path.
	BaseURL string

	// Auth configures authentication.
	Auth AuthConfig

	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// RetryAttempts is the total number of attempts for failing requests (default: 3).
	RetryAttempts int

	// RequestsPerMinute caps the sliding one-minute window. Zero disables.
	RequestsPerMinute int

	// RequestsPerHour caps the sliding one-hour window. Zero disables.
	RequestsPerHour int

	// RateLimit smooths bursts in requests per second. Zero disables.
	RateLimit float64

	// RateBurst is the token bucket size used with RateLimit (default: 5).
	RateBurst int

	// MaxRateLimitWaits bounds consecutive 429 waits before giving up (default: 5).
	MaxRateLimitWaits int

	// Breaker configures the circuit breaker. Nil uses DefaultBreakerConfig.
	Breaker *BreakerConfig

	// Headers to add to all requests.
	Headers map[string]string

	// UserAgent string (default: "pm-sync/1.0").
	UserAgent string

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper

	// Clock overrides time for the request window and backoff.
	Clock Clock
}

// DefaultClientConfig returns a client config with sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:           30 * time.Second,
		RetryAttempts:     3,
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
		RateBurst:         5,
		MaxRateLimitWaits: 5,
		UserAgent:         "pm-sync/1.0",
		Headers:           make(map[string]string),
	}
}

// =============================================================================
// HTTP CLIENT
// =============================================================================

// Client is a rate-limited, retry-capable HTTP client.
type Client struct {
	config      *ClientConfig
	httpClient  *http.Client
	window      *requestWindow
	rateLimiter *rate.Limiter
	breaker     *breaker
	clock       Clock
	connected   atomic.Bool
}

// NewClient creates a new HTTP client. The client starts disconnected;
// adapters call SetConnected once their probe succeeds.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 5
	}
	if config.MaxRateLimitWaits <= 0 {
		config.MaxRateLimitWaits = 5
	}
	if config.UserAgent == "" {
		config.UserAgent = "pm-sync/1.0"
	}
	if config.Name == "" {
		config.Name = "http"
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		window: newRequestWindow(config.RequestsPerMinute, config.RequestsPerHour),
		clock:  config.Clock,
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	if config.RateLimit > 0 {
		c.rateLimiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	}
	bc := DefaultBreakerConfig()
	if config.Breaker != nil {
		bc = *config.Breaker
	}
	if !bc.Disabled {
		c.breaker = newBreaker(config.Name, bc)
	}
	return c
}

// Name returns the label used for logs and metrics.
func (c *Client) Name() string { return c.config.Name }

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.config.BaseURL }

// SetConnected marks the client usable (or not).
func (c *Client) SetConnected(connected bool) { c.connected.Store(connected) }

// IsConnected reports whether requests are allowed.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// AuthHeaders returns the headers the auth strategy sets on a request.
func (c *Client) AuthHeaders() map[string]string {
	req, _ := http.NewRequest(http.MethodGet, "http://localhost", nil)
	if c.config.Auth != nil {
		c.config.Auth.Apply(req)
	}
	headers := make(map[string]string, len(req.Header))
	for k := range req.Header {
		headers[k] = req.Header.Get(k)
	}
	return headers
}

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// Request represents an HTTP request to be made. Body is kept as bytes so it
// can be re-sent on retry.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
}

// Response wraps an HTTP response with convenience methods.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON unmarshals the response body into the given target.
func (r *Response) JSON(target any) error {
	if err := json.Unmarshal(r.Body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// =============================================================================
// CLIENT METHODS
// =============================================================================

// Do executes a request through the circuit breaker, the request window and
// the retry loop.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsConnected() {
		return nil, &ConnectionError{Client: c.config.Name, Message: "client is not connected"}
	}
	if c.breaker == nil {
		return c.execute(ctx, req)
	}
	return c.breaker.execute(func() (*Response, error) {
		return c.execute(ctx, req)
	})
}

// Probe executes a single request ignoring the connected flag. Adapters use
// it to verify reachability while connecting.
func (c *Client) Probe(ctx context.Context, path string) (*Response, error) {
	return c.execute(ctx, &Request{Method: http.MethodGet, Path: path})
}

func (c *Client) execute(ctx context.Context, req *Request) (*Response, error) {
	name := c.config.Name
	rateWaits := 0
	attempt := 0
	for {
		waited, err := c.window.reserve(ctx, c.clock, name)
		if waited > 0 {
			metrics.RateLimitWait.WithLabelValues(name).Observe(waited.Seconds())
		}
		if err != nil {
			return nil, err
		}
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		resp, err := c.doOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.IsUnauthorized() {
				return nil, &AuthenticationError{Client: name, Message: httpErr.Message}
			}
			if httpErr.IsRateLimited() {
				rateWaits++
				if rateWaits > c.config.MaxRateLimitWaits {
					return nil, &RateLimitError{Client: name, Message: "backend kept returning 429", RetryAfter: httpErr.RetryAfter}
				}
				metrics.HTTPRetries.WithLabelValues(name, "rate_limited").Inc()
				logging.Warn().Str("client", name).Dur("retry_after", httpErr.RetryAfter).Msg("rate limited by backend, waiting")
				if err := c.clock.Sleep(ctx, httpErr.RetryAfter); err != nil {
					return nil, err
				}
				continue
			}
		}

		attempt++
		if attempt >= c.config.RetryAttempts {
			return nil, &RequestError{Method: req.Method, URL: c.resolve(req), Attempts: attempt, Err: err}
		}

		backoff := time.Duration(1<<uint(attempt-1)) * time.Second
		metrics.HTTPRetries.WithLabelValues(name, "backoff").Inc()
		logging.Warn().Err(err).Str("client", name).Int("attempt", attempt).Dur("backoff", backoff).Msg("request failed, retrying")
		if err := c.clock.Sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

// resolve builds the absolute URL for req.
func (c *Client) resolve(req *Request) string {
	fullURL := c.config.BaseURL
	if strings.HasPrefix(req.Path, "http://") || strings.HasPrefix(req.Path, "https://") {
		fullURL = req.Path
	} else if req.Path != "" {
		fullURL = strings.TrimSuffix(fullURL, "/") + "/" + strings.TrimPrefix(req.Path, "/")
	}
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + req.Query.Encode()
	}
	return fullURL
}

// doOnce executes a single request attempt.
func (c *Client) doOnce(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if c.config.Auth != nil {
		c.config.Auth.Apply(httpReq)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	metrics.HTTPRequestDuration.WithLabelValues(c.config.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HTTPRequests.WithLabelValues(c.config.Name, "error").Inc()
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	metrics.HTTPRequests.WithLabelValues(c.config.Name, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	if resp.StatusCode >= 400 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Message: string(data)}
		if httpErr.IsRateLimited() {
			httpErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.clock.Now())
		}
		return response, httpErr
	}

	return response, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultRetryAfter
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := when.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultRetryAfter
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

// GetJSON performs a GET request and decodes the body into target.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, target any) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	return resp.JSON(target)
}

// Post performs a POST request with JSON body.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body any) (*Response, error) {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}

	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Query:  query,
		Body:   data,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	})
}

// PostJSON performs a POST request and decodes the body into target.
func (c *Client) PostJSON(ctx context.Context, path string, query url.Values, body, target any) error {
	resp, err := c.Post(ctx, path, query, body)
	if err != nil {
		return err
	}
	return resp.JSON(target)
}
