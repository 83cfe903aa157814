package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) totalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}
	return total
}

type stubRoundTripper struct {
	handler http.Handler
}

func (rt *stubRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rr := httptest.NewRecorder()
	rt.handler.ServeHTTP(rr, req)
	res := rr.Result()
	res.Request = req
	return res, nil
}

func newTestClient(t *testing.T, clock *fakeClock, handler http.HandlerFunc, tune func(*ClientConfig)) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.Name = "test:" + t.Name()
	cfg.BaseURL = "http://stub.local/api"
	cfg.Transport = &stubRoundTripper{handler: handler}
	cfg.Clock = clock
	cfg.Breaker = &BreakerConfig{Disabled: true}
	if tune != nil {
		tune(cfg)
	}
	c := NewClient(cfg)
	c.SetConnected(true)
	return c
}

// =============================================================================
// TESTS
// =============================================================================

func TestClient_NotConnected(t *testing.T) {
	c := newTestClient(t, newFakeClock(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, nil)
	c.SetConnected(false)

	_, err := c.Get(context.Background(), "/ping", nil)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestClient_PerMinuteWindowDelaysSecondRequest(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	var seen []time.Time
	c := newTestClient(t, clock, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, clock.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}, func(cfg *ClientConfig) {
		cfg.RequestsPerMinute = 1
	})

	start := clock.Now()
	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), "/items", nil); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	if len(seen) != 2 {
		t.Fatalf("expected both requests to be sent, got %d", len(seen))
	}
	if got := seen[1].Sub(start); got < time.Minute {
		t.Errorf("second request sent after %s, want >= 1m", got)
	}
	if got := clock.totalSlept(); got != time.Minute {
		t.Errorf("slept %s, want exactly 1m", got)
	}
}

func TestClient_HourlyCapRejects(t *testing.T) {
	clock := newFakeClock()
	c := newTestClient(t, clock, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, func(cfg *ClientConfig) {
		cfg.RequestsPerMinute = 0
		cfg.RequestsPerHour = 2
	})

	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), "/x", nil); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	_, err := c.Get(context.Background(), "/x", nil)
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}

	// Entries age out after an hour.
	_ = clock.Sleep(context.Background(), time.Hour)
	if _, err := c.Get(context.Background(), "/x", nil); err != nil {
		t.Fatalf("request after window expiry failed: %v", err)
	}
}

func TestClient_UnauthorizedIsNotRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, newFakeClock(), func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad credentials"}`))
	}, nil)

	_, err := c.Get(context.Background(), "/user", nil)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestClient_RetryAfterDoesNotConsumeRetries(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	c := newTestClient(t, clock, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 3 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, func(cfg *ClientConfig) {
		cfg.RetryAttempts = 1
		cfg.RequestsPerMinute = 0
	})

	resp, err := c.Get(context.Background(), "/busy", nil)
	if err != nil {
		t.Fatalf("expected success after 429s, got %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if got := clock.totalSlept(); got != 21*time.Second {
		t.Errorf("slept %s, want 21s", got)
	}
}

func TestClient_RetryAfterDefault(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	c := newTestClient(t, clock, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}, func(cfg *ClientConfig) { cfg.RequestsPerMinute = 0 })

	if _, err := c.Get(context.Background(), "/busy", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := clock.totalSlept(); got != DefaultRetryAfter {
		t.Errorf("slept %s, want %s", got, DefaultRetryAfter)
	}
}

func TestClient_PersistentRateLimitGivesUp(t *testing.T) {
	c := newTestClient(t, newFakeClock(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}, func(cfg *ClientConfig) {
		cfg.RequestsPerMinute = 0
		cfg.MaxRateLimitWaits = 2
	})

	_, err := c.Get(context.Background(), "/busy", nil)
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
}

func TestClient_ExponentialBackoffThenRequestError(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	c := newTestClient(t, clock, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}, func(cfg *ClientConfig) {
		cfg.RetryAttempts = 3
		cfg.RequestsPerMinute = 0
	})

	_, err := c.Get(context.Background(), "/flaky", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", reqErr.Attempts)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected wrapped 502, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	clock.mu.Lock()
	sleeps := append([]time.Duration(nil), clock.sleeps...)
	clock.mu.Unlock()
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleep[%d] = %s, want %s", i, sleeps[i], want[i])
		}
	}
}

func TestClient_RecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	c := newTestClient(t, newFakeClock(), func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"value":42}`))
	}, func(cfg *ClientConfig) { cfg.RequestsPerMinute = 0 })

	var out struct {
		Value int `json:"value"`
	}
	if err := c.GetJSON(context.Background(), "/thing", nil, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out.Value != 42 {
		t.Errorf("value = %d, want 42", out.Value)
	}
}

func TestClient_AuthHeadersAndAbsolutePaths(t *testing.T) {
	var gotAuth, gotURL string
	c := newTestClient(t, newFakeClock(), func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotURL = r.URL.String()
		w.WriteHeader(http.StatusOK)
	}, func(cfg *ClientConfig) {
		cfg.Auth = TokenAuth{Token: "abc"}
	})

	if _, err := c.Get(context.Background(), "https://other.local/rest/role/10", nil); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if gotAuth != "token abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotURL != "https://other.local/rest/role/10" {
		t.Errorf("url = %q", gotURL)
	}
	if h := c.AuthHeaders()["Authorization"]; h != "token abc" {
		t.Errorf("AuthHeaders = %q", h)
	}
}

func TestClient_NilAuthSendsNoCredentials(t *testing.T) {
	gotAuth := "unset"
	c := newTestClient(t, newFakeClock(), func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}, nil)

	if _, err := c.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want none", gotAuth)
	}
	if h, ok := c.AuthHeaders()["Authorization"]; ok {
		t.Errorf("AuthHeaders carries Authorization %q", h)
	}
}

func TestBasicAuth_EmptyUsername(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://x", nil)
	BasicAuth{Password: "pat"}.Apply(req)
	// base64(":pat")
	if got := req.Header.Get("Authorization"); got != "Basic OnBhdA==" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", DefaultRetryAfter},
		{"5", 5 * time.Second},
		{"garbage", DefaultRetryAfter},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	c := newTestClient(t, newFakeClock(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, func(cfg *ClientConfig) {
		cfg.RetryAttempts = 1
		cfg.RequestsPerMinute = 0
		cfg.Breaker = &BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, MinRequests: 3, FailureRatio: 0.5}
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "/down", nil); err == nil {
			t.Fatalf("request %d unexpectedly succeeded", i)
		}
	}

	_, err := c.Get(context.Background(), "/down", nil)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError from open circuit, got %v", err)
	}
	if c.BreakerState() != "open" {
		t.Errorf("breaker state = %s, want open", c.BreakerState())
	}
}

func TestBreaker_IgnoresAuthFailures(t *testing.T) {
	if !countsAsSuccess(&AuthenticationError{Client: "x"}) {
		t.Error("auth failures should not trip the breaker")
	}
	if countsAsSuccess(&RequestError{Err: errors.New("boom")}) {
		t.Error("request errors should count as failures")
	}
}
