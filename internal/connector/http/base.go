package http

import (
	"context"
	"errors"
	"time"

	"github.com/nucleus/pm-sync/internal/endpoint"
)

// =============================================================================
// BASE ADAPTER
// Connection lifecycle shared by the backend adapters.
// =============================================================================

// Base provides the lifecycle half of endpoint.Adapter. Embed it in
// connectors and implement the data operations on top of Client.
type Base struct {
	// Client is the HTTP client for making requests.
	Client *Client

	config    *endpoint.ServiceConfig
	probePath string
}

// NewBase creates a base whose Connect and HealthCheck GET probePath.
func NewBase(config *endpoint.ServiceConfig, clientConfig *ClientConfig, probePath string) *Base {
	return &Base{
		Client:    NewClient(clientConfig),
		config:    config,
		probePath: probePath,
	}
}

// ClientConfigFor maps a service's limits onto a transport config.
func ClientConfigFor(config *endpoint.ServiceConfig, baseURL string, auth AuthConfig) *ClientConfig {
	cc := DefaultClientConfig()
	cc.Name = string(config.Type) + ":" + config.ID
	cc.BaseURL = baseURL
	cc.Auth = auth
	cc.Transport = config.Transport
	if config.Timeout > 0 {
		cc.Timeout = config.Timeout
	}
	if config.RetryAttempts > 0 {
		cc.RetryAttempts = config.RetryAttempts
	}
	if config.RateLimits.RequestsPerMinute > 0 {
		cc.RequestsPerMinute = config.RateLimits.RequestsPerMinute
	}
	if config.RateLimits.RequestsPerHour > 0 {
		cc.RequestsPerHour = config.RateLimits.RequestsPerHour
	}
	return cc
}

// Config returns the service configuration.
func (b *Base) Config() *endpoint.ServiceConfig { return b.config }

// ServiceType returns the backend tag.
func (b *Base) ServiceType() endpoint.ServiceType { return b.config.Type }

// Connect probes the backend and marks the client connected.
func (b *Base) Connect(ctx context.Context) error {
	if _, err := b.Client.Probe(ctx, b.probePath); err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return authErr
		}
		return &ConnectionError{Client: b.Client.Name(), Message: "probe failed", Err: err}
	}
	b.Client.SetConnected(true)
	return nil
}

// Disconnect marks the client unusable and drops idle connections.
func (b *Base) Disconnect(ctx context.Context) error {
	b.Client.SetConnected(false)
	b.Client.httpClient.CloseIdleConnections()
	return nil
}

// IsConnected reports whether Connect succeeded.
func (b *Base) IsConnected() bool { return b.Client.IsConnected() }

// AuthHeaders returns the authentication headers sent on each request.
func (b *Base) AuthHeaders() map[string]string { return b.Client.AuthHeaders() }

// HealthCheck times a GET of the probe path.
func (b *Base) HealthCheck(ctx context.Context) *endpoint.HealthCheck {
	check := &endpoint.HealthCheck{
		ServiceID:   b.config.ID,
		ServiceType: b.config.Type,
	}
	start := time.Now()
	_, err := b.Client.Get(ctx, b.probePath, nil)
	check.CheckedAt = time.Now().UTC()
	if err != nil {
		check.Status = endpoint.HealthUnhealthy
		check.ErrorMessage = err.Error()
		return check
	}
	ms := time.Since(start).Milliseconds()
	check.Status = endpoint.HealthHealthy
	check.ResponseTimeMs = &ms
	return check
}

// FetchJSON GETs path and decodes the body into target.
func (b *Base) FetchJSON(ctx context.Context, path string, target any) error {
	return b.Client.GetJSON(ctx, path, nil, target)
}
