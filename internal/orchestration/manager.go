// Package orchestration owns the live adapter table: it builds adapters from
// stored service configuration, tracks their connection status and fans out
// batch sync and health operations.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nucleus/pm-sync/internal/connector/http"
	"github.com/nucleus/pm-sync/internal/database"
	"github.com/nucleus/pm-sync/internal/endpoint"
	"github.com/nucleus/pm-sync/internal/logging"
	"github.com/nucleus/pm-sync/internal/metrics"
)

// ServiceStore is the slice of the store the manager reads and updates.
type ServiceStore interface {
	GetService(ctx context.Context, id string) (*database.Service, error)
	ListServices(ctx context.Context, enabledOnly bool) ([]*database.Service, error)
	UpdateServiceStatus(ctx context.Context, id string, status endpoint.ConnectionStatus, lastError string, connectedAt *time.Time) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry resolves constructors from r instead of the default registry.
func WithRegistry(r *endpoint.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// WithConcurrency bounds the batch fan-out.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithClock overrides the status timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager maps service ids to connected adapters.
type Manager struct {
	store       ServiceStore
	registry    *endpoint.Registry
	concurrency int
	now         func() time.Time

	mu           sync.RWMutex
	clients      map[string]endpoint.Adapter
	constructors map[endpoint.ServiceType]endpoint.Factory
}

// NewManager creates a manager backed by store.
func NewManager(store ServiceStore, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		registry:     endpoint.DefaultRegistry(),
		concurrency:  4,
		now:          func() time.Time { return time.Now().UTC() },
		clients:      make(map[string]endpoint.Adapter),
		constructors: make(map[endpoint.ServiceType]endpoint.Factory),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterAdapterConstructor sets the constructor for serviceType, taking
// precedence over the registry.
func (m *Manager) RegisterAdapterConstructor(serviceType endpoint.ServiceType, factory endpoint.Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constructors[serviceType] = factory
	logging.Info().Str("service_type", string(serviceType)).Msg("registered adapter constructor")
}

// CreateClient builds an unconnected adapter for cfg.
func (m *Manager) CreateClient(cfg *endpoint.ServiceConfig) (endpoint.Adapter, error) {
	if cfg == nil {
		return nil, &endpoint.ValidationError{Field: "config", Message: "is required"}
	}
	m.mu.RLock()
	factory, ok := m.constructors[cfg.Type]
	m.mu.RUnlock()
	if ok {
		return factory(cfg.WithDefaults())
	}
	return m.registry.Create(cfg)
}

// GetClient returns the live adapter for serviceID.
func (m *Manager) GetClient(serviceID string) (endpoint.Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.clients[serviceID]
	return a, ok
}

// ConnectedServiceIDs lists services with a live adapter, sorted.
func (m *Manager) ConnectedServiceIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConnectService loads the service, connects a fresh adapter and stores it.
// The persisted status moves through connecting to connected, or to error
// with the failure recorded in last_error.
func (m *Manager) ConnectService(ctx context.Context, serviceID string) (bool, error) {
	svc, err := m.store.GetService(ctx, serviceID)
	if err != nil {
		return false, fmt.Errorf("failed to load service %s: %w", serviceID, err)
	}
	if svc == nil {
		return false, fmt.Errorf("%w: %s", endpoint.ErrServiceNotFound, serviceID)
	}
	if !svc.Enabled {
		return false, fmt.Errorf("%w: %s", endpoint.ErrServiceDisabled, serviceID)
	}

	log := logging.Ctx(ctx).With().Str("service_id", serviceID).Str("service_type", string(svc.ServiceType)).Logger()

	if err := m.store.UpdateServiceStatus(ctx, serviceID, endpoint.StatusConnecting, "", nil); err != nil {
		return false, err
	}

	adapter, err := m.CreateClient(svc.Config())
	if err == nil {
		err = adapter.Connect(ctx)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to connect service")
		if statusErr := m.store.UpdateServiceStatus(ctx, serviceID, endpoint.StatusError, err.Error(), nil); statusErr != nil {
			log.Error().Err(statusErr).Msg("failed to record connection error")
		}
		return false, err
	}

	m.mu.Lock()
	previous := m.clients[serviceID]
	m.clients[serviceID] = adapter
	metrics.ConnectedServices.Set(float64(len(m.clients)))
	m.mu.Unlock()

	if previous != nil {
		_ = previous.Disconnect(ctx)
	}

	connectedAt := m.now()
	if err := m.store.UpdateServiceStatus(ctx, serviceID, endpoint.StatusConnected, "", &connectedAt); err != nil {
		return true, err
	}
	log.Info().Msg("service connected")
	return true, nil
}

// DisconnectService tears down the live adapter, if any, and persists
// the disconnected status.
func (m *Manager) DisconnectService(ctx context.Context, serviceID string) error {
	m.mu.Lock()
	adapter, ok := m.clients[serviceID]
	delete(m.clients, serviceID)
	metrics.ConnectedServices.Set(float64(len(m.clients)))
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if err := adapter.Disconnect(ctx); err != nil {
		logging.Warn().Err(err).Str("service_id", serviceID).Msg("adapter disconnect failed")
	}
	if err := m.store.UpdateServiceStatus(ctx, serviceID, endpoint.StatusDisconnected, "", nil); err != nil {
		return err
	}
	logging.Info().Str("service_id", serviceID).Msg("service disconnected")
	return nil
}

// Close disconnects every live adapter.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	for _, id := range m.ConnectedServiceIDs() {
		if err := m.DisconnectService(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateServiceConfig builds a throwaway adapter, connects it and checks
// its credentials. A rejected identity yields ErrInvalidCredentials.
func (m *Manager) ValidateServiceConfig(ctx context.Context, cfg *endpoint.ServiceConfig) error {
	adapter, err := m.CreateClient(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = adapter.Disconnect(ctx) }()

	if err := adapter.Connect(ctx); err != nil {
		var authErr *http.AuthenticationError
		if errors.As(err, &authErr) {
			return fmt.Errorf("%w: %s", endpoint.ErrInvalidCredentials, authErr.Message)
		}
		return err
	}
	ok, err := adapter.ValidateCredentials(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return endpoint.ErrInvalidCredentials
	}
	return nil
}

// snapshot copies the live table for lock-free fan-out.
func (m *Manager) snapshot() map[string]endpoint.Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]endpoint.Adapter, len(m.clients))
	for id, a := range m.clients {
		out[id] = a
	}
	return out
}

// fanOut runs fn for each index with at most m.concurrency in flight.
func (m *Manager) fanOut(n int, fn func(i int)) {
	sem := make(chan struct{}, m.concurrency)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}
