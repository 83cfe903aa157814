// Package endpointtest provides an in-memory adapter for tests.
package endpointtest

import (
	"context"
	"sync"
	"time"

	"github.com/nucleus/pm-sync/internal/endpoint"
)

// Fake is a scripted endpoint.Adapter. Zero values behave as an empty,
// healthy backend.
type Fake struct {
	Type endpoint.ServiceType

	ConnectErr         error
	InvalidCredentials bool
	Repositories       []*endpoint.RepositoryData
	RepositoriesErr    error
	Projects           map[string]*endpoint.ProjectData
	ProjectsErr        error
	ProjectErr         error
	WorkItems          map[string][]*endpoint.WorkItemData
	WorkItemsErr       error

	mu        sync.Mutex
	cfg       *endpoint.ServiceConfig
	connected bool
	connects  int
}

// Factory returns an endpoint.Factory that hands out f bound to each config.
func (f *Fake) Factory() endpoint.Factory {
	return func(cfg *endpoint.ServiceConfig) (endpoint.Adapter, error) {
		f.mu.Lock()
		f.cfg = cfg
		f.mu.Unlock()
		return f, nil
	}
}

// Connects counts successful Connect calls.
func (f *Fake) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *Fake) ServiceType() endpoint.ServiceType {
	if f.Type == "" {
		return endpoint.ServiceGitHub
	}
	return f.Type
}

func (f *Fake) Config() *endpoint.ServiceConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *Fake) Connect(ctx context.Context) error {
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	f.connects++
	return nil
}

func (f *Fake) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *Fake) AuthHeaders() map[string]string { return map[string]string{} }

func (f *Fake) HealthCheck(ctx context.Context) *endpoint.HealthCheck {
	check := &endpoint.HealthCheck{ServiceType: f.ServiceType(), CheckedAt: time.Now().UTC()}
	if cfg := f.Config(); cfg != nil {
		check.ServiceID = cfg.ID
	}
	if f.IsConnected() {
		check.Status = endpoint.HealthHealthy
	} else {
		check.Status = endpoint.HealthUnhealthy
		check.ErrorMessage = "not connected"
	}
	return check
}

func (f *Fake) ValidateCredentials(ctx context.Context) (bool, error) {
	return !f.InvalidCredentials, nil
}

func (f *Fake) ListRepositories(ctx context.Context, limit int) ([]*endpoint.RepositoryData, error) {
	if f.RepositoriesErr != nil {
		return nil, f.RepositoriesErr
	}
	if limit < len(f.Repositories) {
		return f.Repositories[:limit], nil
	}
	return f.Repositories, nil
}

func (f *Fake) ListProjects(ctx context.Context, limit int) ([]*endpoint.ProjectData, error) {
	if f.ProjectsErr != nil {
		return nil, f.ProjectsErr
	}
	out := make([]*endpoint.ProjectData, 0, len(f.Projects))
	for _, p := range f.Projects {
		if len(out) == limit {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *Fake) FetchRepositoryData(ctx context.Context, repositoryID string) (*endpoint.RepositoryData, error) {
	for _, r := range f.Repositories {
		if r.ID == repositoryID || r.FullName == repositoryID {
			return r, nil
		}
	}
	return nil, endpoint.ErrUnsupported
}

func (f *Fake) FetchProjectData(ctx context.Context, projectID string) (*endpoint.ProjectData, error) {
	if f.ProjectErr != nil {
		return nil, f.ProjectErr
	}
	p, ok := f.Projects[projectID]
	if !ok {
		return nil, endpoint.ErrUnsupported
	}
	return p, nil
}

func (f *Fake) FetchWorkItems(ctx context.Context, projectID string, limit int) ([]*endpoint.WorkItemData, error) {
	if f.WorkItemsErr != nil {
		return nil, f.WorkItemsErr
	}
	items := f.WorkItems[projectID]
	if limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}
