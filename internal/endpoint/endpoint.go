package endpoint

import "context"

// Adapter is the capability set shared by all backend connectors.
type Adapter interface {
	// ServiceType returns the backend tag (e.g. "github", "jira").
	ServiceType() ServiceType

	// Config returns the service configuration the adapter was built from.
	Config() *ServiceConfig

	// Connect builds the transport and probes the backend.
	Connect(ctx context.Context) error

	// Disconnect releases the transport. Safe to call more than once.
	Disconnect(ctx context.Context) error

	// IsConnected reports whether Connect succeeded and Disconnect has not run.
	IsConnected() bool

	// AuthHeaders returns the headers the adapter sends to authenticate.
	AuthHeaders() map[string]string

	// HealthCheck probes the backend and never returns an error; failures
	// are reported through the HealthCheck status.
	HealthCheck(ctx context.Context) *HealthCheck

	// ValidateCredentials checks that the configured identity is accepted.
	ValidateCredentials(ctx context.Context) (bool, error)

	ListRepositories(ctx context.Context, limit int) ([]*RepositoryData, error)
	ListProjects(ctx context.Context, limit int) ([]*ProjectData, error)
	FetchRepositoryData(ctx context.Context, repositoryID string) (*RepositoryData, error)
	FetchProjectData(ctx context.Context, projectID string) (*ProjectData, error)
}

// WorkItemFetcher is implemented by adapters whose backend tracks issues.
// Callers treat an adapter without it as having zero work items.
type WorkItemFetcher interface {
	FetchWorkItems(ctx context.Context, projectID string, limit int) ([]*WorkItemData, error)
}
