package endpoint

import (
	"net/http"
	"time"
)

// ServiceType tags the backend a service connects to.
type ServiceType string

const (
	ServiceGitHub      ServiceType = "github"
	ServiceGitLab      ServiceType = "gitlab"
	ServiceJira        ServiceType = "jira"
	ServiceAzureDevOps ServiceType = "azure_devops"
	ServiceConfluence  ServiceType = "confluence"
)

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceGitHub, ServiceGitLab, ServiceJira, ServiceAzureDevOps, ServiceConfluence:
		return true
	}
	return false
}

// ConnectionStatus is the persisted connection state of a service.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// Default limits applied when a service leaves them unset.
const (
	DefaultRequestsPerMinute = 60
	DefaultRequestsPerHour   = 1000
	DefaultTimeout           = 30 * time.Second
	DefaultRetryAttempts     = 3
)

// RateLimits caps outbound requests for one adapter instance.
type RateLimits struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	RequestsPerHour   int `json:"requests_per_hour"`
}

// ServiceConfig is everything an adapter needs to reach its backend.
type ServiceConfig struct {
	ID            string            `json:"id"`
	Type          ServiceType       `json:"service_type"`
	Name          string            `json:"name"`
	Endpoint      string            `json:"endpoint"`
	Credentials   map[string]string `json:"-"`
	Enabled       bool              `json:"enabled"`
	RateLimits    RateLimits        `json:"rate_limits"`
	Timeout       time.Duration     `json:"timeout"`
	RetryAttempts int               `json:"retry_attempts"`

	// Transport overrides the HTTP round tripper (stubs in tests).
	Transport http.RoundTripper `json:"-"`
}

// Credential returns the named credential or "".
func (c *ServiceConfig) Credential(key string) string {
	if c == nil || c.Credentials == nil {
		return ""
	}
	return c.Credentials[key]
}

// WithDefaults returns a copy with zero limits replaced by defaults.
func (c ServiceConfig) WithDefaults() *ServiceConfig {
	if c.RateLimits.RequestsPerMinute <= 0 {
		c.RateLimits.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.RateLimits.RequestsPerHour <= 0 {
		c.RateLimits.RequestsPerHour = DefaultRequestsPerHour
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	return &c
}

// =============================================================================
// NORMALIZED RECORDS
// =============================================================================

// RepositoryData is a source repository as reported by any backend.
type RepositoryData struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	URL           string    `json:"url"`
	Description   string    `json:"description,omitempty"`
	Language      string    `json:"language,omitempty"`
	DefaultBranch string    `json:"default_branch"`
	IsPrivate     bool      `json:"is_private"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Size          int64     `json:"size"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	Topics        []string  `json:"topics"`
}

// ProjectData is a project with its roster and workflow stages.
type ProjectData struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Key         string         `json:"key"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ProjectType ServiceType    `json:"project_type"`
	Members     []MemberData   `json:"members"`
	Workflows   []WorkflowData `json:"workflows"`
}

// MemberData is one roster entry of a project.
type MemberData struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	Team       string `json:"team,omitempty"`
}

// WorkflowData is one status/stage definition, in backend order.
type WorkflowData struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Category   string `json:"category,omitempty"`
}

// WorkItemData is an issue, story, bug or task.
type WorkItemData struct {
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ItemType    string     `json:"item_type"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Reporter    string     `json:"reporter,omitempty"`
	StoryPoints *float64   `json:"story_points,omitempty"`
	Labels      []string   `json:"labels"`
	URL         string     `json:"url"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// HealthStatus is the outcome of a health probe.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the result of probing one service.
type HealthCheck struct {
	ServiceID      string       `json:"service_id"`
	ServiceType    ServiceType  `json:"service_type"`
	Status         HealthStatus `json:"status"`
	ResponseTimeMs *int64       `json:"response_time_ms,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	CheckedAt      time.Time    `json:"checked_at"`
}
