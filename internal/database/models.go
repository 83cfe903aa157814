package database

import (
	"time"

	"github.com/nucleus/pm-sync/internal/endpoint"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service is a configured connection to one backend.
type Service struct {
	ID                string                    `json:"id"`
	ServiceType       endpoint.ServiceType      `json:"service_type"`
	Name              string                    `json:"name"`
	Endpoint          string                    `json:"endpoint"`
	Credentials       map[string]string         `json:"-"`
	Enabled           bool                      `json:"enabled"`
	RequestsPerMinute int                       `json:"requests_per_minute"`
	RequestsPerHour   int                       `json:"requests_per_hour"`
	TimeoutSeconds    int                       `json:"timeout_seconds"`
	RetryAttempts     int                       `json:"retry_attempts"`
	ConnectionStatus  endpoint.ConnectionStatus `json:"connection_status"`
	LastConnectedAt   *time.Time                `json:"last_connected_at,omitempty"`
	LastError         string                    `json:"last_error,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// Config converts the stored service into adapter configuration with
// defaults applied.
func (s *Service) Config() *endpoint.ServiceConfig {
	cfg := endpoint.ServiceConfig{
		ID:          s.ID,
		Type:        s.ServiceType,
		Name:        s.Name,
		Endpoint:    s.Endpoint,
		Credentials: s.Credentials,
		Enabled:     s.Enabled,
		RateLimits: endpoint.RateLimits{
			RequestsPerMinute: s.RequestsPerMinute,
			RequestsPerHour:   s.RequestsPerHour,
		},
		Timeout:       time.Duration(s.TimeoutSeconds) * time.Second,
		RetryAttempts: s.RetryAttempts,
	}
	return cfg.WithDefaults()
}

// =============================================================================
// PROJECT DATA
// =============================================================================

// Project is a reconciled upstream project.
type Project struct {
	ID           string               `json:"id"`
	ExternalID   string               `json:"external_id"`
	ServiceID    string               `json:"service_id"`
	Name         string               `json:"name"`
	Key          string               `json:"key"`
	Description  string               `json:"description,omitempty"`
	URL          string               `json:"url"`
	ProjectType  endpoint.ServiceType `json:"project_type"`
	Status       string               `json:"status"`
	LastSyncedAt *time.Time           `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// WorkItem is a reconciled issue, story, bug or task.
type WorkItem struct {
	ID          string     `json:"id"`
	ExternalID  string     `json:"external_id"`
	ProjectID   string     `json:"project_id"`
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

// TeamMember is one roster entry of a project.
type TeamMember struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	Team       string `json:"team,omitempty"`
	IsActive   bool   `json:"is_active"`
}

// Workflow is one ordered workflow stage of a project.
type Workflow struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Category   string `json:"category,omitempty"`
	OrderIndex int    `json:"order_index"`
	IsInitial  bool   `json:"is_initial"`
	IsFinal    bool   `json:"is_final"`
}

// ProjectAnalytics is the latest analytics snapshot of a project.
type ProjectAnalytics struct {
	ID                    string         `json:"id"`
	ProjectID             string         `json:"project_id"`
	AnalysisDate          time.Time      `json:"analysis_date"`
	TotalWorkItems        int            `json:"total_work_items"`
	CompletedWorkItems    int            `json:"completed_work_items"`
	InProgressWorkItems   int            `json:"in_progress_work_items"`
	BacklogWorkItems      int            `json:"backlog_work_items"`
	ActiveTeamMembers     int            `json:"active_team_members"`
	AvgCompletionTimeDays *float64       `json:"avg_completion_time_days,omitempty"`
	VelocityStoryPoints   *float64       `json:"velocity_story_points,omitempty"`
	CommunicationPatterns map[string]any `json:"communication_patterns"`
	WorkflowPatterns      map[string]any `json:"workflow_patterns"`
}

// WorkItemFilter narrows ListWorkItems.
type WorkItemFilter struct {
	ProjectID string

	// Status and Assignee match case-insensitive substrings.
	Status   string
	Assignee string
	Limit    int
}

// Totals are store-wide counts for the dashboard.
type Totals struct {
	Services           int `json:"services"`
	ConnectedServices  int `json:"connected_services"`
	Projects           int `json:"projects"`
	WorkItems          int `json:"work_items"`
	CompletedWorkItems int `json:"completed_work_items"`
	ActiveTeamMembers  int `json:"active_team_members"`
}
