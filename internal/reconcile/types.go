package reconcile

import (
	"time"

	"github.com/nucleus/pm-sync/internal/database"
)

// Sync outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SyncStatus reports one SyncProjectData run.
type SyncStatus struct {
	ProjectID         string     `json:"project_id"`
	ServiceID         string     `json:"service_id"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	Status            string     `json:"status"`
	WorkItemsSynced   int        `json:"work_items_synced"`
	TeamMembersSynced int        `json:"team_members_synced"`
	WorkflowsSynced   int        `json:"workflows_synced"`
	Errors            []string   `json:"errors"`
	Warnings          []string   `json:"warnings"`
}

func (s *SyncStatus) fail(err error) *SyncStatus {
	s.Status = StatusError
	s.Errors = append(s.Errors, err.Error())
	return s
}

func (s *SyncStatus) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Counts are the headline figures of a project.
type Counts struct {
	TotalWorkItems      int `json:"total_work_items"`
	CompletedWorkItems  int `json:"completed_work_items"`
	InProgressWorkItems int `json:"in_progress_work_items"`
	BacklogWorkItems    int `json:"backlog_work_items"`
	ActiveTeamMembers   int `json:"active_team_members"`
}

// ProjectOverview is a project with its recent activity.
type ProjectOverview struct {
	Project         *database.Project      `json:"project"`
	RecentWorkItems []*database.WorkItem   `json:"recent_work_items"`
	TeamMembers     []*database.TeamMember `json:"team_members"`
	Workflows       []*database.Workflow   `json:"workflows"`
	Counts          Counts                 `json:"counts"`
}

// ProjectAnalyticsView is the analytics snapshot plus derived rates.
type ProjectAnalyticsView struct {
	*database.ProjectAnalytics
	CompletionRate float64 `json:"completion_rate"`
}

// WorkflowInsights summarizes where open work sits.
type WorkflowInsights struct {
	ProjectID          string         `json:"project_id"`
	Workflows          []string       `json:"workflows"`
	StatusDistribution map[string]int `json:"status_distribution"`
	Bottlenecks        []string       `json:"bottlenecks"`
	OpenWorkItems      int            `json:"open_work_items"`
	CompletionRate     float64        `json:"completion_rate"`
}

// Dashboard is the store-wide summary.
type Dashboard struct {
	database.Totals
	CompletionRate float64   `json:"completion_rate"`
	GeneratedAt    time.Time `json:"generated_at"`
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
