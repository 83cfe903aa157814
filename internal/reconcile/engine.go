// Package reconcile pulls project data through live adapters and upserts it
// into the store. Re-running a sync is idempotent: rows are keyed by their
// upstream identity and rosters are replaced wholesale.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nucleus/pm-sync/internal/analytics"
	"github.com/nucleus/pm-sync/internal/database"
	"github.com/nucleus/pm-sync/internal/endpoint"
	"github.com/nucleus/pm-sync/internal/logging"
	"github.com/nucleus/pm-sync/internal/metrics"
)

const (
	// WorkItemLimit caps work items fetched per sync.
	WorkItemLimit = 1000

	// ProjectListLimit caps projects listed per service in SyncAllProjects.
	ProjectListLimit = 50
)

// ClientSource hands out live adapters.
type ClientSource interface {
	GetClient(serviceID string) (endpoint.Adapter, bool)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the sync timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWorkItemLimit overrides WorkItemLimit.
func WithWorkItemLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workItemLimit = n
		}
	}
}

// WithProjectLimit overrides ProjectListLimit.
func WithProjectLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.projectLimit = n
		}
	}
}

// WithConcurrency bounds SyncAllProjects.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// Engine reconciles upstream projects into the store.
type Engine struct {
	db            *database.Client
	clients       ClientSource
	now           func() time.Time
	workItemLimit int
	projectLimit  int
	concurrency   int
}

// NewEngine creates an engine over db reading adapters from clients.
func NewEngine(db *database.Client, clients ClientSource, opts ...Option) *Engine {
	e := &Engine{
		db:            db,
		clients:       clients,
		now:           func() time.Time { return time.Now().UTC() },
		workItemLimit: WorkItemLimit,
		projectLimit:  ProjectListLimit,
		concurrency:   4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncProjectData pulls one project through the service's live adapter and
// reconciles it. Failures are reported in the returned status, never as an
// error; writes made before a failure are kept.
func (e *Engine) SyncProjectData(ctx context.Context, serviceID, projectIdentifier string) *SyncStatus {
	start := time.Now()
	status := &SyncStatus{ServiceID: serviceID, Status: StatusSuccess, Errors: []string{}, Warnings: []string{}}
	log := logging.Ctx(ctx).With().Str("service_id", serviceID).Str("project", projectIdentifier).Logger()

	serviceType := "unknown"
	defer func() {
		metrics.SyncRuns.WithLabelValues(serviceType, status.Status).Inc()
		metrics.SyncDuration.WithLabelValues(serviceType).Observe(time.Since(start).Seconds())
	}()

	svc, err := e.db.GetService(ctx, serviceID)
	if err != nil {
		return status.fail(fmt.Errorf("failed to load service: %w", err))
	}
	if svc == nil {
		return status.fail(fmt.Errorf("%w: %s", endpoint.ErrServiceNotFound, serviceID))
	}
	serviceType = string(svc.ServiceType)

	adapter, ok := e.clients.GetClient(serviceID)
	if !ok {
		return status.fail(fmt.Errorf("%w: %s", endpoint.ErrClientNotConnected, serviceID))
	}

	data, err := adapter.FetchProjectData(ctx, projectIdentifier)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch project data")
		return status.fail(fmt.Errorf("failed to fetch project %s: %w", projectIdentifier, err))
	}

	projectID, err := e.db.UpsertProject(ctx, projectFromData(serviceID, svc.ServiceType, data))
	if err != nil {
		return status.fail(err)
	}
	status.ProjectID = projectID
	log = log.With().Str("project_id", projectID).Logger()

	if fetcher, ok := adapter.(endpoint.WorkItemFetcher); ok {
		items, err := fetcher.FetchWorkItems(ctx, projectIdentifier, e.workItemLimit)
		if err != nil {
			log.Warn().Err(err).Msg("work item fetch failed, continuing without items")
			status.warn("work items: " + err.Error())
		}
		for _, item := range items {
			if _, err := e.db.UpsertWorkItem(ctx, workItemFromData(projectID, item)); err != nil {
				log.Warn().Err(err).Str("work_item", item.ExternalID).Msg("skipping work item")
				metrics.SyncItemErrors.WithLabelValues("work_item").Inc()
				status.warn(fmt.Sprintf("work item %s: %v", item.ExternalID, err))
				continue
			}
			status.WorkItemsSynced++
		}
		metrics.SyncItems.WithLabelValues("work_item").Add(float64(status.WorkItemsSynced))
	}

	inserted, failures, err := e.db.ReplaceTeamMembers(ctx, projectID, membersFromData(projectID, data.Members))
	if err != nil {
		return status.fail(err)
	}
	for _, f := range failures {
		log.Warn().Err(f.Err).Str("member", f.ExternalID).Msg("skipping team member")
		metrics.SyncItemErrors.WithLabelValues("team_member").Inc()
		status.warn(fmt.Sprintf("team member %s: %v", f.ExternalID, f.Err))
	}
	status.TeamMembersSynced = inserted
	metrics.SyncItems.WithLabelValues("team_member").Add(float64(inserted))

	inserted, failures, err = e.db.ReplaceWorkflows(ctx, projectID, workflowsFromData(projectID, data.Workflows))
	if err != nil {
		return status.fail(err)
	}
	for _, f := range failures {
		log.Warn().Err(f.Err).Str("workflow", f.Name).Msg("skipping workflow")
		metrics.SyncItemErrors.WithLabelValues("workflow").Inc()
		status.warn(fmt.Sprintf("workflow %s: %v", f.Name, f.Err))
	}
	status.WorkflowsSynced = inserted
	metrics.SyncItems.WithLabelValues("workflow").Add(float64(inserted))

	syncedAt := e.now()
	if err := e.db.MarkProjectSynced(ctx, projectID, syncedAt); err != nil {
		return status.fail(err)
	}
	status.LastSyncedAt = &syncedAt

	if err := e.refreshAnalytics(ctx, projectID, syncedAt); err != nil {
		return status.fail(err)
	}

	log.Info().
		Int("work_items", status.WorkItemsSynced).
		Int("team_members", status.TeamMembersSynced).
		Int("workflows", status.WorkflowsSynced).
		Int("warnings", len(status.Warnings)).
		Msg("project synced")
	return status
}

func (e *Engine) refreshAnalytics(ctx context.Context, projectID string, at time.Time) error {
	items, err := e.db.ListWorkItems(ctx, database.WorkItemFilter{ProjectID: projectID})
	if err != nil {
		return err
	}
	members, err := e.db.ListTeamMembers(ctx, projectID, false)
	if err != nil {
		return err
	}
	snapshot := analytics.Compute(items, members, at).Snapshot(projectID, at)
	if err := e.db.ReplaceProjectAnalytics(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to store analytics: %w", err)
	}
	return nil
}

// isUnsupported reports whether err only says the backend lacks an operation.
func isUnsupported(err error) bool {
	return errors.Is(err, endpoint.ErrUnsupported)
}

func projectFromData(serviceID string, serviceType endpoint.ServiceType, d *endpoint.ProjectData) *database.Project {
	projectType := d.ProjectType
	if projectType == "" {
		projectType = serviceType
	}
	return &database.Project{
		ExternalID:  d.ID,
		ServiceID:   serviceID,
		Name:        d.Name,
		Key:         d.Key,
		Description: d.Description,
		URL:         d.URL,
		ProjectType: projectType,
		Status:      d.Status,
	}
}

func workItemFromData(projectID string, d *endpoint.WorkItemData) *database.WorkItem {
	return &database.WorkItem{
		ExternalID:  d.ExternalID,
		ProjectID:   projectID,
		Title:       d.Title,
		Description: d.Description,
		ItemType:    d.ItemType,
		Status:      d.Status,
		Priority:    d.Priority,
		Assignee:    d.Assignee,
		Reporter:    d.Reporter,
		StoryPoints: d.StoryPoints,
		Labels:      d.Labels,
		URL:         d.URL,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		ResolvedAt:  d.ResolvedAt,
	}
}

func membersFromData(projectID string, in []endpoint.MemberData) []database.TeamMember {
	out := make([]database.TeamMember, 0, len(in))
	for _, m := range in {
		out = append(out, database.TeamMember{
			ProjectID:  projectID,
			ExternalID: m.ExternalID,
			Name:       m.Name,
			Email:      m.Email,
			Role:       m.Role,
			Team:       m.Team,
			IsActive:   true,
		})
	}
	return out
}

func workflowsFromData(projectID string, in []endpoint.WorkflowData) []database.Workflow {
	out := make([]database.Workflow, 0, len(in))
	for _, w := range in {
		out = append(out, database.Workflow{
			ProjectID:  projectID,
			ExternalID: w.ExternalID,
			Name:       w.Name,
			Category:   w.Category,
		})
	}
	return out
}
