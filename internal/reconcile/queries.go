package reconcile

import (
	"context"
	"sort"
	"strings"

	"github.com/nucleus/pm-sync/internal/analytics"
	"github.com/nucleus/pm-sync/internal/database"
	"github.com/nucleus/pm-sync/internal/logging"
	"golang.org/x/sync/errgroup"
)

const (
	recentWorkItems = 10

	// BottleneckShare is the share of open items above which a status is
	// reported as a bottleneck.
	BottleneckShare = 0.30
)

// GetProjectOverview returns the project with its recent work items, roster
// and workflows, or nil when the project does not exist.
func (e *Engine) GetProjectOverview(ctx context.Context, projectID string) (*ProjectOverview, error) {
	project, err := e.db.GetProject(ctx, projectID)
	if err != nil || project == nil {
		return nil, err
	}
	return e.overview(ctx, project)
}

func (e *Engine) overview(ctx context.Context, project *database.Project) (*ProjectOverview, error) {
	recent, err := e.db.ListWorkItems(ctx, database.WorkItemFilter{ProjectID: project.ID, Limit: recentWorkItems})
	if err != nil {
		return nil, err
	}
	members, err := e.db.ListTeamMembers(ctx, project.ID, false)
	if err != nil {
		return nil, err
	}
	workflows, err := e.db.ListWorkflows(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	counts, err := e.counts(ctx, project.ID, members)
	if err != nil {
		return nil, err
	}
	return &ProjectOverview{
		Project:         project,
		RecentWorkItems: recent,
		TeamMembers:     members,
		Workflows:       workflows,
		Counts:          counts,
	}, nil
}

// counts prefers the stored snapshot and computes live figures for
// projects that have never been analysed.
func (e *Engine) counts(ctx context.Context, projectID string, members []*database.TeamMember) (Counts, error) {
	snap, err := e.db.GetProjectAnalytics(ctx, projectID)
	if err != nil {
		return Counts{}, err
	}
	if snap == nil {
		items, err := e.db.ListWorkItems(ctx, database.WorkItemFilter{ProjectID: projectID})
		if err != nil {
			return Counts{}, err
		}
		snap = analytics.Compute(items, members, e.now()).Snapshot(projectID, e.now())
	}
	return Counts{
		TotalWorkItems:      snap.TotalWorkItems,
		CompletedWorkItems:  snap.CompletedWorkItems,
		InProgressWorkItems: snap.InProgressWorkItems,
		BacklogWorkItems:    snap.BacklogWorkItems,
		ActiveTeamMembers:   snap.ActiveTeamMembers,
	}, nil
}

// GetProjectAnalytics returns the latest snapshot, or nil when the project
// has none.
func (e *Engine) GetProjectAnalytics(ctx context.Context, projectID string) (*ProjectAnalyticsView, error) {
	snap, err := e.db.GetProjectAnalytics(ctx, projectID)
	if err != nil || snap == nil {
		return nil, err
	}
	return &ProjectAnalyticsView{
		ProjectAnalytics: snap,
		CompletionRate:   rate(snap.CompletedWorkItems, snap.TotalWorkItems),
	}, nil
}

// ListProjects returns overviews of all projects, optionally for one service.
func (e *Engine) ListProjects(ctx context.Context, serviceID *string) ([]*ProjectOverview, error) {
	projects, err := e.db.ListProjects(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	out := make([]*ProjectOverview, 0, len(projects))
	for _, p := range projects {
		o, err := e.overview(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// ListWorkItems lists work items, most recently updated first.
func (e *Engine) ListWorkItems(ctx context.Context, f database.WorkItemFilter) ([]*database.WorkItem, error) {
	return e.db.ListWorkItems(ctx, f)
}

// ListTeamMembers lists a project's roster.
func (e *Engine) ListTeamMembers(ctx context.Context, projectID string, activeOnly bool) ([]*database.TeamMember, error) {
	return e.db.ListTeamMembers(ctx, projectID, activeOnly)
}

// WorkflowInsights reports the status distribution of a project and the
// statuses holding more than BottleneckShare of its open items. It returns
// nil when the project does not exist.
func (e *Engine) WorkflowInsights(ctx context.Context, projectID string) (*WorkflowInsights, error) {
	project, err := e.db.GetProject(ctx, projectID)
	if err != nil || project == nil {
		return nil, err
	}
	items, err := e.db.ListWorkItems(ctx, database.WorkItemFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	workflows, err := e.db.ListWorkflows(ctx, projectID)
	if err != nil {
		return nil, err
	}

	insights := &WorkflowInsights{
		ProjectID:          projectID,
		Workflows:          make([]string, 0, len(workflows)),
		StatusDistribution: map[string]int{},
		Bottlenecks:        []string{},
	}
	for _, w := range workflows {
		insights.Workflows = append(insights.Workflows, w.Name)
	}

	open := map[string]int{}
	completed := 0
	for _, item := range items {
		insights.StatusDistribution[item.Status]++
		if item.ResolvedAt != nil {
			completed++
			continue
		}
		open[item.Status]++
		insights.OpenWorkItems++
	}
	for status, n := range open {
		if rate(n, insights.OpenWorkItems) > BottleneckShare {
			insights.Bottlenecks = append(insights.Bottlenecks, status)
		}
	}
	sort.Strings(insights.Bottlenecks)
	insights.CompletionRate = rate(completed, len(items))
	return insights, nil
}

// SyncAllProjects syncs every project listed by each enabled, connected
// service. Projects are addressed by key, falling back to their id.
func (e *Engine) SyncAllProjects(ctx context.Context) ([]*SyncStatus, error) {
	services, err := e.db.ListServices(ctx, true)
	if err != nil {
		return nil, err
	}

	type target struct{ serviceID, project string }
	var targets []target
	for _, svc := range services {
		adapter, ok := e.clients.GetClient(svc.ID)
		if !ok {
			continue
		}
		projects, err := adapter.ListProjects(ctx, e.projectLimit)
		if err != nil {
			if !isUnsupported(err) {
				logging.Ctx(ctx).Warn().Err(err).Str("service_id", svc.ID).Msg("failed to list projects")
			}
			continue
		}
		for _, p := range projects {
			ident := strings.TrimSpace(p.Key)
			if ident == "" {
				ident = p.ID
			}
			targets = append(targets, target{svc.ID, ident})
		}
	}

	statuses := make([]*SyncStatus, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			statuses[i] = e.SyncProjectData(gctx, t.serviceID, t.project)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, ctx.Err()
}

// Dashboard returns store-wide totals.
func (e *Engine) Dashboard(ctx context.Context) (*Dashboard, error) {
	totals, err := e.db.Totals(ctx)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Totals:         *totals,
		CompletionRate: rate(totals.CompletedWorkItems, totals.WorkItems),
		GeneratedAt:    e.now(),
	}, nil
}
