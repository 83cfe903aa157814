// Package analytics derives project rollups from reconciled work items and
// rosters. It is pure: callers load inputs and persist the result.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/nucleus/pm-sync/internal/database"
)

const (
	// VelocityWindow bounds the velocity sum, inclusive at both ends.
	VelocityWindow = 30 * 24 * time.Hour

	// TrendWindow bounds completion_trends.
	TrendWindow = 180 * 24 * time.Hour

	// TopN caps the most-active lists.
	TopN = 10
)

var (
	inProgressStatuses = map[string]bool{"in progress": true, "in review": true, "testing": true}
	backlogStatuses    = map[string]bool{"to do": true, "backlog": true, "new": true}
)

// Result is one computed snapshot.
type Result struct {
	TotalWorkItems        int
	CompletedWorkItems    int
	InProgressWorkItems   int
	BacklogWorkItems      int
	ActiveTeamMembers     int
	AvgCompletionTimeDays *float64
	VelocityStoryPoints   *float64
	CommunicationPatterns map[string]any
	WorkflowPatterns      map[string]any
}

// Compute aggregates items and members as of now. Only active members count
// towards the roster figures.
func Compute(items []*database.WorkItem, members []*database.TeamMember, now time.Time) Result {
	r := Result{TotalWorkItems: len(items)}

	var (
		completionDays []float64
		velocity       float64
		velocityItems  int
	)
	for _, item := range items {
		status := strings.ToLower(item.Status)
		if inProgressStatuses[status] {
			r.InProgressWorkItems++
		}
		if backlogStatuses[status] {
			r.BacklogWorkItems++
		}
		if item.ResolvedAt == nil {
			continue
		}
		r.CompletedWorkItems++
		if item.CreatedAt != nil {
			completionDays = append(completionDays, item.ResolvedAt.Sub(*item.CreatedAt).Hours()/24)
		}
		age := now.Sub(*item.ResolvedAt)
		if age >= 0 && age <= VelocityWindow && item.StoryPoints != nil && *item.StoryPoints != 0 {
			velocity += *item.StoryPoints
			velocityItems++
		}
	}

	if len(completionDays) > 0 {
		var sum float64
		for _, d := range completionDays {
			sum += d
		}
		avg := sum / float64(len(completionDays))
		r.AvgCompletionTimeDays = &avg
	}
	if velocityItems > 0 {
		r.VelocityStoryPoints = &velocity
	}

	active := make([]*database.TeamMember, 0, len(members))
	for _, m := range members {
		if m.IsActive {
			active = append(active, m)
		}
	}
	r.ActiveTeamMembers = len(active)

	r.CommunicationPatterns = communicationPatterns(items, active)
	r.WorkflowPatterns = workflowPatterns(items, now)
	return r
}

// Snapshot converts r into a storable row for projectID.
func (r Result) Snapshot(projectID string, at time.Time) *database.ProjectAnalytics {
	return &database.ProjectAnalytics{
		ProjectID:             projectID,
		AnalysisDate:          at.UTC(),
		TotalWorkItems:        r.TotalWorkItems,
		CompletedWorkItems:    r.CompletedWorkItems,
		InProgressWorkItems:   r.InProgressWorkItems,
		BacklogWorkItems:      r.BacklogWorkItems,
		ActiveTeamMembers:     r.ActiveTeamMembers,
		AvgCompletionTimeDays: r.AvgCompletionTimeDays,
		VelocityStoryPoints:   r.VelocityStoryPoints,
		CommunicationPatterns: r.CommunicationPatterns,
		WorkflowPatterns:      r.WorkflowPatterns,
	}
}

func communicationPatterns(items []*database.WorkItem, members []*database.TeamMember) map[string]any {
	assignees := map[string]int{}
	reporters := map[string]int{}
	for _, item := range items {
		if item.Assignee != "" {
			assignees[item.Assignee]++
		}
		if item.Reporter != "" {
			reporters[item.Reporter]++
		}
	}

	teams := map[string]int{}
	roles := map[string]int{}
	for _, m := range members {
		if m.Team != "" {
			teams[m.Team]++
		}
		if m.Role != "" {
			roles[m.Role]++
		}
	}

	return map[string]any{
		"most_active_assignees":   Top(assignees, TopN),
		"most_active_reporters":   Top(reporters, TopN),
		"collaboration_frequency": map[string]int{},
		"team_distribution":       teams,
		"role_distribution":       roles,
	}
}

func workflowPatterns(items []*database.WorkItem, now time.Time) map[string]any {
	statuses := map[string]int{}
	types := map[string]int{}
	priorities := map[string]int{}
	trends := map[string]int{}

	for _, item := range items {
		statuses[item.Status]++
		types[item.ItemType]++
		if item.Priority != "" {
			priorities[item.Priority]++
		}
		if item.ResolvedAt != nil && now.Sub(*item.ResolvedAt) <= TrendWindow {
			trends[item.ResolvedAt.UTC().Format("2006-01")]++
		}
	}

	return map[string]any{
		"status_distribution":   statuses,
		"type_distribution":     types,
		"priority_distribution": priorities,
		"completion_trends":     trends,
	}
}

// Top keeps the n largest counts. Ties go to the lexically smaller name.
func Top(counts map[string]int, n int) map[string]int {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	out := make(map[string]int, len(names))
	for _, name := range names {
		out[name] = counts[name]
	}
	return out
}
