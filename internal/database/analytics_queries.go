package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ReplaceProjectAnalytics swaps the project's snapshot for a.
func (c *Client) ReplaceProjectAnalytics(ctx context.Context, a *ProjectAnalytics) error {
	comm, err := json.Marshal(orEmpty(a.CommunicationPatterns))
	if err != nil {
		return fmt.Errorf("failed to encode communication patterns: %w", err)
	}
	flow, err := json.Marshal(orEmpty(a.WorkflowPatterns))
	if err != nil {
		return fmt.Errorf("failed to encode workflow patterns: %w", err)
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	return c.Transaction(ctx, func(tx *sql.Tx) error {
		if err := c.lockProject(ctx, tx, a.ProjectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, c.q(`DELETE FROM project_analytics WHERE project_id = ?`), a.ProjectID); err != nil {
			return fmt.Errorf("failed to clear analytics: %w", err)
		}
		_, err := tx.ExecContext(ctx, c.q(`
			INSERT INTO project_analytics (
				id, project_id, analysis_date, total_work_items, completed_work_items,
				in_progress_work_items, backlog_work_items, active_team_members,
				avg_completion_time_days, velocity_story_points,
				communication_patterns, workflow_patterns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`),
			a.ID, a.ProjectID, a.AnalysisDate.UTC(), a.TotalWorkItems, a.CompletedWorkItems,
			a.InProgressWorkItems, a.BacklogWorkItems, a.ActiveTeamMembers,
			a.AvgCompletionTimeDays, a.VelocityStoryPoints,
			string(comm), string(flow),
		)
		if err != nil {
			return fmt.Errorf("failed to insert analytics: %w", err)
		}
		return nil
	})
}

// GetProjectAnalytics returns the project's snapshot or nil, nil.
func (c *Client) GetProjectAnalytics(ctx context.Context, projectID string) (*ProjectAnalytics, error) {
	var (
		a          ProjectAnalytics
		avg, vel   sql.NullFloat64
		comm, flow []byte
	)
	err := c.db.QueryRowContext(ctx, c.q(`
		SELECT id, project_id, analysis_date, total_work_items, completed_work_items,
		       in_progress_work_items, backlog_work_items, active_team_members,
		       avg_completion_time_days, velocity_story_points,
		       communication_patterns, workflow_patterns
		FROM project_analytics
		WHERE project_id = ?
		ORDER BY analysis_date DESC
		LIMIT 1
	`), projectID).Scan(
		&a.ID, &a.ProjectID, &a.AnalysisDate, &a.TotalWorkItems, &a.CompletedWorkItems,
		&a.InProgressWorkItems, &a.BacklogWorkItems, &a.ActiveTeamMembers,
		&avg, &vel, &comm, &flow,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	a.AnalysisDate = a.AnalysisDate.UTC()
	a.AvgCompletionTimeDays = nullFloat(avg)
	a.VelocityStoryPoints = nullFloat(vel)
	if err := json.Unmarshal(comm, &a.CommunicationPatterns); err != nil {
		return nil, fmt.Errorf("failed to decode communication patterns: %w", err)
	}
	if err := json.Unmarshal(flow, &a.WorkflowPatterns); err != nil {
		return nil, fmt.Errorf("failed to decode workflow patterns: %w", err)
	}
	return &a, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
