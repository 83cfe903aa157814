package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// lockProject serializes full-replace writes of one project's children on
// PostgreSQL. SQLite already runs on a single connection.
func (c *Client) lockProject(ctx context.Context, tx *sql.Tx, projectID string) error {
	if c.dialect != DialectPostgres {
		return nil
	}
	var id string
	err := tx.QueryRowContext(ctx, c.q(`SELECT id FROM projects WHERE id = ? FOR UPDATE`), projectID).Scan(&id)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("failed to lock project: %w", err)
	}
	return nil
}

// =============================================================================
// TEAM MEMBERS
// =============================================================================

// RowFailure is a child row that could not be stored.
type RowFailure struct {
	ExternalID string
	Name       string
	Err        error
}

// execIsolated runs one statement behind a savepoint. A failing statement is
// rolled back to the savepoint and returned as failed; err is set only when
// the transaction itself is no longer usable.
func execIsolated(ctx context.Context, tx *sql.Tx, query string, args ...any) (failed, err error) {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT child_insert`); err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}
	if _, failed = tx.ExecContext(ctx, query, args...); failed != nil {
		if _, err := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT child_insert`); err != nil {
			return nil, fmt.Errorf("failed to roll back to savepoint: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT child_insert`); err != nil {
		return nil, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return failed, nil
}

// ReplaceTeamMembers deletes the project's roster and inserts members in one
// transaction. A failing insert is reported in failures without aborting the
// rest.
func (c *Client) ReplaceTeamMembers(ctx context.Context, projectID string, members []TeamMember) (inserted int, failures []RowFailure, err error) {
	now := c.now()
	err = c.Transaction(ctx, func(tx *sql.Tx) error {
		inserted, failures = 0, nil
		if err := c.lockProject(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, c.q(`DELETE FROM team_members WHERE project_id = ?`), projectID); err != nil {
			return fmt.Errorf("failed to clear team members: %w", err)
		}
		for _, m := range members {
			failed, err := execIsolated(ctx, tx, c.q(`
				INSERT INTO team_members (id, project_id, external_id, name, email, role, team, is_active, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`), uuid.New().String(), projectID, m.ExternalID, m.Name, m.Email, m.Role, m.Team, m.IsActive, now)
			if err != nil {
				return err
			}
			if failed != nil {
				failures = append(failures, RowFailure{ExternalID: m.ExternalID, Name: m.Name, Err: failed})
				continue
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return inserted, failures, nil
}

// ListTeamMembers lists a project's roster ordered by team and name.
func (c *Client) ListTeamMembers(ctx context.Context, projectID string, activeOnly bool) ([]*TeamMember, error) {
	query := `
		SELECT id, project_id, external_id, name, email, role, team, is_active
		FROM team_members
		WHERE project_id = ?`
	args := []any{projectID}
	if activeOnly {
		query += ` AND is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY team, name, external_id`

	rows, err := c.db.QueryContext(ctx, c.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	members := []*TeamMember{}
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.ExternalID, &m.Name, &m.Email, &m.Role, &m.Team, &m.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// =============================================================================
// WORKFLOWS
// =============================================================================

// ReplaceWorkflows deletes the project's workflow stages and inserts
// workflows in order. order_index is the input position; position 0 is the
// initial stage and the last position is final. A failing insert is reported
// in failures without aborting the rest.
func (c *Client) ReplaceWorkflows(ctx context.Context, projectID string, workflows []Workflow) (inserted int, failures []RowFailure, err error) {
	now := c.now()
	err = c.Transaction(ctx, func(tx *sql.Tx) error {
		inserted, failures = 0, nil
		if err := c.lockProject(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, c.q(`DELETE FROM workflows WHERE project_id = ?`), projectID); err != nil {
			return fmt.Errorf("failed to clear workflows: %w", err)
		}
		last := len(workflows) - 1
		for i, w := range workflows {
			failed, err := execIsolated(ctx, tx, c.q(`
				INSERT INTO workflows (id, project_id, external_id, name, category, order_index, is_initial, is_final, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`), uuid.New().String(), projectID, w.ExternalID, w.Name, w.Category, i, i == 0, i == last, now)
			if err != nil {
				return err
			}
			if failed != nil {
				failures = append(failures, RowFailure{ExternalID: w.ExternalID, Name: w.Name, Err: failed})
				continue
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return inserted, failures, nil
}

// ListWorkflows lists a project's workflow stages by order_index.
func (c *Client) ListWorkflows(ctx context.Context, projectID string) ([]*Workflow, error) {
	rows, err := c.db.QueryContext(ctx, c.q(`
		SELECT id, project_id, external_id, name, category, order_index, is_initial, is_final
		FROM workflows
		WHERE project_id = ?
		ORDER BY order_index
	`), projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	workflows := []*Workflow{}
	for rows.Next() {
		var w Workflow
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.ExternalID, &w.Name, &w.Category, &w.OrderIndex, &w.IsInitial, &w.IsFinal); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, &w)
	}
	return workflows, rows.Err()
}
