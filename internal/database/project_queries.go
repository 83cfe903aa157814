package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// =============================================================================
// PROJECT QUERIES
// =============================================================================

const projectColumns = `
	id, external_id, service_id, name, project_key, description, url,
	project_type, status, last_synced_at, created_at, updated_at`

func scanProject(row scanner) (*Project, error) {
	var (
		p      Project
		synced sql.NullTime
	)
	if err := row.Scan(
		&p.ID, &p.ExternalID, &p.ServiceID, &p.Name, &p.Key, &p.Description, &p.URL,
		&p.ProjectType, &p.Status, &synced, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.LastSyncedAt = nullTime(synced)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// UpsertProject inserts or updates a project keyed by (service_id,
// external_id) and returns the stored row id.
func (c *Client) UpsertProject(ctx context.Context, p *Project) (string, error) {
	now := c.now()
	var id string
	err := c.db.QueryRowContext(ctx, c.q(`
		INSERT INTO projects (
			id, external_id, service_id, name, project_key, description, url,
			project_type, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (service_id, external_id) DO UPDATE SET
			name = excluded.name,
			project_key = excluded.project_key,
			description = excluded.description,
			url = excluded.url,
			project_type = excluded.project_type,
			status = excluded.status,
			updated_at = excluded.updated_at
		RETURNING id
	`),
		uuid.New().String(), p.ExternalID, p.ServiceID, p.Name, p.Key, p.Description, p.URL,
		string(p.ProjectType), p.Status, now, now,
	).Scan(&id)
	if err != nil {
		return "", wrapWrite("upsert project", err)
	}
	p.ID = id
	return id, nil
}

// GetProject retrieves a project by ID. It returns nil, nil when absent.
func (c *Client) GetProject(ctx context.Context, id string) (*Project, error) {
	row := c.db.QueryRowContext(ctx, c.q(`SELECT `+projectColumns+` FROM projects WHERE id = ?`), id)
	p, err := scanProject(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects lists projects, optionally for one service, most recently
// updated first.
func (c *Client) ListProjects(ctx context.Context, serviceID *string) ([]*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	args := []any{}
	if serviceID != nil {
		query += ` WHERE service_id = ?`
		args = append(args, *serviceID)
	}
	query += ` ORDER BY updated_at DESC, name`

	rows, err := c.db.QueryContext(ctx, c.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// MarkProjectSynced sets last_synced_at.
func (c *Client) MarkProjectSynced(ctx context.Context, id string, at time.Time) error {
	_, err := c.db.ExecContext(ctx, c.q(`UPDATE projects SET last_synced_at = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark project synced: %w", err)
	}
	return nil
}

// =============================================================================
// WORK ITEM QUERIES
// =============================================================================

const workItemColumns = `
	id, external_id, project_id, title, description, item_type, status,
	priority, assignee, reporter, story_points, labels, url,
	created_at, updated_at, resolved_at`

func scanWorkItem(row scanner) (*WorkItem, error) {
	var (
		w                          WorkItem
		points                     sql.NullFloat64
		labels                     []byte
		created, updated, resolved sql.NullTime
	)
	if err := row.Scan(
		&w.ID, &w.ExternalID, &w.ProjectID, &w.Title, &w.Description, &w.ItemType, &w.Status,
		&w.Priority, &w.Assignee, &w.Reporter, &points, &labels, &w.URL,
		&created, &updated, &resolved,
	); err != nil {
		return nil, err
	}
	w.StoryPoints = nullFloat(points)
	w.CreatedAt = nullTime(created)
	w.UpdatedAt = nullTime(updated)
	w.ResolvedAt = nullTime(resolved)
	w.Labels = []string{}
	if len(labels) > 0 {
		if err := json.Unmarshal(labels, &w.Labels); err != nil {
			return nil, fmt.Errorf("failed to decode labels: %w", err)
		}
	}
	return &w, nil
}

// UpsertWorkItem inserts or updates a work item keyed by (project_id,
// external_id) and returns the stored row id.
func (c *Client) UpsertWorkItem(ctx context.Context, w *WorkItem) (string, error) {
	labels := w.Labels
	if labels == nil {
		labels = []string{}
	}
	encoded, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("failed to encode labels: %w", err)
	}

	var id string
	err = c.db.QueryRowContext(ctx, c.q(`
		INSERT INTO work_items (
			id, external_id, project_id, title, description, item_type, status,
			priority, assignee, reporter, story_points, labels, url,
			created_at, updated_at, resolved_at, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, external_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			item_type = excluded.item_type,
			status = excluded.status,
			priority = excluded.priority,
			assignee = excluded.assignee,
			reporter = excluded.reporter,
			story_points = excluded.story_points,
			labels = excluded.labels,
			url = excluded.url,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			resolved_at = excluded.resolved_at,
			synced_at = excluded.synced_at
		RETURNING id
	`),
		uuid.New().String(), w.ExternalID, w.ProjectID, w.Title, w.Description, w.ItemType, w.Status,
		w.Priority, w.Assignee, w.Reporter, w.StoryPoints, string(encoded), w.URL,
		utcPtr(w.CreatedAt), utcPtr(w.UpdatedAt), utcPtr(w.ResolvedAt), c.now(),
	).Scan(&id)
	if err != nil {
		return "", wrapWrite("upsert work item", err)
	}
	w.ID = id
	return id, nil
}

// ListWorkItems lists work items matching f, most recently updated first.
func (c *Client) ListWorkItems(ctx context.Context, f WorkItemFilter) ([]*WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE 1=1`
	args := []any{}

	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		query += ` AND LOWER(status) LIKE ?`
		args = append(args, "%"+strings.ToLower(f.Status)+"%")
	}
	if f.Assignee != "" {
		query += ` AND LOWER(assignee) LIKE ?`
		args = append(args, "%"+strings.ToLower(f.Assignee)+"%")
	}
	query += ` ORDER BY updated_at DESC NULLS LAST, external_id`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := c.db.QueryContext(ctx, c.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	defer rows.Close()

	items := []*WorkItem{}
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Totals counts rows across the store.
func (c *Client) Totals(ctx context.Context) (*Totals, error) {
	var t Totals
	err := c.db.QueryRowContext(ctx, c.q(`
		SELECT
			(SELECT COUNT(*) FROM services),
			(SELECT COUNT(*) FROM services WHERE connection_status = ?),
			(SELECT COUNT(*) FROM projects),
			(SELECT COUNT(*) FROM work_items),
			(SELECT COUNT(*) FROM work_items WHERE resolved_at IS NOT NULL),
			(SELECT COUNT(*) FROM team_members WHERE is_active = ?)
	`), "connected", true).Scan(
		&t.Services, &t.ConnectedServices, &t.Projects,
		&t.WorkItems, &t.CompletedWorkItems, &t.ActiveTeamMembers,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count totals: %w", err)
	}
	return &t, nil
}
