package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nucleus/pm-sync/internal/endpoint"
)

const serviceColumns = `
	id, service_type, name, endpoint, credentials, enabled,
	requests_per_minute, requests_per_hour, timeout_seconds, retry_attempts,
	connection_status, last_connected_at, last_error, created_at, updated_at`

// =============================================================================
// CREDENTIALS
// =============================================================================

func (c *Client) sealCredentials(creds map[string]string) (string, error) {
	if creds == nil {
		creds = map[string]string{}
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}
	if c.cipher == nil {
		return string(raw), nil
	}
	sealed, err := c.cipher.Encrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	return sealed, nil
}

func (c *Client) openCredentials(stored string) (map[string]string, error) {
	creds := map[string]string{}
	if stored == "" {
		return creds, nil
	}
	raw := stored
	if c.cipher != nil {
		plain, err := c.cipher.Decrypt(stored)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
		}
		raw = plain
	}
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return creds, nil
}

func (c *Client) scanService(row scanner) (*Service, error) {
	var (
		s           Service
		creds       string
		connectedAt sql.NullTime
	)
	if err := row.Scan(
		&s.ID, &s.ServiceType, &s.Name, &s.Endpoint, &creds, &s.Enabled,
		&s.RequestsPerMinute, &s.RequestsPerHour, &s.TimeoutSeconds, &s.RetryAttempts,
		&s.ConnectionStatus, &connectedAt, &s.LastError, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	decoded, err := c.openCredentials(creds)
	if err != nil {
		return nil, err
	}
	s.Credentials = decoded
	s.LastConnectedAt = nullTime(connectedAt)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

// =============================================================================
// SERVICE QUERIES
// =============================================================================

// CreateService inserts a new service. Zero limits take the defaults.
func (c *Client) CreateService(ctx context.Context, s *Service) (*Service, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	applyServiceDefaults(s)
	sealed, err := c.sealCredentials(s.Credentials)
	if err != nil {
		return nil, err
	}
	now := c.now()

	_, err = c.db.ExecContext(ctx, c.q(`
		INSERT INTO services (
			id, service_type, name, endpoint, credentials, enabled,
			requests_per_minute, requests_per_hour, timeout_seconds, retry_attempts,
			connection_status, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)
	`),
		s.ID, string(s.ServiceType), s.Name, s.Endpoint, sealed, s.Enabled,
		s.RequestsPerMinute, s.RequestsPerHour, s.TimeoutSeconds, s.RetryAttempts,
		string(endpoint.StatusDisconnected), now, now,
	)
	if err != nil {
		return nil, wrapWrite("create service", err)
	}
	return c.GetService(ctx, s.ID)
}

func applyServiceDefaults(s *Service) {
	if s.RequestsPerMinute <= 0 {
		s.RequestsPerMinute = endpoint.DefaultRequestsPerMinute
	}
	if s.RequestsPerHour <= 0 {
		s.RequestsPerHour = endpoint.DefaultRequestsPerHour
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = int(endpoint.DefaultTimeout / time.Second)
	}
	if s.RetryAttempts <= 0 {
		s.RetryAttempts = endpoint.DefaultRetryAttempts
	}
}

// GetService retrieves a service by ID. It returns nil, nil when absent.
func (c *Client) GetService(ctx context.Context, id string) (*Service, error) {
	row := c.db.QueryRowContext(ctx, c.q(`SELECT `+serviceColumns+` FROM services WHERE id = ?`), id)
	s, err := c.scanService(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return s, nil
}

// ListServices lists services ordered by name.
func (c *Client) ListServices(ctx context.Context, enabledOnly bool) ([]*Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	args := []any{}
	if enabledOnly {
		query += ` WHERE enabled = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name, id`

	rows, err := c.db.QueryContext(ctx, c.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := []*Service{}
	for rows.Next() {
		s, err := c.scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// UpdateService rewrites the editable fields of a service. Connection state
// is left untouched.
func (c *Client) UpdateService(ctx context.Context, s *Service) (*Service, error) {
	applyServiceDefaults(s)
	sealed, err := c.sealCredentials(s.Credentials)
	if err != nil {
		return nil, err
	}

	res, err := c.db.ExecContext(ctx, c.q(`
		UPDATE services SET
			name = ?, endpoint = ?, credentials = ?, enabled = ?,
			requests_per_minute = ?, requests_per_hour = ?, timeout_seconds = ?, retry_attempts = ?,
			updated_at = ?
		WHERE id = ?
	`),
		s.Name, s.Endpoint, sealed, s.Enabled,
		s.RequestsPerMinute, s.RequestsPerHour, s.TimeoutSeconds, s.RetryAttempts,
		c.now(), s.ID,
	)
	if err != nil {
		return nil, wrapWrite("update service", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return c.GetService(ctx, s.ID)
}

// UpdateServiceStatus records a connection state transition. connectedAt is
// only written when non-nil.
func (c *Client) UpdateServiceStatus(ctx context.Context, id string, status endpoint.ConnectionStatus, lastError string, connectedAt *time.Time) error {
	query := `UPDATE services SET connection_status = ?, last_error = ?, updated_at = ?`
	args := []any{string(status), lastError, c.now()}
	if connectedAt != nil {
		query += `, last_connected_at = ?`
		args = append(args, connectedAt.UTC())
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	if _, err := c.db.ExecContext(ctx, c.q(query), args...); err != nil {
		return fmt.Errorf("failed to update service status: %w", err)
	}
	return nil
}

// DeleteService deletes a service and, by cascade, its projects.
func (c *Client) DeleteService(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, c.q(`DELETE FROM services WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete service: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete service: %w", err)
	}
	return n > 0, nil
}
