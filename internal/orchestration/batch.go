package orchestration

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/nucleus/pm-sync/internal/endpoint"
	"github.com/nucleus/pm-sync/internal/logging"
	"github.com/nucleus/pm-sync/internal/metrics"
)

// BatchListLimit caps repositories and projects listed per service.
const BatchListLimit = 100

// Sync outcomes.
const (
	SyncSuccess = "success"
	SyncPartial = "partial"
	SyncFailed  = "failed"
)

// SyncResult summarizes one service in SyncAllServices.
type SyncResult struct {
	ServiceID          string               `json:"service_id"`
	ServiceType        endpoint.ServiceType `json:"service_type"`
	Status             string               `json:"status"`
	SyncedAt           time.Time            `json:"synced_at"`
	RepositoriesSynced int                  `json:"repositories_synced"`
	ProjectsSynced     int                  `json:"projects_synced"`
	Errors             []string             `json:"errors"`
	Warnings           []string             `json:"warnings"`
}

// SyncAllServices lists repositories and projects from every connected
// service. A failing service is reported in its result and never aborts the
// batch. Results are ordered by service id.
func (m *Manager) SyncAllServices(ctx context.Context) []SyncResult {
	live := m.snapshot()
	ids := make([]string, 0, len(live))
	for id := range live {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]SyncResult, len(ids))
	m.fanOut(len(ids), func(i int) {
		results[i] = m.syncService(ctx, ids[i], live[ids[i]])
	})
	return results
}

func (m *Manager) syncService(ctx context.Context, serviceID string, adapter endpoint.Adapter) SyncResult {
	start := time.Now()
	r := SyncResult{
		ServiceID:   serviceID,
		ServiceType: adapter.ServiceType(),
		Errors:      []string{},
		Warnings:    []string{},
	}
	failures := 0

	repos, err := adapter.ListRepositories(ctx, BatchListLimit)
	switch {
	case errors.Is(err, endpoint.ErrUnsupported):
		r.Warnings = append(r.Warnings, "repositories: "+err.Error())
	case err != nil:
		failures++
		r.Errors = append(r.Errors, "repositories: "+err.Error())
	default:
		r.RepositoriesSynced = len(repos)
	}

	projects, err := adapter.ListProjects(ctx, BatchListLimit)
	switch {
	case errors.Is(err, endpoint.ErrUnsupported):
		r.Warnings = append(r.Warnings, "projects: "+err.Error())
	case err != nil:
		failures++
		r.Errors = append(r.Errors, "projects: "+err.Error())
	default:
		r.ProjectsSynced = len(projects)
	}

	switch failures {
	case 0:
		r.Status = SyncSuccess
	case 2:
		r.Status = SyncFailed
	default:
		r.Status = SyncPartial
	}
	r.SyncedAt = m.now()

	metrics.SyncRuns.WithLabelValues(string(r.ServiceType), r.Status).Inc()
	metrics.SyncDuration.WithLabelValues(string(r.ServiceType)).Observe(time.Since(start).Seconds())
	logging.Ctx(ctx).Info().
		Str("service_id", serviceID).
		Str("status", r.Status).
		Int("repositories", r.RepositoriesSynced).
		Int("projects", r.ProjectsSynced).
		Msg("service sync finished")
	return r
}

// HealthCheckAllServices probes every stored service. Services without a
// live adapter report unhealthy with "not connected".
func (m *Manager) HealthCheckAllServices(ctx context.Context) ([]*endpoint.HealthCheck, error) {
	services, err := m.store.ListServices(ctx, false)
	if err != nil {
		return nil, err
	}

	results := make([]*endpoint.HealthCheck, len(services))
	m.fanOut(len(services), func(i int) {
		svc := services[i]
		var check *endpoint.HealthCheck
		if adapter, ok := m.GetClient(svc.ID); ok {
			check = adapter.HealthCheck(ctx)
		} else {
			check = &endpoint.HealthCheck{
				ServiceID:    svc.ID,
				ServiceType:  svc.ServiceType,
				Status:       endpoint.HealthUnhealthy,
				ErrorMessage: "not connected",
				CheckedAt:    m.now(),
			}
		}
		metrics.HealthChecks.WithLabelValues(string(check.ServiceType), string(check.Status)).Inc()
		results[i] = check
	})
	return results, nil
}
