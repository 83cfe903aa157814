package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nucleus/pm-sync/internal/config"
	"github.com/nucleus/pm-sync/internal/database"
	"github.com/nucleus/pm-sync/internal/endpoint"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// ServiceRequest creates a service.
type ServiceRequest struct {
	ID                string            `json:"id,omitempty" validate:"omitempty,max=64"`
	ServiceType       string            `json:"service_type" validate:"required,oneof=github gitlab jira azure_devops confluence"`
	Name              string            `json:"name" validate:"required,max=255"`
	Endpoint          string            `json:"endpoint,omitempty" validate:"omitempty,url"`
	Credentials       map[string]string `json:"credentials"`
	Enabled           *bool             `json:"enabled,omitempty"`
	RequestsPerMinute int               `json:"requests_per_minute,omitempty" validate:"gte=0"`
	RequestsPerHour   int               `json:"requests_per_hour,omitempty" validate:"gte=0"`
	TimeoutSeconds    int               `json:"timeout_seconds,omitempty" validate:"gte=0"`
	RetryAttempts     int               `json:"retry_attempts,omitempty" validate:"gte=0,lte=10"`
}

// ServiceUpdateRequest changes the editable fields of a service. Nil fields
// are left as stored.
type ServiceUpdateRequest struct {
	Name              *string           `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Endpoint          *string           `json:"endpoint,omitempty" validate:"omitempty,url"`
	Credentials       map[string]string `json:"credentials,omitempty"`
	Enabled           *bool             `json:"enabled,omitempty"`
	RequestsPerMinute *int              `json:"requests_per_minute,omitempty" validate:"omitempty,gte=0"`
	RequestsPerHour   *int              `json:"requests_per_hour,omitempty" validate:"omitempty,gte=0"`
	TimeoutSeconds    *int              `json:"timeout_seconds,omitempty" validate:"omitempty,gte=0"`
	RetryAttempts     *int              `json:"retry_attempts,omitempty" validate:"omitempty,gte=0,lte=10"`
}

// ServiceView is a stored service with its credentials masked.
type ServiceView struct {
	*database.Service
	Credentials map[string]string `json:"credentials"`
}

func viewService(s *database.Service) *ServiceView {
	return &ServiceView{Service: s, Credentials: config.MaskCredentials(s.Credentials)}
}

// Healthz reports process liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DB().PingContext(r.Context()); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"connected_services": len(h.manager.ConnectedServiceIDs()),
	})
}

// ListServices handles GET /api/v1/services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.db.ListServices(r.Context(), r.URL.Query().Get("enabled") == "true")
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	out := make([]*ServiceView, 0, len(services))
	for _, s := range services {
		out = append(out, viewService(s))
	}
	respondJSON(w, http.StatusOK, out)
}

// GetService handles GET /api/v1/services/{id}.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.db.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if svc == nil {
		notFound(w, r, "service")
		return
	}
	respondJSON(w, http.StatusOK, viewService(svc))
}

// CreateService handles POST /api/v1/services. The credentials are checked
// against the backend before anything is stored.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req ServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondFailure(w, r, err)
		return
	}

	svc := &database.Service{
		ID:                req.ID,
		ServiceType:       endpoint.ServiceType(req.ServiceType),
		Name:              req.Name,
		Endpoint:          req.Endpoint,
		Credentials:       req.Credentials,
		Enabled:           req.Enabled == nil || *req.Enabled,
		RequestsPerMinute: req.RequestsPerMinute,
		RequestsPerHour:   req.RequestsPerHour,
		TimeoutSeconds:    req.TimeoutSeconds,
		RetryAttempts:     req.RetryAttempts,
	}
	if err := h.manager.ValidateServiceConfig(r.Context(), svc.Config()); err != nil {
		respondCredentialFailure(w, r, err)
		return
	}

	created, err := h.db.CreateService(r.Context(), svc)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, viewService(created))
}

// UpdateService handles PUT /api/v1/services/{id}. Changing the endpoint or
// credentials re-validates them and drops any live adapter.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ServiceUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondFailure(w, r, err)
		return
	}
	svc, err := h.db.GetService(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if svc == nil {
		notFound(w, r, "service")
		return
	}

	reconnect := false
	if req.Name != nil {
		svc.Name = *req.Name
	}
	if req.Endpoint != nil && *req.Endpoint != svc.Endpoint {
		svc.Endpoint = *req.Endpoint
		reconnect = true
	}
	if req.Credentials != nil {
		svc.Credentials = req.Credentials
		reconnect = true
	}
	if req.Enabled != nil {
		svc.Enabled = *req.Enabled
	}
	if req.RequestsPerMinute != nil {
		svc.RequestsPerMinute = *req.RequestsPerMinute
	}
	if req.RequestsPerHour != nil {
		svc.RequestsPerHour = *req.RequestsPerHour
	}
	if req.TimeoutSeconds != nil {
		svc.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.RetryAttempts != nil {
		svc.RetryAttempts = *req.RetryAttempts
	}

	if reconnect {
		if err := h.manager.ValidateServiceConfig(ctx, svc.Config()); err != nil {
			respondCredentialFailure(w, r, err)
			return
		}
	}
	updated, err := h.db.UpdateService(ctx, svc)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if updated == nil {
		notFound(w, r, "service")
		return
	}
	if reconnect || !updated.Enabled {
		if err := h.manager.DisconnectService(ctx, updated.ID); err != nil {
			respondFailure(w, r, err)
			return
		}
		if updated, err = h.db.GetService(ctx, updated.ID); err != nil {
			respondFailure(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, viewService(updated))
}

// DeleteService handles DELETE /api/v1/services/{id}.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.DisconnectService(r.Context(), id); err != nil {
		respondFailure(w, r, err)
		return
	}
	deleted, err := h.db.DeleteService(r.Context(), id)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if !deleted {
		notFound(w, r, "service")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

// ConnectService handles POST /api/v1/services/{id}/connect.
func (h *Handler) ConnectService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.manager.ConnectService(r.Context(), id); err != nil {
		if errors.Is(err, endpoint.ErrServiceNotFound) || errors.Is(err, endpoint.ErrServiceDisabled) {
			respondFailure(w, r, err)
			return
		}
		respondError(w, r, http.StatusBadGateway, "CONNECTION_FAILED", err.Error(), err)
		return
	}
	h.respondServiceState(w, r, id)
}

// DisconnectService handles POST /api/v1/services/{id}/disconnect.
func (h *Handler) DisconnectService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.DisconnectService(r.Context(), id); err != nil {
		respondFailure(w, r, err)
		return
	}
	h.respondServiceState(w, r, id)
}

func (h *Handler) respondServiceState(w http.ResponseWriter, r *http.Request, id string) {
	svc, err := h.db.GetService(r.Context(), id)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if svc == nil {
		notFound(w, r, "service")
		return
	}
	respondJSON(w, http.StatusOK, viewService(svc))
}

// ListRepositories handles GET /api/v1/services/{id}/repositories.
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	adapter, ok := h.manager.GetClient(chi.URLParam(r, "id"))
	if !ok {
		respondFailure(w, r, endpoint.ErrClientNotConnected)
		return
	}
	repos, err := adapter.ListRepositories(r.Context(), queryInt(r, "limit", defaultListLimit, maxListLimit))
	if err != nil {
		respondUpstreamFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, repos)
}

// ListRemoteProjects handles GET /api/v1/services/{id}/projects.
func (h *Handler) ListRemoteProjects(w http.ResponseWriter, r *http.Request) {
	adapter, ok := h.manager.GetClient(chi.URLParam(r, "id"))
	if !ok {
		respondFailure(w, r, endpoint.ErrClientNotConnected)
		return
	}
	projects, err := adapter.ListProjects(r.Context(), queryInt(r, "limit", defaultListLimit, maxListLimit))
	if err != nil {
		respondUpstreamFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

// HealthCheckServices handles GET /api/v1/services/health.
func (h *Handler) HealthCheckServices(w http.ResponseWriter, r *http.Request) {
	checks, err := h.manager.HealthCheckAllServices(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, checks)
}

// SyncServices handles POST /api/v1/services/sync.
func (h *Handler) SyncServices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.SyncAllServices(r.Context()))
}

func respondCredentialFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, endpoint.ErrUnregisteredType) || errors.Is(err, endpoint.ErrInvalidCredentials) {
		respondFailure(w, r, err)
		return
	}
	var cerr *endpoint.ValidationError
	if errors.As(err, &cerr) {
		respondFailure(w, r, err)
		return
	}
	respondError(w, r, http.StatusBadRequest, "INVALID_CREDENTIALS", "failed to validate service credentials: "+err.Error(), err)
}

func respondUpstreamFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, endpoint.ErrUnsupported) {
		respondFailure(w, r, err)
		return
	}
	respondError(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error(), err)
}
