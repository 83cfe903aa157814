package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nucleus/pm-sync/internal/database"
)

// SyncProjectRequest names one upstream project to reconcile.
type SyncProjectRequest struct {
	ServiceID         string `json:"service_id" validate:"required"`
	ProjectIdentifier string `json:"project_identifier" validate:"required"`
}

// ListProjects handles GET /api/v1/projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	var serviceID *string
	if id := r.URL.Query().Get("service_id"); id != "" {
		serviceID = &id
	}
	projects, err := h.engine.ListProjects(r.Context(), serviceID)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

// GetProject handles GET /api/v1/projects/{id}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	overview, err := h.engine.GetProjectOverview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if overview == nil {
		notFound(w, r, "project")
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// ProjectAnalytics handles GET /api/v1/projects/{id}/analytics.
func (h *Handler) ProjectAnalytics(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetProjectAnalytics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if view == nil {
		notFound(w, r, "project analytics")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// WorkflowInsights handles GET /api/v1/projects/{id}/workflow-insights.
func (h *Handler) WorkflowInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.engine.WorkflowInsights(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if insights == nil {
		notFound(w, r, "project")
		return
	}
	respondJSON(w, http.StatusOK, insights)
}

// ListTeamMembers handles GET /api/v1/projects/{id}/team-members.
func (h *Handler) ListTeamMembers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active_only") != "false"
	members, err := h.engine.ListTeamMembers(r.Context(), chi.URLParam(r, "id"), activeOnly)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

// SyncProject handles POST /api/v1/projects/sync. The sync outcome is in
// the body; a failed sync still answers 200.
func (h *Handler) SyncProject(w http.ResponseWriter, r *http.Request) {
	var req SyncProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.engine.SyncProjectData(r.Context(), req.ServiceID, req.ProjectIdentifier))
}

// SyncAllProjects handles POST /api/v1/projects/sync-all.
func (h *Handler) SyncAllProjects(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.engine.SyncAllProjects(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, statuses)
}

// ListWorkItems handles GET /api/v1/work-items.
func (h *Handler) ListWorkItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.engine.ListWorkItems(r.Context(), database.WorkItemFilter{
		ProjectID: q.Get("project_id"),
		Status:    q.Get("status"),
		Assignee:  q.Get("assignee"),
		Limit:     queryInt(r, "limit", 100, 1000),
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// Dashboard handles GET /api/v1/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.engine.Dashboard(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dash)
}
