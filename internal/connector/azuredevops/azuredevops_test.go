package azuredevops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nucleus/pm-sync/internal/endpoint"
)

type stubRoundTripper struct {
	handler http.Handler
}

func (rt *stubRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rr := httptest.NewRecorder()
	rt.handler.ServeHTTP(rr, req)
	res := rr.Result()
	res.Request = req
	return res, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type stubState struct {
	wiqlQueries []string
	batches     []string
}

func newStubHandler(t *testing.T, state *stubState) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pass, ok := r.BasicAuth(); !ok || pass != "pat" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "unauthorized"})
			return
		}
		if r.URL.Query().Get("api-version") != APIVersion {
			t.Errorf("missing api-version on %s", r.URL)
		}
		switch r.URL.Path {
		case "/contoso/_apis/projects":
			writeJSON(w, http.StatusOK, map[string]any{"count": 1, "value": []any{
				map[string]any{"id": "p-1", "name": "Fabrikam", "state": "wellFormed"},
			}})
		case "/contoso/_apis/projects/Fabrikam":
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "p-1", "name": "Fabrikam", "description": "Fiber",
				"lastUpdateTime": "2024-02-01T12:00:00Z",
			})
		case "/contoso/_apis/projects/Fabrikam/teams":
			writeJSON(w, http.StatusOK, map[string]any{"value": []any{
				map[string]any{"id": "t-1", "name": "Core"},
				map[string]any{"id": "t-2", "name": "Broken"},
			}})
		case "/contoso/_apis/projects/Fabrikam/teams/t-1/members":
			writeJSON(w, http.StatusOK, map[string]any{"value": []any{
				map[string]any{"identity": map[string]any{"displayName": "Ada", "uniqueName": "ada@example.com"}, "isTeamAdmin": true},
				map[string]any{"identity": map[string]any{"displayName": "Build", "uniqueName": "build-svc"}},
			}})
		case "/contoso/_apis/projects/Fabrikam/teams/t-2/members":
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "gone"})
		case "/contoso/Fabrikam/_apis/wit/wiql":
			body, _ := io.ReadAll(r.Body)
			state.wiqlQueries = append(state.wiqlQueries, string(body))
			writeJSON(w, http.StatusOK, map[string]any{"workItems": []any{
				map[string]any{"id": 11}, map[string]any{"id": 12}, map[string]any{"id": 13},
			}})
		case "/contoso/_apis/wit/workitems":
			ids := r.URL.Query().Get("ids")
			state.batches = append(state.batches, ids)
			var value []any
			for _, id := range strings.Split(ids, ",") {
				value = append(value, workItem(id))
			}
			writeJSON(w, http.StatusOK, map[string]any{"count": len(value), "value": value})
		case "/contoso/Fabrikam/_apis/git/repositories/web":
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "r-1", "name": "web", "webUrl": "https://dev.azure.com/contoso/Fabrikam/_git/web",
				"defaultBranch": "refs/heads/trunk", "size": 2048,
			})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		}
	})
}

func workItem(id string) map[string]any {
	fields := map[string]any{
		"System.Title":        "Item " + id,
		"System.WorkItemType": "User Story",
		"System.State":        "Active",
		"System.AssignedTo":   map[string]any{"displayName": "Ada"},
		"System.CreatedBy":    map[string]any{"displayName": "Grace"},
		"System.CreatedDate":  "2024-03-01T10:00:00.123Z",
		"System.ChangedDate":  "2024-03-02T10:00:00Z",
		"System.Tags":         "api; backend ;",
	}
	fields[FieldPriority] = 2
	switch id {
	case "11":
		fields["Microsoft.VSTS.Scheduling.Effort"] = 5
		fields["Microsoft.VSTS.Scheduling.StoryPoints"] = 8
	case "12":
		fields["Microsoft.VSTS.Scheduling.StoryPoints"] = 3
		fields["Microsoft.VSTS.Common.ClosedDate"] = "2024-03-04T10:00:00Z"
	}
	return map[string]any{"id": json.Number(id), "fields": fields}
}

func newTestAdapter(t *testing.T, state *stubState) *AzureDevOps {
	t.Helper()
	svc := (&endpoint.ServiceConfig{
		ID:            "svc-ado",
		Type:          endpoint.ServiceAzureDevOps,
		Credentials:   map[string]string{"organization": "contoso", "personal_access_token": "pat"},
		RetryAttempts: 1,
		Transport:     &stubRoundTripper{handler: newStubHandler(t, state)},
	}).WithDefaults()
	svc.Endpoint = "http://ado.local/contoso"
	a, err := New(svc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a
}

func TestConfigFromDefaultsToServicesHost(t *testing.T) {
	cfg := configFrom(&endpoint.ServiceConfig{Credentials: map[string]string{"organization": "contoso"}})
	if cfg.BaseURL != "https://dev.azure.com/contoso" {
		t.Fatalf("base = %q", cfg.BaseURL)
	}
	var verr *endpoint.ValidationError
	if err := cfg.Validate(); !errors.As(err, &verr) || verr.Field != "credentials.personal_access_token" {
		t.Fatalf("Validate = %v", err)
	}
}

func TestFetchWorkItemsMapsFields(t *testing.T) {
	state := &stubState{}
	a := newTestAdapter(t, state)

	items, err := a.FetchWorkItems(context.Background(), "Fabrikam", 2)
	if err != nil {
		t.Fatalf("FetchWorkItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if len(state.batches) != 1 || state.batches[0] != "11,12" {
		t.Fatalf("batches = %v", state.batches)
	}
	if !strings.Contains(state.wiqlQueries[0], "[System.TeamProject] = 'Fabrikam'") {
		t.Errorf("wiql = %s", state.wiqlQueries[0])
	}

	first := items[0]
	if first.StoryPoints == nil || *first.StoryPoints != 5 {
		t.Errorf("effort should win over story points: %v", first.StoryPoints)
	}
	if first.Priority != "2" || first.Assignee != "Ada" || first.Reporter != "Grace" {
		t.Errorf("unexpected people/priority: %+v", first)
	}
	if len(first.Labels) != 2 || first.Labels[0] != "api" || first.Labels[1] != "backend" {
		t.Errorf("labels = %v", first.Labels)
	}
	if first.URL != "http://ado.local/contoso/Fabrikam/_workitems/edit/11" {
		t.Errorf("url = %s", first.URL)
	}
	if first.ResolvedAt != nil {
		t.Errorf("item 11 should not be resolved")
	}

	second := items[1]
	if second.StoryPoints == nil || *second.StoryPoints != 3 {
		t.Errorf("story points fallback = %v", second.StoryPoints)
	}
	if second.ResolvedAt == nil || second.ResolvedAt.Day() != 4 {
		t.Errorf("closed date fallback = %v", second.ResolvedAt)
	}
}

func TestFetchProjectDataCollectsTeamMembers(t *testing.T) {
	a := newTestAdapter(t, &stubState{})

	p, err := a.FetchProjectData(context.Background(), "Fabrikam")
	if err != nil {
		t.Fatalf("FetchProjectData: %v", err)
	}
	if p.ID != "p-1" || p.Key != "Fabrikam" || p.Status != "wellFormed" {
		t.Errorf("unexpected project: %+v", p)
	}
	if len(p.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(p.Members))
	}
	ada := p.Members[0]
	if ada.ExternalID != "ada@example.com" || ada.Email != "ada@example.com" || ada.Team != "Core" || ada.Role != "admin" {
		t.Errorf("unexpected member: %+v", ada)
	}
	if p.Members[1].Email != "" {
		t.Errorf("service identity should have no email: %+v", p.Members[1])
	}
}

func TestFetchRepositoryData(t *testing.T) {
	a := newTestAdapter(t, &stubState{})

	r, err := a.FetchRepositoryData(context.Background(), "Fabrikam/web")
	if err != nil {
		t.Fatalf("FetchRepositoryData: %v", err)
	}
	if r.DefaultBranch != "trunk" || !r.IsPrivate || r.FullName != "Fabrikam/web" || r.Size != 2048 {
		t.Errorf("unexpected repository: %+v", r)
	}

	var verr *endpoint.ValidationError
	if _, err := a.FetchRepositoryData(context.Background(), "web"); !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestValidateCredentials(t *testing.T) {
	a := newTestAdapter(t, &stubState{})
	ok, err := a.ValidateCredentials(context.Background())
	if err != nil || !ok {
		t.Fatalf("ValidateCredentials = %v, %v", ok, err)
	}
}

func TestSplitTags(t *testing.T) {
	if got := splitTags(""); len(got) != 0 {
		t.Errorf("splitTags(\"\") = %v", got)
	}
	if got := splitTags(" a ;b"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitTags = %v", got)
	}
}
