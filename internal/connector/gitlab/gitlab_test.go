package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

var stubProject = map[string]any{
	"id":                  7,
	"name":                "api",
	"path_with_namespace": "team/api",
	"web_url":             "https://gitlab.local/team/api",
	"description":         "service",
	"default_branch":      "master",
	"visibility":          "private",
	"created_at":          "2023-01-01T00:00:00.000Z",
	"last_activity_at":    "2024-04-01T12:00:00.000Z",
	"star_count":          4,
	"forks_count":         1,
	"topics":              []string{"backend"},
}

func newStubAdapter(t *testing.T, seen *[]*http.Request) *GitLab {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = append(*seen, r)
		if r.Header.Get("Authorization") != "Bearer glpat" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "401 Unauthorized"})
			return
		}
		switch r.URL.EscapedPath() {
		case "/api/v4/user":
			writeJSON(w, http.StatusOK, map[string]any{"username": "dev", "id": 3})
		case "/api/v4/projects":
			if r.URL.Query().Get("page") == "1" {
				writeJSON(w, http.StatusOK, []any{stubProject})
				return
			}
			writeJSON(w, http.StatusOK, []any{})
		case "/api/v4/projects/team%2Fapi", "/api/v4/projects/7":
			writeJSON(w, http.StatusOK, stubProject)
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "404 Not Found"})
		}
	})

	g, err := New(&endpoint.ServiceConfig{
		ID:            "gl-1",
		Type:          endpoint.ServiceGitLab,
		Endpoint:      "http://gitlab.local",
		Credentials:   map[string]string{"token": "glpat"},
		RetryAttempts: 1,
		Transport:     &stubRoundTripper{handler: handler},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return g
}

func TestConfigFrom_AppendsAPIPath(t *testing.T) {
	tests := map[string]string{
		"":                               "https://gitlab.com/api/v4",
		"https://git.example.com/":       "https://git.example.com/api/v4",
		"https://git.example.com/api/v4": "https://git.example.com/api/v4",
	}
	for in, want := range tests {
		cfg := configFrom(&endpoint.ServiceConfig{Endpoint: in})
		if cfg.APIURL != want {
			t.Errorf("configFrom(%q).APIURL = %q, want %q", in, cfg.APIURL, want)
		}
	}
}

func TestFetchRepositoryData_MapsFields(t *testing.T) {
	var seen []*http.Request
	g := newStubAdapter(t, &seen)

	repo, err := g.FetchRepositoryData(context.Background(), "team/api")
	if err != nil {
		t.Fatalf("FetchRepositoryData failed: %v", err)
	}
	if repo.FullName != "team/api" || !repo.IsPrivate || repo.Stars != 4 || repo.DefaultBranch != "master" {
		t.Errorf("unexpected repo: %+v", repo)
	}
	if repo.Language != "" || repo.Size != 0 {
		t.Errorf("language and size have no GitLab equivalent: %+v", repo)
	}
	if repo.UpdatedAt.Month() != 4 {
		t.Errorf("UpdatedAt should come from last_activity_at: %v", repo.UpdatedAt)
	}
}

func TestListRepositories_MembershipOrdering(t *testing.T) {
	var seen []*http.Request
	g := newStubAdapter(t, &seen)

	repos, err := g.ListRepositories(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRepositories failed: %v", err)
	}
	if len(repos) != 1 {
		t.Fatalf("got %d repos, want 1", len(repos))
	}

	var listReq *http.Request
	for _, r := range seen {
		if r.URL.Path == "/api/v4/projects" {
			listReq = r
			break
		}
	}
	if listReq == nil {
		t.Fatal("no list request recorded")
	}
	q := listReq.URL.Query()
	if q.Get("membership") != "true" || q.Get("order_by") != "last_activity_at" || q.Get("sort") != "desc" || q.Get("per_page") != "10" {
		t.Errorf("unexpected query: %s", listReq.URL.RawQuery)
	}
}

func TestFetchProjectData(t *testing.T) {
	var seen []*http.Request
	g := newStubAdapter(t, &seen)

	p, err := g.FetchProjectData(context.Background(), "7")
	if err != nil {
		t.Fatalf("FetchProjectData failed: %v", err)
	}
	if p.ID != "7" || p.Key != "team/api" || p.ProjectType != endpoint.ServiceGitLab {
		t.Errorf("unexpected project: %+v", p)
	}
}

func TestValidateCredentials(t *testing.T) {
	var seen []*http.Request
	g := newStubAdapter(t, &seen)
	ok, err := g.ValidateCredentials(context.Background())
	if err != nil || !ok {
		t.Errorf("ValidateCredentials = %v, %v", ok, err)
	}
}
