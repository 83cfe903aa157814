package github

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nucleus/pm-sync/internal/connector/http"
	"github.com/nucleus/pm-sync/internal/endpoint"
)

func newTestAdapter(t *testing.T, stub *stubServer, token string) *GitHub {
	t.Helper()
	g, err := New(&endpoint.ServiceConfig{
		ID:            "gh-" + t.Name(),
		Type:          endpoint.ServiceGitHub,
		Endpoint:      "http://stub.github.local",
		Credentials:   map[string]string{"token": token},
		RetryAttempts: 1,
		Transport:     stub.Transport(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g
}

func connected(t *testing.T, stub *stubServer) *GitHub {
	t.Helper()
	g := newTestAdapter(t, stub, stub.token)
	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return g
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(&endpoint.ServiceConfig{ID: "x", Type: endpoint.ServiceGitHub})
	var vErr *endpoint.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFetchRepositoryData_MapsFields(t *testing.T) {
	g := connected(t, newStubServer())

	repo, err := g.FetchRepositoryData(context.Background(), "owner/repo")
	if err != nil {
		t.Fatalf("FetchRepositoryData failed: %v", err)
	}
	if repo.Stars != 10 {
		t.Errorf("Stars = %d, want 10", repo.Stars)
	}
	if repo.FullName != "owner/repo" {
		t.Errorf("FullName = %q, want owner/repo", repo.FullName)
	}
	if repo.ID != "42" || repo.Forks != 3 || repo.Size != 1234 {
		t.Errorf("unexpected repo: %+v", repo)
	}
	if repo.DefaultBranch != "main" {
		t.Errorf("DefaultBranch = %q, want main fallback", repo.DefaultBranch)
	}
	if repo.Language != "" || repo.Topics == nil {
		t.Errorf("null fields should map to empty values: %+v", repo)
	}
	wantUpdated := time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC)
	if !repo.UpdatedAt.Equal(wantUpdated) || repo.UpdatedAt.Location() != time.UTC {
		t.Errorf("UpdatedAt = %v, want %v", repo.UpdatedAt, wantUpdated)
	}
}

func TestFetchRepositoryData_RejectsBadIdentifier(t *testing.T) {
	g := connected(t, newStubServer())
	if _, err := g.FetchRepositoryData(context.Background(), "justrepo"); err == nil {
		t.Fatal("expected error for identifier without owner")
	}
}

func TestFetchProjectData_RepositoryAsProject(t *testing.T) {
	g := connected(t, newStubServer())

	project, err := g.FetchProjectData(context.Background(), "owner/repo")
	if err != nil {
		t.Fatalf("FetchProjectData failed: %v", err)
	}
	if project.ID != "42" || project.Key != "owner/repo" || project.Status != "active" {
		t.Errorf("unexpected project: %+v", project)
	}
	if project.ProjectType != endpoint.ServiceGitHub {
		t.Errorf("ProjectType = %q", project.ProjectType)
	}
	if len(project.Members) != 0 || len(project.Workflows) != 0 {
		t.Errorf("expected no members or workflows")
	}
	if _, ok := any(g).(endpoint.WorkItemFetcher); ok {
		t.Error("GitHub adapter should not fetch work items")
	}
}

func TestListRepositories_PaginatesUntilEmptyPage(t *testing.T) {
	stub := newStubServer()
	g := connected(t, stub)

	repos, err := g.ListRepositories(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRepositories failed: %v", err)
	}
	if len(repos) != 5 {
		t.Fatalf("got %d repos, want 5", len(repos))
	}

	limited, err := g.ListRepositories(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRepositories failed: %v", err)
	}
	if len(limited) != 2 || limited[0].FullName != "owner/repo-1" {
		t.Errorf("unexpected limited result: %d repos", len(limited))
	}
}

func TestConnect_BadTokenIsAuthenticationError(t *testing.T) {
	g := newTestAdapter(t, newStubServer(), "wrong")
	err := g.Connect(context.Background())
	var authErr *http.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if g.IsConnected() {
		t.Error("adapter should not be connected")
	}
}

func TestValidateCredentials(t *testing.T) {
	stub := newStubServer()
	g := connected(t, stub)
	ok, err := g.ValidateCredentials(context.Background())
	if err != nil || !ok {
		t.Fatalf("ValidateCredentials = %v, %v", ok, err)
	}
}

func TestHealthCheck(t *testing.T) {
	g := connected(t, newStubServer())
	hc := g.HealthCheck(context.Background())
	if hc.Status != endpoint.HealthHealthy || hc.ResponseTimeMs == nil {
		t.Errorf("unexpected health: %+v", hc)
	}

	_ = g.Disconnect(context.Background())
	hc = g.HealthCheck(context.Background())
	if hc.Status != endpoint.HealthUnhealthy || hc.ErrorMessage == "" {
		t.Errorf("expected unhealthy after disconnect: %+v", hc)
	}
}

func TestAuthHeaders(t *testing.T) {
	g := newTestAdapter(t, newStubServer(), "abc")
	if got := g.AuthHeaders()["Authorization"]; got != "token abc" {
		t.Errorf("Authorization = %q", got)
	}
}
