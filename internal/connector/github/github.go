package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nucleus/pm-sync/internal/connector/http"
	"github.com/nucleus/pm-sync/internal/endpoint"
)

var _ endpoint.Adapter = (*GitHub)(nil)

// GitHub is the GitHub REST adapter.
type GitHub struct {
	*http.Base
	config *Config
}

// New creates an unconnected GitHub adapter.
func New(svc *endpoint.ServiceConfig) (*GitHub, error) {
	cfg := configFrom(svc)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cc := http.ClientConfigFor(svc, cfg.BaseURL, http.TokenAuth{Token: cfg.Token})
	cc.Headers["Accept"] = "application/vnd.github.v3+json"

	return &GitHub{
		Base:   http.NewBase(svc, cc, "/user"),
		config: cfg,
	}, nil
}

// ValidateCredentials checks that /user returns a login and id.
func (g *GitHub) ValidateCredentials(ctx context.Context) (bool, error) {
	var user User
	if err := g.Client.GetJSON(ctx, "/user", nil, &user); err != nil {
		var authErr *http.AuthenticationError
		if errors.As(err, &authErr) {
			return false, nil
		}
		return false, err
	}
	return user.Login != "" && user.ID != 0, nil
}

// ListRepositories returns the caller's repositories, most recently updated first.
func (g *GitHub) ListRepositories(ctx context.Context, limit int) ([]*endpoint.RepositoryData, error) {
	query := url.Values{}
	query.Set("sort", "updated")
	query.Set("direction", "desc")

	p := http.NewPagePaginator("/user/repos", http.PageSize(limit, MaxPerPage), query)
	repos, err := http.Collect(ctx, g.Client, p, limit, func(resp *http.Response) ([]Repo, error) {
		var page []Repo
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
		return page, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	out := make([]*endpoint.RepositoryData, 0, len(repos))
	for i := range repos {
		out = append(out, toRepositoryData(&repos[i]))
	}
	return out, nil
}

// ListProjects reports repositories as projects.
func (g *GitHub) ListProjects(ctx context.Context, limit int) ([]*endpoint.ProjectData, error) {
	repos, err := g.ListRepositories(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*endpoint.ProjectData, 0, len(repos))
	for _, r := range repos {
		out = append(out, toProjectData(r))
	}
	return out, nil
}

// FetchRepositoryData fetches "owner/repo".
func (g *GitHub) FetchRepositoryData(ctx context.Context, repositoryID string) (*endpoint.RepositoryData, error) {
	owner, name, ok := strings.Cut(strings.Trim(repositoryID, "/"), "/")
	if !ok || owner == "" || name == "" {
		return nil, &endpoint.ValidationError{Field: "repositoryId", Message: "expected owner/repo"}
	}

	var repo Repo
	path := "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name)
	if err := g.Client.GetJSON(ctx, path, nil, &repo); err != nil {
		return nil, fmt.Errorf("failed to fetch repository %s: %w", repositoryID, err)
	}
	return toRepositoryData(&repo), nil
}

// FetchProjectData fetches the repository "owner/repo" as a project.
func (g *GitHub) FetchProjectData(ctx context.Context, projectID string) (*endpoint.ProjectData, error) {
	repo, err := g.FetchRepositoryData(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return toProjectData(repo), nil
}

// =============================================================================
// MAPPING
// =============================================================================

func toRepositoryData(r *Repo) *endpoint.RepositoryData {
	branch := r.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	return &endpoint.RepositoryData{
		ID:            strconv.FormatInt(r.ID, 10),
		Name:          r.Name,
		FullName:      r.FullName,
		URL:           r.HTMLURL,
		Description:   deref(r.Description),
		Language:      deref(r.Language),
		DefaultBranch: branch,
		IsPrivate:     r.Private,
		CreatedAt:     endpoint.TimeOrZero(endpoint.ParseTime(r.CreatedAt)),
		UpdatedAt:     endpoint.TimeOrZero(endpoint.ParseTime(r.UpdatedAt)),
		Size:          r.Size,
		Stars:         r.StargazersCount,
		Forks:         r.ForksCount,
		Topics:        topics,
	}
}

func toProjectData(r *endpoint.RepositoryData) *endpoint.ProjectData {
	return &endpoint.ProjectData{
		ID:          r.ID,
		Name:        r.Name,
		Key:         r.FullName,
		Description: r.Description,
		URL:         r.URL,
		Status:      "active",
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ProjectType: endpoint.ServiceGitHub,
		Members:     []endpoint.MemberData{},
		Workflows:   []endpoint.WorkflowData{},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
