package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nucleus/pm-sync/internal/connector/http"
	"github.com/nucleus/pm-sync/internal/endpoint"
)

var _ endpoint.Adapter = (*GitLab)(nil)

// GitLab is the GitLab v4 REST adapter.
type GitLab struct {
	*http.Base
	config *Config
}

// New creates an unconnected GitLab adapter.
func New(svc *endpoint.ServiceConfig) (*GitLab, error) {
	cfg := configFrom(svc)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cc := http.ClientConfigFor(svc, cfg.APIURL, http.BearerToken{Token: cfg.Token})
	cc.Headers["Accept"] = "application/json"

	return &GitLab{
		Base:   http.NewBase(svc, cc, "/user"),
		config: cfg,
	}, nil
}

// ValidateCredentials checks that /user returns a username and id.
func (g *GitLab) ValidateCredentials(ctx context.Context) (bool, error) {
	var user User
	if err := g.Client.GetJSON(ctx, "/user", nil, &user); err != nil {
		var authErr *http.AuthenticationError
		if errors.As(err, &authErr) {
			return false, nil
		}
		return false, err
	}
	return user.Username != "" && user.ID != 0, nil
}

// ListRepositories returns projects the caller is a member of, most recently
// active first.
func (g *GitLab) ListRepositories(ctx context.Context, limit int) ([]*endpoint.RepositoryData, error) {
	query := url.Values{}
	query.Set("order_by", "last_activity_at")
	query.Set("sort", "desc")
	query.Set("membership", "true")

	p := http.NewPagePaginator("/projects", http.PageSize(limit, MaxPerPage), query)
	projects, err := http.Collect(ctx, g.Client, p, limit, func(resp *http.Response) ([]Project, error) {
		var page []Project
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
		return page, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	out := make([]*endpoint.RepositoryData, 0, len(projects))
	for i := range projects {
		out = append(out, toRepositoryData(&projects[i]))
	}
	return out, nil
}

// ListProjects reports repositories as projects.
func (g *GitLab) ListProjects(ctx context.Context, limit int) ([]*endpoint.ProjectData, error) {
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

// FetchRepositoryData accepts a numeric id or "group/project" path.
func (g *GitLab) FetchRepositoryData(ctx context.Context, repositoryID string) (*endpoint.RepositoryData, error) {
	var project Project
	if err := g.Client.GetJSON(ctx, "/projects/"+url.PathEscape(repositoryID), nil, &project); err != nil {
		return nil, fmt.Errorf("failed to fetch project %s: %w", repositoryID, err)
	}
	return toRepositoryData(&project), nil
}

// FetchProjectData fetches a repository and reports it as a project.
func (g *GitLab) FetchProjectData(ctx context.Context, projectID string) (*endpoint.ProjectData, error) {
	repo, err := g.FetchRepositoryData(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return toProjectData(repo), nil
}

// =============================================================================
// MAPPING
// =============================================================================

func toRepositoryData(p *Project) *endpoint.RepositoryData {
	branch := p.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	topics := p.Topics
	if topics == nil {
		topics = []string{}
	}
	desc := ""
	if p.Description != nil {
		desc = *p.Description
	}
	return &endpoint.RepositoryData{
		ID:            strconv.FormatInt(p.ID, 10),
		Name:          p.Name,
		FullName:      p.PathWithNamespace,
		URL:           p.WebURL,
		Description:   desc,
		DefaultBranch: branch,
		IsPrivate:     p.Visibility == "private",
		CreatedAt:     endpoint.TimeOrZero(endpoint.ParseTime(p.CreatedAt)),
		UpdatedAt:     endpoint.TimeOrZero(endpoint.ParseTime(p.LastActivityAt)),
		Stars:         p.StarCount,
		Forks:         p.ForksCount,
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
		ProjectType: endpoint.ServiceGitLab,
		Members:     []endpoint.MemberData{},
		Workflows:   []endpoint.WorkflowData{},
	}
}
