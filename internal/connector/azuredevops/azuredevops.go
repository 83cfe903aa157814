package azuredevops

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nucleus/pm-sync/internal/connector/http"
	"github.com/nucleus/pm-sync/internal/endpoint"
	"github.com/nucleus/pm-sync/internal/logging"
)

var (
	_ endpoint.Adapter         = (*AzureDevOps)(nil)
	_ endpoint.WorkItemFetcher = (*AzureDevOps)(nil)
)

// AzureDevOps is the Azure DevOps Services adapter.
type AzureDevOps struct {
	*http.Base
	config *Config
}

// New creates an unconnected Azure DevOps adapter.
func New(svc *endpoint.ServiceConfig) (*AzureDevOps, error) {
	cfg := configFrom(svc)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cc := http.ClientConfigFor(svc, cfg.BaseURL, http.BasicAuth{Password: cfg.Token})
	cc.Headers["Accept"] = "application/json"

	return &AzureDevOps{
		Base:   http.NewBase(svc, cc, "/_apis/projects?api-version="+APIVersion),
		config: cfg,
	}, nil
}

func apiQuery(extra map[string]string) url.Values {
	q := url.Values{}
	q.Set("api-version", APIVersion)
	for k, v := range extra {
		q.Set(k, v)
	}
	return q
}

// ValidateCredentials checks that the project listing returns a value array.
func (a *AzureDevOps) ValidateCredentials(ctx context.Context) (bool, error) {
	var out struct {
		Value []Project `json:"value"`
	}
	if err := a.Client.GetJSON(ctx, "/_apis/projects", apiQuery(nil), &out); err != nil {
		var authErr *http.AuthenticationError
		if errors.As(err, &authErr) {
			return false, nil
		}
		return false, err
	}
	return out.Value != nil, nil
}

// ListProjects lists team projects.
func (a *AzureDevOps) ListProjects(ctx context.Context, limit int) ([]*endpoint.ProjectData, error) {
	projects, err := a.listProjects(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*endpoint.ProjectData, 0, len(projects))
	for i := range projects {
		out = append(out, a.toProjectData(&projects[i]))
	}
	return out, nil
}

func (a *AzureDevOps) listProjects(ctx context.Context, limit int) ([]Project, error) {
	var list List[Project]
	q := apiQuery(map[string]string{"$top": strconv.Itoa(http.PageSize(limit, MaxTop))})
	if err := a.Client.GetJSON(ctx, "/_apis/projects", q, &list); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return list.Value, nil
}

// ListRepositories collects Git repositories across projects.
func (a *AzureDevOps) ListRepositories(ctx context.Context, limit int) ([]*endpoint.RepositoryData, error) {
	projects, err := a.listProjects(ctx, MaxTop)
	if err != nil {
		return nil, err
	}

	out := []*endpoint.RepositoryData{}
	for _, p := range projects {
		var list List[Repository]
		path := "/" + url.PathEscape(p.Name) + "/_apis/git/repositories"
		if err := a.Client.GetJSON(ctx, path, apiQuery(nil), &list); err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s: %w", p.Name, err)
		}
		for i := range list.Value {
			out = append(out, a.toRepositoryData(p.Name, &list.Value[i]))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// FetchRepositoryData fetches "project/repository".
func (a *AzureDevOps) FetchRepositoryData(ctx context.Context, repositoryID string) (*endpoint.RepositoryData, error) {
	project, repo, ok := strings.Cut(strings.Trim(repositoryID, "/"), "/")
	if !ok || project == "" || repo == "" {
		return nil, &endpoint.ValidationError{Field: "repositoryId", Message: "expected project/repository"}
	}

	var r Repository
	path := "/" + url.PathEscape(project) + "/_apis/git/repositories/" + url.PathEscape(repo)
	if err := a.Client.GetJSON(ctx, path, apiQuery(nil), &r); err != nil {
		return nil, fmt.Errorf("failed to fetch repository %s: %w", repositoryID, err)
	}
	return a.toRepositoryData(project, &r), nil
}

// FetchProjectData fetches a project and the members of all its teams.
func (a *AzureDevOps) FetchProjectData(ctx context.Context, projectID string) (*endpoint.ProjectData, error) {
	id := url.PathEscape(projectID)

	var project Project
	if err := a.Client.GetJSON(ctx, "/_apis/projects/"+id, apiQuery(nil), &project); err != nil {
		return nil, fmt.Errorf("failed to fetch project %s: %w", projectID, err)
	}
	data := a.toProjectData(&project)

	var teams List[Team]
	if err := a.Client.GetJSON(ctx, "/_apis/projects/"+id+"/teams", apiQuery(nil), &teams); err != nil {
		return nil, fmt.Errorf("failed to fetch teams of %s: %w", projectID, err)
	}
	for _, team := range teams.Value {
		var members List[TeamMember]
		path := "/_apis/projects/" + id + "/teams/" + url.PathEscape(team.ID) + "/members"
		if err := a.Client.GetJSON(ctx, path, apiQuery(nil), &members); err != nil {
			logging.Warn().Err(err).Str("project", projectID).Str("team", team.Name).Msg("skipping azure devops team")
			continue
		}
		for _, m := range members.Value {
			member := endpoint.MemberData{
				ExternalID: m.Identity.UniqueName,
				Name:       m.Identity.DisplayName,
				Team:       team.Name,
				Role:       "member",
			}
			if m.IsTeamAdmin {
				member.Role = "admin"
			}
			if strings.Contains(m.Identity.UniqueName, "@") {
				member.Email = m.Identity.UniqueName
			}
			data.Members = append(data.Members, member)
		}
	}
	return data, nil
}

// FetchWorkItems runs a WIQL query for the project's ids, newest change
// first, then bulk-fetches their fields.
func (a *AzureDevOps) FetchWorkItems(ctx context.Context, projectID string, limit int) ([]*endpoint.WorkItemData, error) {
	wiql := map[string]string{
		"query": fmt.Sprintf(
			"SELECT [System.Id], [System.Title], [System.State], [System.WorkItemType] FROM WorkItems WHERE [System.TeamProject] = '%s' ORDER BY [System.ChangedDate] DESC",
			strings.ReplaceAll(projectID, "'", "''"),
		),
	}

	var result WiqlResult
	path := "/" + url.PathEscape(projectID) + "/_apis/wit/wiql"
	if err := a.Client.PostJSON(ctx, path, apiQuery(nil), wiql, &result); err != nil {
		return nil, fmt.Errorf("failed to query work items of %s: %w", projectID, err)
	}

	ids := make([]string, 0, len(result.WorkItems))
	for _, wi := range result.WorkItems {
		ids = append(ids, strconv.FormatInt(wi.ID, 10))
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*endpoint.WorkItemData, 0, len(ids))
	for start := 0; start < len(ids); start += BatchSize {
		end := start + BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		var batch List[WorkItem]
		q := apiQuery(map[string]string{"ids": strings.Join(ids[start:end], ","), "$expand": "fields"})
		if err := a.Client.GetJSON(ctx, "/_apis/wit/workitems", q, &batch); err != nil {
			return nil, fmt.Errorf("failed to fetch work items: %w", err)
		}
		for i := range batch.Value {
			out = append(out, a.toWorkItem(projectID, &batch.Value[i]))
		}
	}
	return out, nil
}

// =============================================================================
// MAPPING
// =============================================================================

func (a *AzureDevOps) toProjectData(p *Project) *endpoint.ProjectData {
	status := p.State
	if status == "" {
		status = "wellFormed"
	}
	updated := endpoint.TimeOrZero(endpoint.ParseTime(p.LastUpdateTime))
	return &endpoint.ProjectData{
		ID:          p.ID,
		Name:        p.Name,
		Key:         p.Name,
		Description: p.Description,
		URL:         a.config.BaseURL + "/" + url.PathEscape(p.Name),
		Status:      status,
		CreatedAt:   updated,
		UpdatedAt:   updated,
		ProjectType: endpoint.ServiceAzureDevOps,
		Members:     []endpoint.MemberData{},
		Workflows:   []endpoint.WorkflowData{},
	}
}

func (a *AzureDevOps) toRepositoryData(project string, r *Repository) *endpoint.RepositoryData {
	branch := strings.TrimPrefix(r.DefaultBranch, "refs/heads/")
	if branch == "" {
		branch = "main"
	}
	return &endpoint.RepositoryData{
		ID:            r.ID,
		Name:          r.Name,
		FullName:      project + "/" + r.Name,
		URL:           r.WebURL,
		DefaultBranch: branch,
		IsPrivate:     true,
		Size:          r.Size,
		Topics:        []string{},
	}
}

func (a *AzureDevOps) toWorkItem(project string, wi *WorkItem) *endpoint.WorkItemData {
	f := wi.Fields
	item := &endpoint.WorkItemData{
		ExternalID:  strconv.FormatInt(wi.ID, 10),
		Title:       str(f[FieldTitle]),
		Description: str(f[FieldDescription]),
		ItemType:    str(f[FieldType]),
		Status:      str(f[FieldState]),
		Priority:    str(f[FieldPriority]),
		Assignee:    identityName(f[FieldAssignedTo]),
		Reporter:    identityName(f[FieldCreatedBy]),
		StoryPoints: firstNumber(f[FieldEffort], f[FieldStoryPoints]),
		Labels:      splitTags(str(f[FieldTags])),
		URL:         a.config.BaseURL + "/" + url.PathEscape(project) + "/_workitems/edit/" + strconv.FormatInt(wi.ID, 10),
		CreatedAt:   endpoint.ParseTime(str(f[FieldCreatedDate])),
		UpdatedAt:   endpoint.ParseTime(str(f[FieldChangedDate])),
		ResolvedAt:  endpoint.ParseTime(str(f[FieldResolved])),
	}
	if item.ItemType == "" {
		item.ItemType = "Task"
	}
	if item.ResolvedAt == nil {
		item.ResolvedAt = endpoint.ParseTime(str(f[FieldClosed]))
	}
	return item
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// identityName reads displayName from an identity object or returns a
// plain string value as is.
func identityName(v any) string {
	if m, ok := v.(map[string]any); ok {
		return str(m["displayName"])
	}
	return str(v)
}

func firstNumber(values ...any) *float64 {
	for _, v := range values {
		if n, ok := v.(float64); ok {
			return &n
		}
	}
	return nil
}

// splitTags parses "a; b;c" into trimmed, non-empty labels.
func splitTags(tags string) []string {
	out := []string{}
	for _, t := range strings.Split(tags, ";") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
