package jira

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nucleus/pm-sync/internal/connector/http"
	"github.com/nucleus/pm-sync/internal/endpoint"
	"github.com/nucleus/pm-sync/internal/logging"
)

// =============================================================================
// JIRA ADAPTER
// Implements endpoint.Adapter and endpoint.WorkItemFetcher
// =============================================================================

var (
	_ endpoint.Adapter         = (*Jira)(nil)
	_ endpoint.WorkItemFetcher = (*Jira)(nil)
)

var searchFields = []string{
	"summary", "description", "issuetype", "status", "priority",
	"assignee", "reporter", "created", "updated", "resolutiondate", "labels",
}

// Jira is the Jira Cloud adapter.
type Jira struct {
	*http.Base
	config *Config
}

// New creates an unconnected Jira adapter.
func New(svc *endpoint.ServiceConfig) (*Jira, error) {
	cfg := configFrom(svc)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cc := http.ClientConfigFor(svc, cfg.APIURL(), http.BasicAuth{
		Username: cfg.Username,
		Password: cfg.APIToken,
	})
	cc.Headers["Accept"] = "application/json"

	return &Jira{
		Base:   http.NewBase(svc, cc, "/myself"),
		config: cfg,
	}, nil
}

// ValidateCredentials checks that /myself returns an account id and email.
func (j *Jira) ValidateCredentials(ctx context.Context) (bool, error) {
	var me Myself
	if err := j.Client.GetJSON(ctx, "/myself", nil, &me); err != nil {
		var authErr *http.AuthenticationError
		if errors.As(err, &authErr) {
			return false, nil
		}
		return false, err
	}
	return me.AccountID != "" && me.EmailAddress != "", nil
}

// ListRepositories returns nothing; Jira has no repositories.
func (j *Jira) ListRepositories(ctx context.Context, limit int) ([]*endpoint.RepositoryData, error) {
	return []*endpoint.RepositoryData{}, nil
}

// FetchRepositoryData is unsupported.
func (j *Jira) FetchRepositoryData(ctx context.Context, repositoryID string) (*endpoint.RepositoryData, error) {
	return nil, fmt.Errorf("jira does not support repository data: %w", endpoint.ErrUnsupported)
}

// ListProjects pages through /project/search ordered by name.
func (j *Jira) ListProjects(ctx context.Context, limit int) ([]*endpoint.ProjectData, error) {
	query := url.Values{}
	query.Set("orderBy", "name")

	p := http.NewOffsetPaginator("/project/search", http.PageSize(limit, MaxResults), query)
	projects, err := http.Collect(ctx, j.Client, p, limit, func(resp *http.Response) ([]Project, error) {
		var page ProjectSearchResult
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
		return page.Values, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	out := make([]*endpoint.ProjectData, 0, len(projects))
	for i := range projects {
		out = append(out, j.toProjectData(&projects[i]))
	}
	return out, nil
}

// FetchProjectData fetches a project with its workflow statuses and role members.
func (j *Jira) FetchProjectData(ctx context.Context, projectID string) (*endpoint.ProjectData, error) {
	id := url.PathEscape(projectID)

	var project Project
	if err := j.Client.GetJSON(ctx, "/project/"+id, nil, &project); err != nil {
		return nil, fmt.Errorf("failed to fetch project %s: %w", projectID, err)
	}

	data := j.toProjectData(&project)

	workflows, err := j.fetchWorkflows(ctx, id)
	if err != nil {
		return nil, err
	}
	data.Workflows = workflows

	members, err := j.fetchMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	data.Members = members

	return data, nil
}

// fetchWorkflows flattens the statuses of every issue type, keeping the
// first occurrence of each status id.
func (j *Jira) fetchWorkflows(ctx context.Context, projectID string) ([]endpoint.WorkflowData, error) {
	var types []IssueTypeStatuses
	if err := j.Client.GetJSON(ctx, "/project/"+projectID+"/statuses", nil, &types); err != nil {
		return nil, fmt.Errorf("failed to fetch statuses: %w", err)
	}

	seen := make(map[string]bool)
	workflows := []endpoint.WorkflowData{}
	for _, it := range types {
		for _, st := range it.Statuses {
			if seen[st.ID] {
				continue
			}
			seen[st.ID] = true
			wf := endpoint.WorkflowData{ExternalID: st.ID, Name: st.Name}
			if st.StatusCategory != nil {
				wf.Category = st.StatusCategory.Name
			}
			workflows = append(workflows, wf)
		}
	}
	return workflows, nil
}

// fetchMembers resolves every project role and collects its user actors.
func (j *Jira) fetchMembers(ctx context.Context, projectID string) ([]endpoint.MemberData, error) {
	var roles map[string]string
	if err := j.Client.GetJSON(ctx, "/project/"+projectID+"/role", nil, &roles); err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)

	members := []endpoint.MemberData{}
	for _, name := range names {
		var role Role
		if err := j.Client.GetJSON(ctx, roles[name], nil, &role); err != nil {
			logging.Warn().Err(err).Str("project", projectID).Str("role", name).Msg("skipping jira role")
			continue
		}
		for _, actor := range role.Actors {
			if actor.Type != UserRoleActor {
				continue
			}
			m := endpoint.MemberData{Name: actor.DisplayName, Role: role.Name}
			if actor.ActorUser != nil {
				m.ExternalID = actor.ActorUser.AccountID
			}
			members = append(members, m)
		}
	}
	return members, nil
}

// FetchWorkItems searches issues of a project, most recently updated first.
func (j *Jira) FetchWorkItems(ctx context.Context, projectID string, limit int) ([]*endpoint.WorkItemData, error) {
	query := url.Values{}
	query.Set("jql", fmt.Sprintf("project = %q ORDER BY updated DESC", projectID))
	query.Set("fields", strings.Join(append(append([]string{}, searchFields...), StoryPointFields...), ","))

	p := http.NewOffsetPaginator("/search", http.PageSize(limit, MaxResults), query)
	issues, err := http.Collect(ctx, j.Client, p, limit, func(resp *http.Response) ([]Issue, error) {
		var page SearchResult
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
		return page.Issues, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search issues for %s: %w", projectID, err)
	}

	out := make([]*endpoint.WorkItemData, 0, len(issues))
	for i := range issues {
		out = append(out, j.toWorkItem(&issues[i]))
	}
	return out, nil
}

// =============================================================================
// MAPPING
// =============================================================================

func (j *Jira) toProjectData(p *Project) *endpoint.ProjectData {
	status := "active"
	if p.Category != nil && p.Category.Name != "" {
		status = p.Category.Name
	}
	return &endpoint.ProjectData{
		ID:          p.ID,
		Name:        p.Name,
		Key:         p.Key,
		Description: p.Description,
		URL:         p.Self,
		Status:      status,
		ProjectType: endpoint.ServiceJira,
		Members:     []endpoint.MemberData{},
		Workflows:   []endpoint.WorkflowData{},
	}
}

func (j *Jira) toWorkItem(issue *Issue) *endpoint.WorkItemData {
	f := &issue.Fields
	item := &endpoint.WorkItemData{
		ExternalID:  issue.Key,
		Title:       f.Summary,
		Description: documentText(f.Description),
		ItemType:    "Task",
		StoryPoints: f.StoryPoints(),
		Labels:      f.Labels,
		URL:         j.config.BaseURL + "/browse/" + issue.Key,
		CreatedAt:   endpoint.ParseTime(f.Created),
		UpdatedAt:   endpoint.ParseTime(f.Updated),
	}
	if item.Labels == nil {
		item.Labels = []string{}
	}
	if f.IssueType != nil && f.IssueType.Name != "" {
		item.ItemType = f.IssueType.Name
	}
	if f.Status != nil {
		item.Status = f.Status.Name
	}
	if f.Priority != nil {
		item.Priority = f.Priority.Name
	}
	if f.Assignee != nil {
		item.Assignee = f.Assignee.DisplayName
	}
	if f.Reporter != nil {
		item.Reporter = f.Reporter.DisplayName
	}
	if f.ResolutionDate != nil {
		item.ResolvedAt = endpoint.ParseTime(*f.ResolutionDate)
	}
	return item
}

// documentText flattens a description that is either a plain string or an
// Atlassian Document Format tree.
func documentText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var b strings.Builder
	collectText(doc, &b)
	return strings.TrimSpace(b.String())
}

func collectText(node map[string]any, b *strings.Builder) {
	if text, ok := node["text"].(string); ok {
		b.WriteString(text)
	}
	children, _ := node["content"].([]any)
	for _, child := range children {
		if m, ok := child.(map[string]any); ok {
			collectText(m, b)
		}
	}
	if t, _ := node["type"].(string); t == "paragraph" || t == "heading" || t == "listItem" {
		b.WriteString("\n")
	}
}
