package jira

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/nucleus/pm-sync/internal/endpoint"
)

// MaxResults is the Jira search page size limit used here.
const MaxResults = 50

// StoryPointFields are the custom fields Jira instances commonly use for
// story points, in lookup order.
var StoryPointFields = []string{
	"customfield_10016",
	"customfield_10002",
	"customfield_10004",
	"customfield_10008",
}

// Config holds Jira connection configuration.
type Config struct {
	// BaseURL is the Jira site (e.g. https://yoursite.atlassian.net).
	BaseURL string

	// Username is the account email.
	Username string

	// APIToken is the Atlassian API token.
	APIToken string
}

func configFrom(svc *endpoint.ServiceConfig) *Config {
	return &Config{
		BaseURL:  strings.TrimSuffix(svc.Endpoint, "/"),
		Username: svc.Credential("username"),
		APIToken: svc.Credential("api_token"),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return &endpoint.ValidationError{Field: "endpoint", Message: "required"}
	}
	if c.Username == "" {
		return &endpoint.ValidationError{Field: "credentials.username", Message: "required"}
	}
	if c.APIToken == "" {
		return &endpoint.ValidationError{Field: "credentials.api_token", Message: "required"}
	}
	return nil
}

// APIURL is the REST v3 root.
func (c *Config) APIURL() string {
	return c.BaseURL + "/rest/api/3"
}

// =============================================================================
// JIRA API RESPONSE TYPES
// =============================================================================

// Myself is the response of /myself.
type Myself struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
}

// Project represents a Jira project.
type Project struct {
	ID          string           `json:"id"`
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Self        string           `json:"self"`
	Category    *ProjectCategory `json:"projectCategory,omitempty"`
}

// ProjectCategory represents a project category.
type ProjectCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectSearchResult is a page of /project/search.
type ProjectSearchResult struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Values     []Project `json:"values"`
}

// IssueTypeStatuses is one element of /project/{id}/statuses.
type IssueTypeStatuses struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Statuses []Status `json:"statuses"`
}

// Status is a workflow status.
type Status struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory,omitempty"`
}

// StatusCategory groups statuses (To Do, In Progress, Done).
type StatusCategory struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Role is a project role with its actors.
type Role struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Actors []Actor `json:"actors"`
}

// Actor is a user or group attached to a role.
type Actor struct {
	ID          int64      `json:"id"`
	DisplayName string     `json:"displayName"`
	Type        string     `json:"type"`
	ActorUser   *ActorUser `json:"actorUser,omitempty"`
}

// ActorUser identifies the account behind a user role actor.
type ActorUser struct {
	AccountID string `json:"accountId"`
}

// UserRoleActor is the actor type for individual users.
const UserRoleActor = "atlassian-user-role-actor"

// SearchResult is a page of /search.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue represents a Jira issue.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the requested issue fields. Custom keeps every raw
// field so story points can be looked up by id.
type IssueFields struct {
	Summary        string          `json:"summary"`
	Description    json.RawMessage `json:"description"`
	IssueType      *Named          `json:"issuetype"`
	Status         *Status         `json:"status"`
	Priority       *Named          `json:"priority"`
	Assignee       *User           `json:"assignee"`
	Reporter       *User           `json:"reporter"`
	Created        string          `json:"created"`
	Updated        string          `json:"updated"`
	ResolutionDate *string         `json:"resolutiondate"`
	Labels         []string        `json:"labels"`

	Custom map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the raw map.
func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type plain IssueFields
	if err := json.Unmarshal(data, (*plain)(f)); err != nil {
		return err
	}
	return json.Unmarshal(data, &f.Custom)
}

// StoryPoints returns the first non-null numeric story point field.
func (f *IssueFields) StoryPoints() *float64 {
	for _, id := range StoryPointFields {
		raw, ok := f.Custom[id]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var v *float64
		if err := json.Unmarshal(raw, &v); err == nil && v != nil {
			return v
		}
	}
	return nil
}

// Named is any {name} object (issue type, priority).
type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// User is a Jira user reference.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}
