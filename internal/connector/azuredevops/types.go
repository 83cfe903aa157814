package azuredevops

import (
	"strings"

	"github.com/nucleus/pm-sync/internal/endpoint"
)

const (
	// DefaultHost is the Azure DevOps Services host.
	DefaultHost = "https://dev.azure.com"

	// APIVersion is sent on every request.
	APIVersion = "7.0"

	// MaxTop caps project listing.
	MaxTop = 100

	// BatchSize is the work item bulk-fetch limit.
	BatchSize = 200
)

// Config holds Azure DevOps connection configuration.
type Config struct {
	// BaseURL is the organization URL, e.g. https://dev.azure.com/contoso.
	BaseURL      string
	Organization string
	Token        string
}

func configFrom(svc *endpoint.ServiceConfig) *Config {
	org := svc.Credential("organization")
	base := strings.TrimSuffix(svc.Endpoint, "/")
	if base == "" && org != "" {
		base = DefaultHost + "/" + org
	}
	return &Config{
		BaseURL:      base,
		Organization: org,
		Token:        svc.Credential("personal_access_token"),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Organization == "" {
		return &endpoint.ValidationError{Field: "credentials.organization", Message: "required"}
	}
	if c.Token == "" {
		return &endpoint.ValidationError{Field: "credentials.personal_access_token", Message: "required"}
	}
	return nil
}

// =============================================================================
// AZURE DEVOPS API RESPONSE TYPES
// =============================================================================

// List is the {count, value} envelope used by most endpoints.
type List[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

// Project is a team project.
type Project struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	URL            string `json:"url"`
	State          string `json:"state"`
	LastUpdateTime string `json:"lastUpdateTime"`
}

// Team is a project team.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TeamMember wraps the identity of a team member.
type TeamMember struct {
	Identity    Identity `json:"identity"`
	IsTeamAdmin bool     `json:"isTeamAdmin"`
}

// Identity is an Azure DevOps identity reference.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

// Repository is a Git repository.
type Repository struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	URL           string   `json:"url"`
	WebURL        string   `json:"webUrl"`
	DefaultBranch string   `json:"defaultBranch"`
	Size          int64    `json:"size"`
	Project       *Project `json:"project,omitempty"`
}

// WiqlResult is the response of a WIQL query.
type WiqlResult struct {
	WorkItems []struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	} `json:"workItems"`
}

// WorkItem is a work item with its field bag.
type WorkItem struct {
	ID     int64          `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Field reference names used for mapping.
const (
	FieldTitle       = "System.Title"
	FieldDescription = "System.Description"
	FieldType        = "System.WorkItemType"
	FieldState       = "System.State"
	FieldAssignedTo  = "System.AssignedTo"
	FieldCreatedBy   = "System.CreatedBy"
	FieldCreatedDate = "System.CreatedDate"
	FieldChangedDate = "System.ChangedDate"
	FieldTags        = "System.Tags"
	FieldPriority    = "Microsoft.VSTS.Common.Priority"
	FieldResolved    = "Microsoft.VSTS.Common.ResolvedDate"
	FieldClosed      = "Microsoft.VSTS.Common.ClosedDate"
	FieldEffort      = "Microsoft.VSTS.Scheduling.Effort"
	FieldStoryPoints = "Microsoft.VSTS.Scheduling.StoryPoints"
)
