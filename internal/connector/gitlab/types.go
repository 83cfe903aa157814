package gitlab

import (
	"strings"

	"github.com/nucleus/pm-sync/internal/endpoint"
)

// DefaultBaseURL is gitlab.com.
const DefaultBaseURL = "https://gitlab.com"

// MaxPerPage is the GitLab page size limit.
const MaxPerPage = 100

// Config holds GitLab connection configuration.
type Config struct {
	// APIURL is the v4 API root, derived from the service endpoint.
	APIURL string
	Token  string
}

func configFrom(svc *endpoint.ServiceConfig) *Config {
	base := strings.TrimSuffix(svc.Endpoint, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.Contains(base, "/api/v4") {
		base += "/api/v4"
	}
	return &Config{APIURL: base, Token: svc.Credential("token")}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Token == "" {
		return &endpoint.ValidationError{Field: "credentials.token", Message: "required"}
	}
	return nil
}

// =============================================================================
// GITLAB API RESPONSE TYPES
// =============================================================================

// User is the authenticated user returned by /user.
type User struct {
	Username string `json:"username"`
	ID       int64  `json:"id"`
}

// Project is a GitLab project (repository).
type Project struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	PathWithNamespace string   `json:"path_with_namespace"`
	WebURL            string   `json:"web_url"`
	Description       *string  `json:"description"`
	DefaultBranch     string   `json:"default_branch"`
	Visibility        string   `json:"visibility"`
	CreatedAt         string   `json:"created_at"`
	LastActivityAt    string   `json:"last_activity_at"`
	StarCount         int      `json:"star_count"`
	ForksCount        int      `json:"forks_count"`
	Topics            []string `json:"topics"`
}
