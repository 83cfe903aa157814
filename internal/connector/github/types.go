package github

import (
	"strings"

	"github.com/nucleus/pm-sync/internal/endpoint"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// MaxPerPage is the GitHub page size limit.
const MaxPerPage = 100

// Config holds GitHub connection configuration.
type Config struct {
	// BaseURL is the API root (GitHub Enterprise: https://host/api/v3).
	BaseURL string

	// Token is a personal access token.
	Token string
}

func configFrom(svc *endpoint.ServiceConfig) *Config {
	base := strings.TrimSuffix(svc.Endpoint, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Config{BaseURL: base, Token: svc.Credential("token")}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Token == "" {
		return &endpoint.ValidationError{Field: "credentials.token", Message: "required"}
	}
	return nil
}

// =============================================================================
// GITHUB API RESPONSE TYPES
// =============================================================================

// User is the authenticated user returned by /user.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// Repo is a repository as returned by /repos and /user/repos.
type Repo struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	HTMLURL         string   `json:"html_url"`
	Description     *string  `json:"description"`
	Language        *string  `json:"language"`
	DefaultBranch   string   `json:"default_branch"`
	Private         bool     `json:"private"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
	Size            int64    `json:"size"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
	Topics          []string `json:"topics"`
}
