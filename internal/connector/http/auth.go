package http

import (
	"encoding/base64"
	"net/http"
)

// =============================================================================
// AUTHENTICATION STRATEGIES
// =============================================================================

// AuthConfig applies credentials to an outgoing request. A nil AuthConfig
// sends requests unauthenticated.
type AuthConfig interface {
	Apply(req *http.Request)
}

// BasicAuth uses HTTP Basic Authentication. An empty username is allowed
// (Azure DevOps personal access tokens).
type BasicAuth struct {
	Username string
	Password string
}

// Apply adds Basic auth header to the request.
func (a BasicAuth) Apply(req *http.Request) {
	if a.Username == "" && a.Password == "" {
		return
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
	req.Header.Set("Authorization", "Basic "+credentials)
}

// BearerToken uses Bearer token authentication.
type BearerToken struct {
	Token string
}

// Apply adds Bearer token header to the request.
func (a BearerToken) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// TokenAuth sends "Authorization: token <T>", the GitHub personal token form.
type TokenAuth struct {
	Token string
}

// Apply adds the token header to the request.
func (a TokenAuth) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "token "+a.Token)
}
