// Package connector registers all backend adapters.
package connector

import (
	// Import all adapters to register them
	_ "github.com/nucleus/pm-sync/internal/connector/azuredevops"
	_ "github.com/nucleus/pm-sync/internal/connector/github"
	_ "github.com/nucleus/pm-sync/internal/connector/gitlab"
	_ "github.com/nucleus/pm-sync/internal/connector/jira"
)

// All imports trigger init() functions that register adapters.
