package github

import "github.com/nucleus/pm-sync/internal/endpoint"

// init registers the GitHub factory with the default registry.
func init() {
	endpoint.DefaultRegistry().Register(endpoint.ServiceGitHub, func(config *endpoint.ServiceConfig) (endpoint.Adapter, error) {
		g, err := New(config)
		if err != nil {
			return nil, err
		}
		return g, nil
	})
}
