package jira

import "github.com/nucleus/pm-sync/internal/endpoint"

// init registers the Jira factory with the default registry.
func init() {
	endpoint.DefaultRegistry().Register(endpoint.ServiceJira, func(config *endpoint.ServiceConfig) (endpoint.Adapter, error) {
		j, err := New(config)
		if err != nil {
			return nil, err
		}
		return j, nil
	})
}
