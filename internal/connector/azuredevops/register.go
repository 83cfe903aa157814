package azuredevops

import "github.com/nucleus/pm-sync/internal/endpoint"

// init registers the Azure DevOps factory with the default registry.
func init() {
	endpoint.DefaultRegistry().Register(endpoint.ServiceAzureDevOps, func(config *endpoint.ServiceConfig) (endpoint.Adapter, error) {
		a, err := New(config)
		if err != nil {
			return nil, err
		}
		return a, nil
	})
}
