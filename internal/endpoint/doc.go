// Package endpoint defines the contract every project-management backend
// adapter implements, the normalized records adapters return, and the
// registry that maps a service type to an adapter constructor.
//
// Architecture:
//
//	Adapter          - connection lifecycle, health, repositories, projects
//	WorkItemFetcher  - optional; backends with native issue tracking
//	Registry         - service type -> Factory
//
// Connector packages register their factory in init(); import
// pkg/connector to pull in every supported backend.
package endpoint
