// Package azuredevops implements the Azure DevOps Services adapter.
//
// Authentication is HTTP Basic with an empty username and a personal access
// token. Work items are fetched in two steps: a WIQL query for ids, then a
// bulk fetch of their fields.
package azuredevops
