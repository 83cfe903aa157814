// Package github implements the GitHub adapter. GitHub has no native
// project-management concept here, so each repository is also reported as a
// project without members or workflow stages.
package github
