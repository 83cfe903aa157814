// Package gitlab implements the GitLab adapter. Like GitHub, repositories
// double as projects and work items are not fetched.
package gitlab
