// Package jira implements the Jira Cloud adapter (REST API v3).
//
// Projects carry their role actors as members and the union of issue-type
// statuses as workflow stages. Work items come from a JQL search ordered by
// last update, paged with startAt/maxResults until the reported total.
package jira
