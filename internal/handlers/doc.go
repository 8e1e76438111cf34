// Package handlers implements the GitLab webhook handlers run by the worker
// pipeline:
//
//   - reviewer_suggestion.go: posts the code owners of changed files on new merge requests.
//   - review_checklist.go: posts a review checklist on new merge requests.
//   - jira_update.go: moves linked Jira issues through review and progress, and
//     the DoneMergeRequests reconciler behind the deferred QA check.
//   - text.go: issue key extraction and resolution notes formatting.
//   - payload.go: the subset of GitLab event payloads the handlers read.
//
// Handlers only talk to Jira and GitLab through the IssueTracker and
// Repository interfaces so tests can substitute fakes.
package handlers
