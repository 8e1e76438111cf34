package handlers

import (
	"context"

	"webhookd/internal/tracker"
)

// IssueTracker is the subset of the Jira client used by the handlers.
type IssueTracker interface {
	Issue(ctx context.Context, key string) (tracker.Issue, error)
	AllMergeRequestsDone(ctx context.Context, key string) (bool, error)
	Transition(ctx context.Context, key, name string, fields map[string]any) error
	UpdateFields(ctx context.Context, key string, fields map[string]any) error
	FieldID(name string) (string, bool)
	FindUser(ctx context.Context, query string) (tracker.User, error)
	Assign(ctx context.Context, key string, u tracker.User) error
}

// Repository is the subset of the GitLab client used by the handlers.
type Repository interface {
	RawFile(ctx context.Context, projectID int, path string, refs ...string) (string, error)
	ChangedFiles(ctx context.Context, projectID, iid int) ([]string, error)
	PostNote(ctx context.Context, projectID, iid int, body string) error
}

// Defaults applied when corresponding JiraConfig fields are unset.
var (
	defaultOpenStatuses       = []string{"Open", "Reopened"}
	defaultInProgressStatuses = []string{"In Progress"}
	defaultInReviewStatuses   = []string{"In Review", "Ready To Merge"}
)

const (
	defaultResolutionNotesField    = "Resolution Notes"
	defaultDevResolutionField      = "Dev Resolution"
	defaultFinalTransition         = "Request QA"
	defaultStartReviewTransition   = "Start Review"
	defaultStartProgressTransition = "Start Progress On Push"
)

// JiraConfig tunes issue transitions driven by merge request and push events.
type JiraConfig struct {
	EnabledProjectKeys      []string
	FinalTransition         string
	StartReviewTransition   string
	StartProgressTransition string
	OpenStatuses            []string
	InProgressStatuses      []string
	InReviewStatuses        []string
	ResolutionNotesField    string
	DevResolutionField      string
}

func (c JiraConfig) withDefaults() JiraConfig {
	if c.FinalTransition == "" {
		c.FinalTransition = defaultFinalTransition
	}
	if c.StartReviewTransition == "" {
		c.StartReviewTransition = defaultStartReviewTransition
	}
	if c.StartProgressTransition == "" {
		c.StartProgressTransition = defaultStartProgressTransition
	}
	if len(c.OpenStatuses) == 0 {
		c.OpenStatuses = defaultOpenStatuses
	}
	if len(c.InProgressStatuses) == 0 {
		c.InProgressStatuses = defaultInProgressStatuses
	}
	if len(c.InReviewStatuses) == 0 {
		c.InReviewStatuses = defaultInReviewStatuses
	}
	if c.ResolutionNotesField == "" {
		c.ResolutionNotesField = defaultResolutionNotesField
	}
	if c.DevResolutionField == "" {
		c.DevResolutionField = defaultDevResolutionField
	}
	return c
}

// NoteConfig configures a handler that posts a note on newly opened merge
// requests.
type NoteConfig struct {
	EnabledProjects []string
	TargetBranches  []string
	// RemoteFile is looked up in the project repository first.
	RemoteFile string
	// LocalFile is the fallback content shipped with the service.
	LocalFile string
}

// applies reports whether a merge request event should receive the note.
func (c NoteConfig) applies(mr mergeRequestEvent) bool {
	return contains(c.EnabledProjects, mr.Project.PathWithNamespace) &&
		contains(c.TargetBranches, mr.ObjectAttributes.TargetBranch) &&
		mr.ObjectAttributes.Action == "open"
}
