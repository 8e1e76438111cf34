package handlers

import (
	"strconv"
	"strings"

	"webhookd/internal/worker"
)

// Event kinds as reported in the payload's object_kind.
const (
	KindMergeRequest = "merge_request"
	KindPush         = "push"
)

// headerKinds maps X-Gitlab-Event header values to object kinds.
var headerKinds = map[string]string{
	"Merge Request Hook": KindMergeRequest,
	"Push Hook":          KindPush,
}

// kindOf resolves the event kind from the payload, falling back to the
// webhook header value the event was queued under.
func kindOf(ev worker.Event) string {
	if k := ev.Payload.Str("object_kind"); k != "" {
		return k
	}
	if k := ev.Payload.Str("event_type"); k != "" {
		return k
	}
	if k, ok := headerKinds[ev.Kind]; ok {
		return k
	}
	return strings.ToLower(strings.TrimSpace(ev.Kind))
}

type gitlabUser struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type gitlabProject struct {
	ID                int    `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
}

type fieldChange struct {
	Previous any `json:"previous"`
	Current  any `json:"current"`
}

type mergeRequestEvent struct {
	ObjectKind       string        `json:"object_kind"`
	EventType        string        `json:"event_type"`
	User             gitlabUser    `json:"user"`
	Project          gitlabProject `json:"project"`
	ObjectAttributes struct {
		ID           int    `json:"id"`
		IID          int    `json:"iid"`
		Action       string `json:"action"`
		SourceBranch string `json:"source_branch"`
		TargetBranch string `json:"target_branch"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		URL          string `json:"url"`
		Draft        bool   `json:"draft"`
	} `json:"object_attributes"`
	Changes struct {
		Draft       *fieldChange `json:"draft"`
		Description *fieldChange `json:"description"`
		Title       *fieldChange `json:"title"`
	} `json:"changes"`
}

func (e mergeRequestEvent) idString() string { return strconv.Itoa(e.ObjectAttributes.ID) }

// draftNow reports the draft flag after an update, per the changes block.
func (e mergeRequestEvent) draftNow() bool {
	if e.Changes.Draft == nil {
		return false
	}
	b, _ := e.Changes.Draft.Current.(bool)
	return b
}

type pushCommit struct {
	Message string `json:"message"`
	Title   string `json:"title"`
}

type pushEvent struct {
	ObjectKind string       `json:"object_kind"`
	Ref        string       `json:"ref"`
	UserName   string       `json:"user_name"`
	Commits    []pushCommit `json:"commits"`
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
