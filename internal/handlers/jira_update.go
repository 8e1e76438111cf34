package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"webhookd/internal/tracker"
	"webhookd/internal/worker"
)

// JiraUpdate moves Jira issues along as merge requests and pushes reference
// them, and schedules a deferred check when a merge request is closed or
// merged.
type JiraUpdate struct {
	cfg       JiraConfig
	jira      IssueTracker
	scheduler worker.Scheduler
	log       zerolog.Logger
}

func NewJiraUpdate(log zerolog.Logger, cfg JiraConfig, jira IssueTracker, scheduler worker.Scheduler) *JiraUpdate {
	return &JiraUpdate{cfg: cfg.withDefaults(), jira: jira, scheduler: scheduler, log: log}
}

func (h *JiraUpdate) Name() string { return "jira_update" }

func (h *JiraUpdate) Process(ctx context.Context, ev worker.Event) error {
	switch kindOf(ev) {
	case KindMergeRequest:
		var mr mergeRequestEvent
		if err := ev.Payload.Decode(&mr); err != nil {
			return fmt.Errorf("decode merge request: %w", err)
		}
		var errs []error
		if err := h.transitionInReviewOrUpdate(ctx, mr); err != nil {
			errs = append(errs, fmt.Errorf("in review/update: %w", err))
		}
		if err := h.scheduleWhenDone(mr); err != nil {
			errs = append(errs, fmt.Errorf("schedule done check: %w", err))
		}
		return errors.Join(errs...)
	case KindPush:
		var push pushEvent
		if err := ev.Payload.Decode(&push); err != nil {
			return fmt.Errorf("decode push: %w", err)
		}
		if err := h.transitionInProgressOnPush(ctx, push); err != nil {
			return fmt.Errorf("in progress on push: %w", err)
		}
	}
	return nil
}

func (h *JiraUpdate) eligible(key string) bool {
	prefix, _, ok := strings.Cut(key, "-")
	return ok && contains(h.cfg.EnabledProjectKeys, prefix)
}

func (h *JiraUpdate) scheduleWhenDone(mr mergeRequestEvent) error {
	action := mr.ObjectAttributes.Action
	if action != "close" && action != "merge" {
		return nil
	}
	if h.scheduler == nil {
		return nil
	}
	branch, title := mr.ObjectAttributes.SourceBranch, mr.ObjectAttributes.Title
	keys := unionKeys(ExtractIssueKeys(branch), ExtractIssueKeys(title))
	if len(keys) == 0 {
		h.log.Warn().Str("branch", branch).Str("title", title).Msg("no issue keys found in branch name and title")
		return nil
	}
	var eligible []string
	for _, k := range keys {
		if h.eligible(k) {
			eligible = append(eligible, k)
		}
	}
	h.log.Info().Strs("keys", eligible).Msg("eligible issues for transition")
	if len(eligible) == 0 {
		h.log.Warn().Strs("keys", keys).Msg("none of the issue keys belong to eligible projects")
		return nil
	}
	for _, k := range eligible {
		h.scheduler.Schedule(k)
	}
	return nil
}

func (h *JiraUpdate) transitionInReviewOrUpdate(ctx context.Context, mr mergeRequestEvent) error {
	oa := mr.ObjectAttributes
	var created, draft, closed, merged bool
	draftUpdated := mr.Changes.Draft != nil
	descriptionUpdated := mr.Changes.Description != nil || mr.Changes.Title != nil

	switch oa.Action {
	case "open":
		created, draftUpdated, descriptionUpdated = true, true, true
		draft = oa.Draft
	case "update":
		draft = mr.draftNow()
	case "merge":
		merged = true
	case "close":
		closed = true
	}
	if !created && !draftUpdated && !descriptionUpdated && !closed && !merged {
		h.log.Info().Msg("no relevant changes in merge request to update issue in jira")
		return nil
	}

	title := SanitizeTitle(oa.Title)
	keys := unionKeys(ExtractIssueKeys(oa.SourceBranch), ExtractIssueKeys(title))
	if len(keys) == 0 {
		h.log.Warn().Str("branch", oa.SourceBranch).Str("title", title).Msg("no issue keys found in merge request")
		return nil
	}

	notes := CreateResolutionNotes(merged, closed, mr.idString(), title, oa.URL, SanitizeDescription(oa.Description))
	toReview := (created || draftUpdated) && !draft
	updateOnly := created || closed || merged || descriptionUpdated
	notesField, hasNotesField := h.jira.FieldID(h.cfg.ResolutionNotesField)
	if !hasNotesField {
		return fmt.Errorf("unknown jira field %q", h.cfg.ResolutionNotesField)
	}

	var errs []error
	for _, key := range keys {
		issue, err := h.jira.Issue(ctx, key)
		if err != nil {
			h.log.Warn().Err(err).Str("key", key).Msg("non-existent issue key, skipping")
			continue
		}
		existing, _ := issue.Fields[notesField].(string)
		updated := UpdateResolutionNotes(existing, mr.idString(), notes)
		switch {
		case toReview:
			err = h.transitionInReview(ctx, issue, notesField, updated)
		case updateOnly:
			err = h.updateResolutionNotes(ctx, issue, notesField, updated)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *JiraUpdate) updateResolutionNotes(ctx context.Context, issue tracker.Issue, fieldID, notes string) error {
	if !contains(h.cfg.InReviewStatuses, issue.Status) {
		return nil
	}
	h.log.Info().Str("key", issue.Key).Msg("updating resolution notes")
	return h.jira.UpdateFields(ctx, issue.Key, map[string]any{fieldID: notes})
}

func (h *JiraUpdate) transitionInReview(ctx context.Context, issue tracker.Issue, fieldID, notes string) error {
	if !contains(h.cfg.InProgressStatuses, issue.Status) {
		return nil
	}
	fields := map[string]any{fieldID: notes}
	if id, ok := h.jira.FieldID(h.cfg.DevResolutionField); ok {
		fields[id] = map[string]any{"value": "Done"}
	}
	return h.transition(ctx, issue, h.cfg.StartReviewTransition, fields)
}

func (h *JiraUpdate) transition(ctx context.Context, issue tracker.Issue, name string, fields map[string]any) error {
	h.log.Info().Str("key", issue.Key).Str("transition", name).Str("from", issue.Status).Msg("executing issue transition")
	if err := h.jira.Transition(ctx, issue.Key, name, fields); err != nil {
		e := h.log.Error()
		if tracker.IsTransitionUnavailable(err) {
			e = h.log.Warn()
		}
		e.Err(err).Str("key", issue.Key).Str("transition", name).Msg("failed to execute issue transition")
		return err
	}
	return nil
}

func (h *JiraUpdate) transitionInProgressOnPush(ctx context.Context, push pushEvent) error {
	keys := ExtractIssueKeys(push.Ref)
	// commit messages are only consulted when the ref names no issue
	if len(keys) == 0 {
		var lists [][]string
		for _, c := range push.Commits {
			lists = append(lists, ExtractIssueKeys(c.Message), ExtractIssueKeys(c.Title))
		}
		keys = unionKeys(lists...)
	}
	if len(keys) == 0 {
		h.log.Warn().Str("ref", push.Ref).Msg("no issue keys found in push event ref and commit data")
		return nil
	}
	h.log.Info().Strs("keys", keys).Msg("transitioning jira issues to in progress on push")

	user, err := h.jira.FindUser(ctx, push.UserName)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range keys {
		issue, err := h.jira.Issue(ctx, key)
		if err != nil {
			h.log.Warn().Err(err).Str("key", key).Msg("non-existent issue key, skipping")
			continue
		}
		if !contains(h.cfg.OpenStatuses, issue.Status) {
			h.log.Warn().Str("key", key).Str("status", issue.Status).Msg("not transitioning, issue not open")
			continue
		}
		if err := h.transition(ctx, issue, h.cfg.StartProgressTransition, nil); err != nil {
			errs = append(errs, err)
			continue
		}
		h.log.Info().Str("key", key).Str("assignee", user.DisplayName).Msg("assigning issue")
		if err := h.jira.Assign(ctx, key, user); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DoneMergeRequests is the deferred check reconciler: it waits until every
// merge request linked to an issue is closed and then moves the issue to QA.
type DoneMergeRequests struct {
	cfg  JiraConfig
	jira IssueTracker
	log  zerolog.Logger
}

func NewDoneMergeRequests(log zerolog.Logger, cfg JiraConfig, jira IssueTracker) *DoneMergeRequests {
	return &DoneMergeRequests{cfg: cfg.withDefaults(), jira: jira, log: log}
}

// Check reports whether the issue has linked merge requests and none open.
func (d *DoneMergeRequests) Check(ctx context.Context, key string) (bool, error) {
	if _, err := d.jira.Issue(ctx, key); err != nil {
		if tracker.IsNotFound(err) {
			return false, fmt.Errorf("%w: %v", worker.ErrNotFound, err)
		}
		return false, err
	}
	return d.jira.AllMergeRequestsDone(ctx, key)
}

// Reconcile applies the final transition when the issue is still in review.
func (d *DoneMergeRequests) Reconcile(ctx context.Context, key string) error {
	issue, err := d.jira.Issue(ctx, key)
	if err != nil {
		return err
	}
	if !contains(d.cfg.InReviewStatuses, issue.Status) {
		d.log.Info().Str("key", key).Str("status", issue.Status).Msg("issue state not eligible for final transition")
		return nil
	}
	d.log.Info().Str("key", key).Str("transition", d.cfg.FinalTransition).Str("from", issue.Status).Msg("all merge requests are done")
	return d.jira.Transition(ctx, key, d.cfg.FinalTransition, nil)
}
