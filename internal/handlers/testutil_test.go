package handlers

import (
	"context"
	"fmt"
	"sync"

	"webhookd/internal/scm"
	"webhookd/internal/tracker"
	"webhookd/internal/worker"
)

type transitionCall struct {
	Key    string
	Name   string
	Fields map[string]any
}

type updateCall struct {
	Key    string
	Fields map[string]any
}

// fakeTracker is an in-memory IssueTracker.
type fakeTracker struct {
	mu          sync.Mutex
	fields      map[string]string
	issues      map[string]tracker.Issue
	done        map[string]bool
	users       map[string]tracker.User
	transitions []transitionCall
	updates     []updateCall
	assigned    map[string]string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		fields: map[string]string{
			"Resolution Notes": "customfield_100",
			"Dev Resolution":   "customfield_200",
		},
		issues:   map[string]tracker.Issue{},
		done:     map[string]bool{},
		users:    map[string]tracker.User{},
		assigned: map[string]string{},
	}
}

func (f *fakeTracker) addIssue(key, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues[key] = tracker.Issue{Key: key, Status: status, Fields: map[string]any{}}
}

func (f *fakeTracker) Issue(_ context.Context, key string) (tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	is, ok := f.issues[key]
	if !ok {
		return tracker.Issue{}, tracker.ErrNotFound(key)
	}
	return is, nil
}

func (f *fakeTracker) AllMergeRequestsDone(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done[key], nil
}

func (f *fakeTracker) Transition(_ context.Context, key, name string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, transitionCall{Key: key, Name: name, Fields: fields})
	return nil
}

func (f *fakeTracker) UpdateFields(_ context.Context, key string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{Key: key, Fields: fields})
	return nil
}

func (f *fakeTracker) FieldID(name string) (string, bool) {
	id, ok := f.fields[name]
	return id, ok
}

func (f *fakeTracker) FindUser(_ context.Context, query string) (tracker.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[query]
	if !ok {
		return tracker.User{}, fmt.Errorf("user %q not found", query)
	}
	return u, nil
}

func (f *fakeTracker) Assign(_ context.Context, key string, u tracker.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned[key] = u.AccountID
	return nil
}

type postedNote struct {
	ProjectID int
	IID       int
	Body      string
}

// fakeRepo is an in-memory Repository keyed by path, ignoring refs.
type fakeRepo struct {
	mu      sync.Mutex
	files   map[string]string
	failing map[string]error
	changed []string
	notes   []postedNote
}

func newFakeRepo() *fakeRepo { return &fakeRepo{files: map[string]string{}} }

func (r *fakeRepo) RawFile(_ context.Context, _ int, path string, _ ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failing[path]; ok {
		return "", err
	}
	body, ok := r.files[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, scm.ErrFileNotFound)
	}
	return body, nil
}

func (r *fakeRepo) ChangedFiles(context.Context, int, int) ([]string, error) {
	return r.changed, nil
}

func (r *fakeRepo) PostNote(_ context.Context, projectID, iid int, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, postedNote{ProjectID: projectID, IID: iid, Body: body})
	return nil
}

// recordingScheduler captures scheduled deferred check keys.
type recordingScheduler struct{ keys []string }

func (s *recordingScheduler) Schedule(key string) bool {
	s.keys = append(s.keys, key)
	return true
}

func mergeRequestPayload(action, branch, title string) worker.Payload {
	return worker.Payload{
		"object_kind": "merge_request",
		"user":        map[string]any{"name": "Alice", "username": "alice"},
		"project":     map[string]any{"id": 7, "path_with_namespace": "group/app"},
		"object_attributes": map[string]any{
			"id":            101,
			"iid":           3,
			"action":        action,
			"source_branch": branch,
			"target_branch": "main",
			"title":         title,
			"description":   "Adds the thing.",
			"url":           "https://gitlab.example.com/group/app/-/merge_requests/3",
			"draft":         false,
		},
	}
}
