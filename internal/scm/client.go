// Package scm adapts the GitLab API for the merge request handlers.
package scm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gitlab "github.com/xanzy/go-gitlab"
)

// ErrFileNotFound is returned when a file is absent on every tried ref.
var ErrFileNotFound = errors.New("file not found")

// DefaultRefs are tried in order when fetching repository files.
var DefaultRefs = []string{"main", "master"}

// Config holds connection parameters.
type Config struct {
	URL   string
	Token string
}

// Client wraps a go-gitlab client.
type Client struct {
	gl *gitlab.Client
}

// New builds a client authenticated with a private token.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("gitlab url is required")
	}
	gl, err := gitlab.NewClient(cfg.Token, gitlab.WithBaseURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}
	return &Client{gl: gl}, nil
}

// RawFile returns a repository file from the first ref that has it.
func (c *Client) RawFile(ctx context.Context, projectID int, path string, refs ...string) (string, error) {
	if len(refs) == 0 {
		refs = DefaultRefs
	}
	var lastErr error
	for _, ref := range refs {
		b, resp, err := c.gl.RepositoryFiles.GetRawFile(projectID, path,
			&gitlab.GetRawFileOptions{Ref: gitlab.Ptr(ref)}, gitlab.WithContext(ctx))
		if err == nil {
			return string(b), nil
		}
		if resp == nil || resp.StatusCode != http.StatusNotFound {
			lastErr = err
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("fetch %s: %w", path, lastErr)
	}
	return "", fmt.Errorf("%s on %s: %w", path, strings.Join(refs, ", "), ErrFileNotFound)
}

// ChangedFiles lists old and new paths touched by a merge request.
func (c *Client) ChangedFiles(ctx context.Context, projectID, iid int) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	opt := &gitlab.ListMergeRequestDiffsOptions{ListOptions: gitlab.ListOptions{PerPage: 100, Page: 1}}
	for {
		diffs, resp, err := c.gl.MergeRequests.ListMergeRequestDiffs(projectID, iid, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list diffs !%d: %w", iid, err)
		}
		for _, d := range diffs {
			add(d.OldPath)
			add(d.NewPath)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

// PostNote adds a comment to a merge request.
func (c *Client) PostNote(ctx context.Context, projectID, iid int, body string) error {
	_, _, err := c.gl.Notes.CreateMergeRequestNote(projectID, iid,
		&gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(body)}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create note on !%d: %w", iid, err)
	}
	return nil
}
