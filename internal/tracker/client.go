// Package tracker adapts the Jira REST API to the small set of operations the
// webhook handlers need.
package tracker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	jira "github.com/andygrunwald/go-jira"
)

// Issue is a minimal view of a Jira issue.
type Issue struct {
	Key    string
	Status string
	// Fields holds custom field values keyed by field id.
	Fields map[string]any
}

// User is a minimal view of a Jira user.
type User struct {
	AccountID   string
	Name        string
	DisplayName string
}

// Config holds connection parameters.
type Config struct {
	URL     string
	User    string
	Token   string
	Timeout time.Duration
}

// Client wraps a go-jira client.
type Client struct {
	jira *jira.Client

	mu     sync.RWMutex
	fields map[string]string // field name -> id
}

// New builds a client using basic auth.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("jira url is required")
	}
	tp := jira.BasicAuthTransport{Username: cfg.User, Password: cfg.Token}
	hc := tp.Client()
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}
	jc, err := jira.NewClient(hc, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("jira client: %w", err)
	}
	return &Client{jira: jc, fields: map[string]string{}}, nil
}

// LoadFields caches the field name to id mapping.
func (c *Client) LoadFields(ctx context.Context) error {
	list, _, err := c.jira.Field.GetListWithContext(ctx)
	if err != nil {
		return fmt.Errorf("list fields: %w", err)
	}
	m := make(map[string]string, len(list))
	for _, f := range list {
		m[f.Name] = f.ID
	}
	c.mu.Lock()
	c.fields = m
	c.mu.Unlock()
	return nil
}

// FieldID resolves a field display name to its id.
func (c *Client) FieldID(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.fields[name]
	return id, ok
}

// Issue fetches an issue by key.
func (c *Client) Issue(ctx context.Context, key string) (Issue, error) {
	is, resp, err := c.jira.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return Issue{}, ErrNotFound(key)
		}
		return Issue{}, fmt.Errorf("get issue %s: %w", key, err)
	}
	out := Issue{Key: is.Key, Fields: map[string]any{}}
	if is.Fields != nil {
		if is.Fields.Status != nil {
			out.Status = is.Fields.Status.Name
		}
		for k, v := range is.Fields.Unknowns {
			out.Fields[k] = v
		}
	}
	return out, nil
}

// AllMergeRequestsDone reports whether the issue has at least one linked pull
// request and none of them are open.
func (c *Client) AllMergeRequestsDone(ctx context.Context, key string) (bool, error) {
	jql := fmt.Sprintf("issuekey = %s AND development[pullrequests].all > 0 AND development[pullrequests].open = 0", key)
	found, _, err := c.jira.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{MaxResults: 2, Fields: []string{"key"}})
	if err != nil {
		return false, fmt.Errorf("search %s: %w", key, err)
	}
	return len(found) == 1 && found[0].Key == key, nil
}

// Transition executes the named transition with optional field values.
func (c *Client) Transition(ctx context.Context, key, name string, fields map[string]any) error {
	ts, _, err := c.jira.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return fmt.Errorf("list transitions %s: %w", key, err)
	}
	id := ""
	for _, t := range ts {
		if t.Name == name {
			id = t.ID
			break
		}
	}
	if id == "" {
		return transitionUnavailableError{key: key, name: name}
	}
	payload := map[string]any{"transition": map[string]any{"id": id}}
	if len(fields) > 0 {
		payload["fields"] = fields
	}
	if _, err := c.jira.Issue.DoTransitionWithPayloadWithContext(ctx, key, payload); err != nil {
		return fmt.Errorf("transition %s '%s': %w", key, name, err)
	}
	return nil
}

// UpdateFields sets field values on an issue.
func (c *Client) UpdateFields(ctx context.Context, key string, fields map[string]any) error {
	if _, err := c.jira.Issue.UpdateIssueWithContext(ctx, key, map[string]any{"fields": fields}); err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}

// FindUser returns the first user matching query.
func (c *Client) FindUser(ctx context.Context, query string) (User, error) {
	users, _, err := c.jira.User.FindWithContext(ctx, query)
	if err != nil {
		return User{}, fmt.Errorf("find user %q: %w", query, err)
	}
	if len(users) == 0 {
		return User{}, fmt.Errorf("find user %q: no match", query)
	}
	u := users[0]
	return User{AccountID: u.AccountID, Name: u.Name, DisplayName: u.DisplayName}, nil
}

// Assign sets the issue assignee.
func (c *Client) Assign(ctx context.Context, key string, u User) error {
	if _, err := c.jira.Issue.UpdateAssigneeWithContext(ctx, key, &jira.User{AccountID: u.AccountID, Name: u.Name}); err != nil {
		return fmt.Errorf("assign %s: %w", key, err)
	}
	return nil
}
