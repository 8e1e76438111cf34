package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// The merge-request section keeps the hyphenated keys of the legacy
// config.json so existing files load unchanged.
type Config struct {
	Addr          string             `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel      string             `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogPretty     bool               `json:"log_pretty" yaml:"log_pretty" toml:"log_pretty"`
	WebhookSecret string             `json:"webhook_secret" yaml:"webhook_secret" toml:"webhook_secret"`
	MaxBodyBytes  int64              `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORS          CORSConfig         `json:"cors" yaml:"cors" toml:"cors"`
	Worker        WorkerConfig       `json:"worker" yaml:"worker" toml:"worker"`
	GitLab        GitLabConfig       `json:"gitlab" yaml:"gitlab" toml:"gitlab"`
	Jira          JiraConfig         `json:"jira" yaml:"jira" toml:"jira"`
	MergeRequest  MergeRequestConfig `json:"merge-request" yaml:"merge-request" toml:"merge-request"`
}

// CORSConfig enables the go-chi/cors middleware when Enabled is set.
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// WorkerConfig tunes the event worker loop and the deferred retry registry.
type WorkerConfig struct {
	PollIntervalMS  int `json:"poll_interval_ms" yaml:"poll_interval_ms" toml:"poll_interval_ms"`
	RetryIntervalMS int `json:"retry_interval_ms" yaml:"retry_interval_ms" toml:"retry_interval_ms"`
	MaxTries        int `json:"max_tries" yaml:"max_tries" toml:"max_tries"`
	// MaxQueueDepth of 0 leaves the queue unbounded.
	MaxQueueDepth int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
}

func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMS) * time.Millisecond
}

func (w WorkerConfig) RetryInterval() time.Duration {
	return time.Duration(w.RetryIntervalMS) * time.Millisecond
}

type GitLabConfig struct {
	URL   string `json:"url" yaml:"url" toml:"url"`
	Token string `json:"token" yaml:"token" toml:"token"`
}

type JiraConfig struct {
	URL            string `json:"url" yaml:"url" toml:"url"`
	User           string `json:"user" yaml:"user" toml:"user"`
	Token          string `json:"token" yaml:"token" toml:"token"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
}

func (j JiraConfig) Timeout() time.Duration {
	return time.Duration(j.TimeoutSeconds) * time.Second
}

// MergeRequestConfig configures the merge request handlers.
type MergeRequestConfig struct {
	ReviewChecklist     NoteConfig       `json:"review-checklist" yaml:"review-checklist" toml:"review-checklist"`
	ReviewerSuggestion  NoteConfig       `json:"reviewer-suggestion" yaml:"reviewer-suggestion" toml:"reviewer-suggestion"`
	JiraIssueTransition TransitionConfig `json:"jira-issue-transition" yaml:"jira-issue-transition" toml:"jira-issue-transition"`
}

// NoteConfig configures a handler that posts a note on new merge requests.
type NoteConfig struct {
	EnabledProjects []string `json:"enabled-projects" yaml:"enabled-projects" toml:"enabled-projects"`
	RemoteFile      string   `json:"remote-file" yaml:"remote-file" toml:"remote-file"`
	File            string   `json:"file" yaml:"file" toml:"file"`
	TargetBranches  []string `json:"target-branches" yaml:"target-branches" toml:"target-branches"`
}

// TransitionConfig configures Jira issue transitions. Empty names fall back
// to the handler defaults.
type TransitionConfig struct {
	EnabledProjectKeys      []string `json:"enabled-project-keys" yaml:"enabled-project-keys" toml:"enabled-project-keys"`
	FinalTransition         string   `json:"final-transition" yaml:"final-transition" toml:"final-transition"`
	StartReviewTransition   string   `json:"start-review-transition" yaml:"start-review-transition" toml:"start-review-transition"`
	StartProgressTransition string   `json:"start-progress-transition" yaml:"start-progress-transition" toml:"start-progress-transition"`
	OpenStatuses            []string `json:"open-statuses" yaml:"open-statuses" toml:"open-statuses"`
	InProgressStatuses      []string `json:"in-progress-statuses" yaml:"in-progress-statuses" toml:"in-progress-statuses"`
	InReviewStatuses        []string `json:"in-review-statuses" yaml:"in-review-statuses" toml:"in-review-statuses"`
	ResolutionNotesField    string   `json:"resolution-notes-field" yaml:"resolution-notes-field" toml:"resolution-notes-field"`
	DevResolutionField      string   `json:"dev-resolution-field" yaml:"dev-resolution-field" toml:"dev-resolution-field"`
}

// Environment variables that override file values.
const (
	EnvGitLabURL     = "GITLAB_URL"
	EnvGitLabToken   = "GITLAB_ROBOT_TOKEN"
	EnvJiraURL       = "JIRA_URL"
	EnvJiraUser      = "JIRA_ROBOT_USER"
	EnvJiraToken     = "JIRA_ROBOT_TOKEN"
	EnvWebhookSecret = "GITLAB_WEBHOOK_SECRET_TOKEN"
)

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Addr:         ":8080",
		LogLevel:     "info",
		MaxBodyBytes: 10 << 20,
		CORS: CORSConfig{
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Gitlab-Token", "X-Gitlab-Event"},
		},
		Worker: WorkerConfig{
			PollIntervalMS:  200,
			RetryIntervalMS: 5000,
			MaxTries:        10,
		},
		Jira: JiraConfig{TimeoutSeconds: 30},
		MergeRequest: MergeRequestConfig{
			ReviewChecklist: NoteConfig{
				EnabledProjects: []string{"test/test"},
				RemoteFile:      ".gitlab-robot/review-checklist.md",
				File:            "resources/review-checklist.md",
				TargetBranches:  []string{"main", "master"},
			},
			ReviewerSuggestion: NoteConfig{
				EnabledProjects: []string{"test/test"},
				RemoteFile:      ".gitlab-robot/reviewer-suggestion.jinja",
				File:            "resources/reviewer-suggestion.jinja",
				TargetBranches:  []string{"main", "master"},
			},
			JiraIssueTransition: TransitionConfig{
				EnabledProjectKeys: []string{"JTP", "EI", "SWC"},
			},
		},
	}
}

// Load reads a configuration file based on its extension, on top of
// Defaults. Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overrides connection settings and secrets from the environment.
// A nil lookup uses os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	set(&c.GitLab.URL, EnvGitLabURL)
	set(&c.GitLab.Token, EnvGitLabToken)
	set(&c.Jira.URL, EnvJiraURL)
	set(&c.Jira.User, EnvJiraUser)
	set(&c.Jira.Token, EnvJiraToken)
	set(&c.WebhookSecret, EnvWebhookSecret)
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max_body_bytes must be positive"))
	}
	if c.Worker.PollIntervalMS <= 0 {
		errs = append(errs, errors.New("worker.poll_interval_ms must be positive"))
	}
	if c.Worker.RetryIntervalMS <= 0 {
		errs = append(errs, errors.New("worker.retry_interval_ms must be positive"))
	}
	if c.Worker.MaxTries <= 0 {
		errs = append(errs, errors.New("worker.max_tries must be positive"))
	}
	if c.Worker.MaxQueueDepth < 0 {
		errs = append(errs, errors.New("worker.max_queue_depth must not be negative"))
	}
	if strings.TrimSpace(c.GitLab.URL) == "" {
		errs = append(errs, fmt.Errorf("gitlab.url is required (or %s)", EnvGitLabURL))
	}
	if strings.TrimSpace(c.Jira.URL) == "" {
		errs = append(errs, fmt.Errorf("jira.url is required (or %s)", EnvJiraURL))
	}
	return errors.Join(errs...)
}
