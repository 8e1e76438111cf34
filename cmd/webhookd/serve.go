package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"webhookd/internal/config"
	"webhookd/internal/handlers"
	"webhookd/internal/httpapi"
	"webhookd/internal/scm"
	"webhookd/internal/tracker"
	"webhookd/internal/worker"
)

const shutdownTimeout = 5 * time.Second

func runServe(opts *options) error {
	boot := newLogger(opts.stderr, opts.logLevel, opts.logPretty)
	cfg, err := loadConfig(opts, boot, false)
	if err != nil {
		return err
	}
	log := newLogger(opts.stderr, cfg.LogLevel, cfg.LogPretty)

	w, err := buildWorker(cfg, log)
	if err != nil {
		return err
	}

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetAccessLogLevel(opts.accessLog)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetWebhookSecret(cfg.WebhookSecret)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)
	if cfg.WebhookSecret == "" {
		log.Warn().Msg("no webhook secret configured, only requests without X-Gitlab-Token are accepted")
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(w),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("webhookd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM / SIGQUIT)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
		log.Error().Err(err).Msg("server error, shutting down")
	}

	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	w.Stop()
	log.Info().Int("deferred_checks_dropped", len(w.Stats().DeferredChecks)).Msg("shutdown complete")
	return runErr
}

// buildWorker wires the external clients, the handler pipeline and the
// deferred check registry, and starts the worker.
func buildWorker(cfg config.Config, log zerolog.Logger) (*worker.Worker, error) {
	gl, err := scm.New(scm.Config{URL: cfg.GitLab.URL, Token: cfg.GitLab.Token})
	if err != nil {
		return nil, err
	}
	jc, err := tracker.New(tracker.Config{
		URL:     cfg.Jira.URL,
		User:    cfg.Jira.User,
		Token:   cfg.Jira.Token,
		Timeout: cfg.Jira.Timeout(),
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Jira.Timeout())
	if err := jc.LoadFields(ctx); err != nil {
		log.Error().Err(err).Msg("failed to load jira fields, resolution notes cannot be updated")
	}
	cancel()

	jiraCfg := jiraConfig(cfg.MergeRequest.JiraIssueTransition)
	hlog := log.With().Str("component", "handlers").Logger()
	wcfg := worker.Config{
		PollInterval:  cfg.Worker.PollInterval(),
		RetryInterval: cfg.Worker.RetryInterval(),
		MaxTries:      cfg.Worker.MaxTries,
		MaxQueueDepth: cfg.Worker.MaxQueueDepth,
		Logger:        log.With().Str("component", "worker").Logger(),
	}

	reg := worker.NewRegistry(wcfg, handlers.NewDoneMergeRequests(hlog, jiraCfg, jc))
	pipeline := worker.NewPipeline(wcfg.Logger,
		handlers.NewReviewerSuggestion(hlog, noteConfig(cfg.MergeRequest.ReviewerSuggestion), gl),
		handlers.NewReviewChecklist(hlog, noteConfig(cfg.MergeRequest.ReviewChecklist), gl),
		handlers.NewJiraUpdate(hlog, jiraCfg, jc, reg),
	)
	return worker.New(wcfg, pipeline, reg), nil
}

func noteConfig(c config.NoteConfig) handlers.NoteConfig {
	return handlers.NoteConfig{
		EnabledProjects: c.EnabledProjects,
		TargetBranches:  c.TargetBranches,
		RemoteFile:      c.RemoteFile,
		LocalFile:       c.File,
	}
}

func jiraConfig(c config.TransitionConfig) handlers.JiraConfig {
	return handlers.JiraConfig{
		EnabledProjectKeys:      c.EnabledProjectKeys,
		FinalTransition:         c.FinalTransition,
		StartReviewTransition:   c.StartReviewTransition,
		StartProgressTransition: c.StartProgressTransition,
		OpenStatuses:            c.OpenStatuses,
		InProgressStatuses:      c.InProgressStatuses,
		InReviewStatuses:        c.InReviewStatuses,
		ResolutionNotesField:    c.ResolutionNotesField,
		DevResolutionField:      c.DevResolutionField,
	}
}
