package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"webhookd/internal/config"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	addr       string
	logLevel   string
	logPretty  bool
	accessLog  string
	stderr     io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &options{stderr: os.Stderr}
	root := &cobra.Command{
		Use:           "webhookd",
		Short:         "GitLab webhook receiver that keeps Jira issues in step with merge requests",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", os.Getenv("WEBHOOKD_CONFIG"), "Config file (.yaml, .yml, .json, .toml); defaults WEBHOOKD_CONFIG")
	pf.StringVar(&opts.addr, "addr", "", "HTTP listen address, e.g. :8080 (overrides config)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	pf.BoolVar(&opts.logPretty, "log-pretty", false, "Human-readable console logs instead of JSON")
	pf.StringVar(&opts.accessLog, "access-log", "info", "HTTP access log level: off|error|info|debug (X-Log-Level overrides per request)")

	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Run the webhook server and background worker",
		Example: "  webhookd serve --config /etc/webhookd/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	validate := &cobra.Command{
		Use:     "validate-config",
		Short:   "Load, apply environment overrides and validate the configuration",
		Example: "  webhookd validate-config --config config.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(opts.stderr, opts.logLevel, opts.logPretty)
			if _, err := loadConfig(opts, log, true); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return nil
		},
	}
	root.AddCommand(serve, validate)
	return root
}

// loadConfig resolves the effective configuration: file (or defaults),
// environment overrides, then flags. Outside strict mode a missing file
// falls back to the defaults with an error log.
func loadConfig(opts *options, log zerolog.Logger, strict bool) (config.Config, error) {
	cfg := config.Defaults()
	if opts.configPath == "" {
		if strict {
			return cfg, errors.New("--config is required")
		}
		log.Warn().Msg("no config file given, using defaults")
	} else {
		loaded, err := config.Load(opts.configPath)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist) && !strict:
			log.Error().Err(err).Str("path", opts.configPath).Msg("failed to load custom config, using default")
		default:
			return cfg, err
		}
	}
	cfg.ApplyEnv(nil)
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logPretty {
		cfg.LogPretty = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(out io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
