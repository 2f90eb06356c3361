package cli

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/tbaudit/internal/chain"
	"github.com/roach88/tbaudit/internal/config"
	"github.com/roach88/tbaudit/internal/reconcile"
	"github.com/roach88/tbaudit/internal/store"
)

// session bundles everything a command needs to audit: resolved config,
// the open store and an engine reading from it and from the ledger.
type session struct {
	cfg      *config.Config
	store    *store.Store
	engine   *reconcile.Engine
	registry *prometheus.Registry
	logger   *slog.Logger
}

// newLogger configures slog the same way for every command. JSON output
// gets JSON logs so both streams stay machine-readable.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// loadConfig resolves configuration and applies the --db override.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	return cfg, nil
}

// openSession loads config, opens the store and wires the engine.
// The caller must Close the session.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	logger := newLogger(opts, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger.Debug("opening database", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	ledger := opts.Ledger
	if ledger == nil {
		runner := opts.Runner
		if runner == nil {
			runner = chain.ExecRunner{}
		}
		client := chain.NewClient(runner, chain.Options{
			Binary: cfg.Chain.Binary,
			Node:   cfg.Chain.RPC,
			Home:   cfg.Chain.Home,
		}, logger)
		ledger = chain.NewLedgerReader(client, cfg.Chain.Module, cfg.Chain.ListCommand)
	}

	registry := prometheus.NewRegistry()
	eng := reconcile.New(ledger, st,
		reconcile.WithTimeout(cfg.Audit.Timeout.Std()),
		reconcile.WithConcurrency(cfg.Audit.Concurrency),
		reconcile.WithLogger(logger),
		reconcile.WithMetrics(reconcile.NewMetrics(registry)),
	)

	return &session{
		cfg:      cfg,
		store:    st,
		engine:   eng,
		registry: registry,
		logger:   logger,
	}, nil
}

// Close releases the store.
func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// newFormatter returns the formatter for cmd's output streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
