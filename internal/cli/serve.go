package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/tbaudit/internal/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit HTTP API",
		Long: `Start the HTTP API: audit reports, degraded single-source listings,
local log rows and Prometheus metrics.

Routes:
  GET /healthz
  GET /metrics
  GET /audit/tasks/:taskId/logs
  GET /audit/tasks/:taskId/sources/:side
  GET /tasks/:taskId/logs

Example:
  tbaudit serve --addr :8080
  tbaudit serve --config tbaudit.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return f.Error(CodeCommand, err)
	}
	defer sess.Close()

	sess.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	addr := opts.Addr
	if addr == "" {
		addr = sess.cfg.HTTP.Addr
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			sess.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	sess.logger.Info("audit server starting",
		"addr", addr,
		"db", sess.cfg.Store.Path,
		"chain", sess.cfg.Chain.ID,
		"module", sess.cfg.Chain.Module)
	f.VerboseLog("Metrics registered on /metrics, database %s", sess.cfg.Store.Path)
	fmt.Fprintf(f.Writer, "Serving audit API on %s\n", addr)
	fmt.Fprintln(f.Writer, "Press Ctrl-C to stop.")

	srv := api.NewServer(sess.engine, sess.store, sess.registry, sess.logger)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return f.Error(CodeCommand, WrapExitError(ExitCommandError, "server error", err))
	}

	sess.logger.Info("audit server stopped gracefully")
	return nil
}
