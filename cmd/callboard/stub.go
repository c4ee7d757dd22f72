package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/carein/callboard/internal/db"
	"github.com/carein/callboard/internal/stubserver"
)

func newServeStubCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-stub",
		Short: "Run a local stand-in for the call-summary API",
		Long: `serve-stub runs a local HTTP server with the same endpoints as the
call-summary service, backed by SQLite. Re-runs write a fixed placeholder
summary. Use it for demos and end-to-end testing of the dashboard.`,
		Args: cobra.NoArgs,
		RunE: runServeStub,
	}

	cmd.Flags().String("addr", "", "listen address (default 127.0.0.1:5005)")
	cmd.Flags().String("db", "", "SQLite database path, or :memory:")
	return cmd
}

func runServeStub(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	// The stub is run in a terminal of its own, so log there unless a file
	// was configured.
	if cfg.LogFile == "" {
		log.SetOutput(cmd.ErrOrStderr())
	}

	store, err := db.Open(cfg.Stub.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ln, err := net.Listen("tcp", cfg.Stub.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Stub.Addr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := stubserver.New(store, stubserver.Options{Logger: log})
	log.WithFields(logrus.Fields{
		"addr": ln.Addr().String(),
		"db":   cfg.Stub.DBPath,
	}).Info("stub server listening")
	fmt.Fprintf(cmd.OutOrStdout(), "Serving stub API on http://%s/api/v1\n", ln.Addr())

	if err := srv.Serve(ctx, ln); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("stub server stopped")
	return nil
}
