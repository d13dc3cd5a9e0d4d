package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/ayusman/handscope/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			// One server per database
			lockPath := filepath.Join(filepath.Dir(cfg.Paths.Database), "handscope.lock")
			lock := flock.New(lockPath)
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("another handscope server is using %s", cfg.Paths.Database)
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("failed to release server lock", "error", err)
				}
			}()

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if n, err := st.Runs().MarkInterrupted(); err != nil {
				return fmt.Errorf("recover runs: %w", err)
			} else if n > 0 {
				logger.Warn("marked interrupted runs as failed", "count", n)
			}

			a, err := ctx.newApp(st, logger, 0)
			if err != nil {
				return err
			}

			bind := strings.TrimSpace(addr)
			if bind == "" {
				bind = cfg.Server.Bind
			}

			srv := server.New(server.Config{
				StaticDir: staticDir,
				Store:     st,
				App:       a,
				Detector:  cfg.DetectorConfig(),
				Logger:    logger,
			})

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			err = srv.ListenAndServe(signalCtx, bind)
			logger.Info("server stopped")
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.bind)")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory of static files to serve at /")
	return cmd
}
