package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nucleus/pm-sync/internal/api"
	"github.com/nucleus/pm-sync/internal/logging"
	"github.com/nucleus/pm-sync/internal/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and the periodic sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		if err := a.connectEnabled(ctx); err != nil {
			return err
		}

		handler := api.NewRouter(api.NewHandler(a.db, a.manager, a.engine), api.Options{
			CORSOrigins:        a.cfg.Server.CORSOrigins,
			RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
			JWTSecret:          a.cfg.Security.JWTSecret,
		})
		server := &http.Server{
			Addr:         a.cfg.Server.Addr(),
			Handler:      handler,
			ReadTimeout:  a.cfg.Server.ReadTimeout,
			WriteTimeout: a.cfg.Server.WriteTimeout,
		}

		tree := supervisor.NewTree(supervisor.TreeConfig{ShutdownTimeout: a.cfg.Server.ShutdownTimeout})
		tree.AddAPIService(supervisor.NewHTTPServerService(server, a.cfg.Server.ShutdownTimeout))
		if a.cfg.Sync.Enabled {
			tree.AddSyncService(supervisor.NewSyncService(a.engine, a.cfg.Sync.Interval))
		}

		logging.Info().
			Str("addr", server.Addr).
			Bool("sync_enabled", a.cfg.Sync.Enabled).
			Dur("sync_interval", a.cfg.Sync.Interval).
			Msg("pm-sync starting")

		if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
			logging.Warn().Int("count", len(report)).Msg("services did not stop in time")
		}
		logging.Info().Msg("pm-sync stopped")
		return nil
	},
}
