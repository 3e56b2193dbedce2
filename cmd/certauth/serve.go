package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/certauth/internal/rate"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo HTTP API guarded by certauth",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, release, err := a.engine()
			if err != nil {
				return err
			}
			defer release()

			var limiter *rate.Limiter
			if a.settings.Server.IssueLimit > 0 {
				limiter, err = rate.New(a.redis(), rate.Config{
					MaxIssues:        a.settings.Server.IssueLimit,
					Window:           a.settings.Server.IssueWindow,
					EnableIPThrottle: a.settings.Server.IssueLimitPerIP,
				})
				if err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:              a.settings.Server.Addr,
				Handler:           newRouter(engine, limiter, a.log),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return runServer(cmd.Context(), srv, a.log)
		},
	}
	cmd.Flags().String("addr", "", "listen address (server.addr)")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
