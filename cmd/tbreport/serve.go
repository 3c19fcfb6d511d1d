package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"tbreport/logger"
	"tbreport/metrics"
	"tbreport/runstore"
	"tbreport/scenario"
	"tbreport/services/runner"
)

func newServeCommand() *cobra.Command {
	var (
		addr     string
		schedule string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API, metrics and scheduled runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log := app.cfg, app.log
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("schedule") {
				cfg.Server.Schedule = schedule
			}
			if err := cfg.Validate(true); err != nil {
				return err
			}
			ctx := cmd.Context()

			pub, closePub, err := newPublisher(cfg, log)
			if err != nil {
				return err
			}
			defer closePub()

			m := metrics.New(prometheus.DefaultRegisterer)
			opts := runner.Options{
				QueueSize: cfg.Server.QueueSize,
				Schedule:  cfg.Server.Schedule,
				Log:       log.With(logger.String("component", "runner")),
				Metrics:   m,
				Gatherer:  prometheus.DefaultGatherer,
			}
			if cfg.Redis.Addr != "" {
				store, err := runstore.Open(ctx, cfg.Redis)
				if err != nil {
					return err
				}
				defer store.Close()
				opts.Recorder = store
			}

			run := func(ctx context.Context, runID string) (scenario.Result, error) {
				return runScenario(ctx, cfg, log.With(logger.String("run_id", runID)), pub, m, runID)
			}
			svc := runner.NewService(run, opts)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           svc.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("runner listening", logger.String("addr", cfg.Server.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "six-field cron spec for scheduled runs, e.g. \"0 0 6 * * *\"")
	return cmd
}
