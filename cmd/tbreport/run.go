package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tbreport/browser/driver"
	"tbreport/config"
	"tbreport/eventbus"
	"tbreport/logger"
	"tbreport/pages"
	"tbreport/randdata"
	"tbreport/runstore"
	"tbreport/scenario"
)

func newRunCommand() *cobra.Command {
	var (
		seed       uint64
		language   string
		driverName string
		headed     bool
		save       bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reporting scenario once",
		Long: `Log in, file an anonymous barrier report with random profile values and
check that the demographic report lists a matching row for today.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log := app.cfg, app.log
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			if language != "" {
				cfg.Language = language
			}
			if driverName != "" {
				cfg.Browser.Driver = driverName
			}
			if headed {
				cfg.Browser.Headless = false
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

			res, runErr := runScenario(ctx, cfg, log, pub, nil, "")
			renderResult(cmd.OutOrStdout(), res)

			if save && cfg.Redis.Addr != "" {
				store, err := runstore.Open(ctx, cfg.Redis)
				if err != nil {
					log.Warn("run not saved", logger.Error(err))
				} else {
					defer store.Close()
					if err := store.Save(context.WithoutCancel(ctx), res); err != nil {
						log.Warn("run not saved", logger.Error(err))
					}
				}
			}
			return runErr
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for random profile values (default from config, 0 = time based)")
	cmd.Flags().StringVar(&language, "language", "", "interface language: ru, en or ro")
	cmd.Flags().StringVar(&driverName, "driver", "", "browser driver: playwright or rod")
	cmd.Flags().BoolVar(&headed, "headed", false, "show the browser window")
	cmd.Flags().BoolVar(&save, "save", true, "store the result in Redis when redis.addr is set")
	return cmd
}

// runScenario launches a browser and runs the scenario once.
func runScenario(ctx context.Context, cfg *config.Config, log logger.Logger, pub eventbus.Publisher, obs scenario.Observer, runID string) (scenario.Result, error) {
	sess, err := driver.Open(ctx, cfg.Browser, log)
	if err != nil {
		return scenario.Result{RunID: runID, Status: scenario.StatusFailed, Error: err.Error()}, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("closing browser", logger.Error(err))
		}
	}()

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	log.Info("random profile seed", logger.Any("seed", seed))

	env, err := pages.NewEnv(sess.Page(), cfg, randdata.New(seed), log)
	if err != nil {
		return scenario.Result{RunID: runID, Status: scenario.StatusFailed, Error: err.Error()}, err
	}
	opts := []scenario.Option{scenario.WithPublisher(pub)}
	if obs != nil {
		opts = append(opts, scenario.WithObserver(obs))
	}
	return scenario.NewRunner(env, opts...).Run(ctx, runID)
}

// newPublisher connects to NATS when configured.
func newPublisher(cfg *config.Config, log logger.Logger) (eventbus.Publisher, func(), error) {
	if cfg.NATS.URL == "" {
		return eventbus.Nop{}, func() {}, nil
	}
	bus, err := eventbus.NewNATSBus(eventbus.NATSConfig{URL: cfg.NATS.URL, Subject: cfg.NATS.Subject})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("publishing run events", logger.String("url", cfg.NATS.URL), logger.String("subject", cfg.NATS.Subject))
	return bus, func() { _ = bus.Close() }, nil
}
