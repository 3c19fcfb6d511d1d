package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tbreport/config"
	"tbreport/logger"
)

// deps is what every subcommand gets after the root pre-run.
type deps struct {
	cfg *config.Config
	log logger.Logger
}

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug forces debug logging.
	debug bool

	app deps
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tbreport",
		Short:         "End-to-end checks for the TB community reporting application",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if debug {
				cfg.Logging.Level = "debug"
			}
			log, err := logger.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			app = deps{cfg: cfg, log: log}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if app.log != nil {
				_ = app.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $CONFIG_PATH, then built-in defaults)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRunCommand(),
		newServeCommand(),
		newFieldsCommand(),
		newVerifyCommand(),
		newWatchCommand(),
		newHistoryCommand(),
	)
	return root
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}
