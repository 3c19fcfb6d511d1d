package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tbreport/eventbus"
	"tbreport/logger"
)

func newWatchCommand() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print run events from NATS as they happen",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log := app.cfg, app.log
			if url != "" {
				cfg.NATS.URL = url
			}
			if cfg.NATS.URL == "" {
				return errors.New("nats.url is not configured")
			}
			bus, err := eventbus.NewNATSBus(eventbus.NATSConfig{URL: cfg.NATS.URL, Subject: cfg.NATS.Subject, Name: "tbreport-watch"})
			if err != nil {
				return err
			}
			defer bus.Close()

			w := cmd.OutOrStdout()
			if _, err := bus.Subscribe(cmd.Context(), func(evt eventbus.Event) { printEvent(w, evt) }); err != nil {
				return err
			}
			log.Info("watching run events", logger.String("subject", eventbus.SubjectPrefix(cfg.NATS.Subject)+".>"))
			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "nats", "", "NATS URL (default from config)")
	return cmd
}

func printEvent(w io.Writer, evt eventbus.Event) {
	typ := fmt.Sprintf("%-14s", evt.Type)
	switch evt.Type {
	case eventbus.StepFailed:
		typ = text.FgRed.Sprint(typ)
	case eventbus.StepSucceeded:
		typ = text.FgGreen.Sprint(typ)
	case eventbus.RunStarted, eventbus.RunFinished:
		typ = text.Bold.Sprint(typ)
	}
	line := fmt.Sprintf("%s %s %s", evt.Timestamp.Format(time.TimeOnly), evt.RunID, typ)
	if evt.Step != "" {
		line += " " + evt.Step
	}
	if evt.Duration > 0 {
		line += " (" + evt.Duration.Round(time.Millisecond).String() + ")"
	}
	if s := evt.Data["status"]; s != "" {
		line += " " + statusText(s)
	}
	if evt.Error != "" {
		line += ": " + evt.Error
	}
	fmt.Fprintln(w, line)
}
