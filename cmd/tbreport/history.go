package main

import (
	"errors"

	"github.com/spf13/cobra"

	"tbreport/runstore"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit int
		id    string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored runs from Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := app.cfg
			if cfg.Redis.Addr == "" {
				return errors.New("redis.addr is not configured")
			}
			store, err := runstore.Open(cmd.Context(), cfg.Redis)
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if id != "" {
				res, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				renderResult(w, res)
				return nil
			}
			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderRuns(w, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().StringVar(&id, "id", "", "show one run in detail")
	return cmd
}
