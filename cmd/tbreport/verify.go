package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tbreport/report"
)

var errNoMatch = errors.New("no row matches the criteria")

func newVerifyCommand() *cobra.Command {
	var (
		gridFile string
		criteria []string
		show     bool
	)
	cmd := &cobra.Command{
		Use:     "verify",
		Short:   "Check a saved report grid against filter criteria",
		Example: `  tbreport verify --grid grid.html -c typeOfUser="Medical worker" -c age=25 -c date=05/01/2024`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			crit, err := parseCriteria(criteria)
			if err != nil {
				return err
			}
			if err := report.CheckCriteria(crit, app.cfg.Vocabulary.Criteria()); err != nil {
				return err
			}
			html, err := os.ReadFile(gridFile)
			if err != nil {
				return fmt.Errorf("read grid: %w", err)
			}
			g, err := report.ParseGrid(string(html))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if show {
				renderGrid(w, g)
			}
			res := report.NewVerifier(app.log, nil).Explain(g.Rows, g.Headers, crit)
			renderVerification(w, res)
			if !res.Matched {
				return errNoMatch
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&gridFile, "grid", "", "HTML file holding the report grid")
	cmd.Flags().StringArrayVarP(&criteria, "criterion", "c", nil, "key=value criterion, repeatable")
	cmd.Flags().BoolVar(&show, "show", false, "print the parsed grid")
	_ = cmd.MarkFlagRequired("grid")
	return cmd
}
