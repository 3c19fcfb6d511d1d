package main

import (
	"github.com/spf13/cobra"

	"tbreport/pages"
)

func newFieldsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the field descriptors and their locator strategies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := pages.Fields(app.cfg)
			if err != nil {
				return err
			}
			renderFields(cmd.OutOrStdout(), reg.All())
			return nil
		},
	}
}
