package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Deletes every stored document and enrichment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Records().Reset(cmd.Context()); err != nil {
				return fmt.Errorf("reset store: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "store reset")
			return nil
		},
	}
}
