package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIngestCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Runs one ingestion pass and prints its report",
		Long: `Purges placeholder records, walks up to five listing pages, stores every new or
changed document, and enriches newly created ones with search results.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Scheduler().Trigger(cmd.Context(), reset)
			if err != nil {
				return fmt.Errorf("run ingestion: %w", err)
			}
			appInstance.Logger().Info("ingest command finished",
				zap.String("run_id", report.RunID),
				zap.Int("created", report.Created),
				zap.Int("updated", report.Updated),
			)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "delete every document and enrichment before running")
	return cmd
}
