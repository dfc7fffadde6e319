package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/actions-ingest/internal/ingest"
)

func newDocumentsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Prints the most recently published documents as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be > 0")
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			docs, err := appInstance.Records().Documents(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}
			if docs == nil {
				docs = []ingest.Document{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(docs); err != nil {
				return fmt.Errorf("write documents: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of documents to print")
	return cmd
}
