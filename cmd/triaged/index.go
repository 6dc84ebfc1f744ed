package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/triaged/internal/triage"
)

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd, indexStatusCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and rebuild the vector index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-chunk the knowledge base and rebuild the vector index",
	Long: `Re-chunk the knowledge base and rebuild the vector index from scratch.
Without an embedding provider this only refreshes the keyword chunks.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *triage.Service) error {
			status, err := svc.RebuildIndex(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		})
	},
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vector index status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(_ context.Context, svc *triage.Service) error {
			status, err := svc.IndexStatus()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		})
	},
}
