package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and refresh the cached database schema",
}

var schemaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current schema snapshot and its fingerprint",
	Args:  cobra.NoArgs,
	RunE:  runSchemaShow,
}

var schemaRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-extract the schema and invalidate stale cache entries",
	Args:  cobra.NoArgs,
	RunE:  runSchemaRefresh,
}

func init() {
	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaRefreshCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaShow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, cleanup, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, err := app.engine.RefreshSchema(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Fingerprint: %s\n", snap.Fingerprint)
	fmt.Fprintf(out, "Extracted:   %s\n", snap.ExtractedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Tables:      %d\n\n", len(snap.Description.Tables))
	fmt.Fprint(out, snap.Description.PromptContext())

	return nil
}

func runSchemaRefresh(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, cleanup, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, err := app.engine.RefreshSchema(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Schema refreshed: %d tables, fingerprint %s\n",
		len(snap.Description.Tables), snap.Fingerprint)

	return nil
}
