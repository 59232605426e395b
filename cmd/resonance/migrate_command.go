package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"resonance/internal/engine"
	"resonance/internal/migration"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert stored baseline documents between schema versions",
	}
	run := func(up bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine.Engine) error {
				report, err := eng.Migrate(context.Background(), up, dryRun)
				if err != nil {
					return err
				}
				return printMigrationReport(cmd, ctx, report)
			})
		}
	}
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Upgrade flat baselines to the context-partitioned layout",
		RunE:  run(true),
	})
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll context-partitioned baselines back to the flat layout",
		RunE:  run(false),
	})
	migrateCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Convert documents without writing them")
	return migrateCmd
}

func printMigrationReport(cmd *cobra.Command, ctx *commandContext, report migration.Report) error {
	if ctx.jsonOutput() {
		type failure struct {
			ID     int64  `json:"id"`
			UserID int64  `json:"userId"`
			Error  string `json:"error"`
		}
		failures := make([]failure, 0, len(report.Failures))
		for _, f := range report.Failures {
			failures = append(failures, failure{ID: f.ID, UserID: f.UserID, Error: f.Err.Error()})
		}
		return writeJSON(cmd, map[string]any{
			"direction": report.Direction,
			"scanned":   report.Scanned,
			"migrated":  report.Migrated,
			"errors":    report.Errors(),
			"dryRun":    report.DryRun,
			"failures":  failures,
		})
	}
	out := cmd.OutOrStdout()
	prefix := ""
	if report.DryRun {
		prefix = "[dry run] "
	}
	fmt.Fprintf(out, "%s%s: scanned %d, migrated %d, errors %d\n", prefix, report.Direction, report.Scanned, report.Migrated, report.Errors())
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  baseline %d (user %d): %v\n", f.ID, f.UserID, f.Err)
	}
	if report.Errors() > 0 {
		return fmt.Errorf("%d baseline document(s) failed to migrate", report.Errors())
	}
	return nil
}
