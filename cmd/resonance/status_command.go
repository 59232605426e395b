package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"resonance/internal/api"
	"resonance/internal/engine"
	"resonance/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store location, row counts, and applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine.Engine) error {
				status, err := eng.Status(context.Background())
				if err != nil {
					return err
				}
				counts := api.FromStats(status.Stats)
				checks := preflight.RunAll(cmd.Context(), ctx.config)
				if ctx.jsonOutput() {
					type check struct {
						Name   string `json:"name"`
						Passed bool   `json:"passed"`
						Detail string `json:"detail"`
					}
					out := make([]check, 0, len(checks))
					for _, c := range checks {
						out = append(out, check(c))
					}
					return writeJSON(cmd, map[string]any{
						"storePath":  status.StorePath,
						"counts":     counts,
						"migrations": status.Migrations,
						"checks":     out,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Store: %s\n", status.StorePath)
				fmt.Fprintf(out, "Migrations: %s\n", strings.Join(status.Migrations, ", "))
				rows := [][]string{
					{"baselines", fmt.Sprintf("%d", counts.Baselines)},
					{"overrides", fmt.Sprintf("%d", counts.Overrides)},
					{"observations", fmt.Sprintf("%d", counts.Observations)},
					{"scores", fmt.Sprintf("%d", counts.Scores)},
					{"self-reports", fmt.Sprintf("%d", counts.SelfReports)},
				}
				fmt.Fprintln(out, renderTable([]string{"Table", "Rows"}, rows, []columnAlignment{alignLeft, alignRight}))
				checkRows := make([][]string, 0, len(checks))
				for _, c := range checks {
					checkRows = append(checkRows, []string{c.Name, yesNo(c.Passed), c.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Check", "Ready", "Detail"}, checkRows, nil))
				return nil
			})
		},
	}
}
