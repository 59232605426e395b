package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"resonance/internal/api"
	"resonance/internal/baseline"
	"resonance/internal/engine"
)

func newBaselineCommand(ctx *commandContext) *cobra.Command {
	baselineCmd := &cobra.Command{
		Use:   "baseline",
		Short: "Inspect and import per-user baselines",
	}
	baselineCmd.AddCommand(newBaselineShowCommand(ctx))
	baselineCmd.AddCommand(newBaselineImportCommand(ctx))
	return baselineCmd
}

func newBaselineShowCommand(ctx *commandContext) *cobra.Command {
	var (
		userID    int64
		metric    string
		timestamp string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the baseline that applies at a timestamp",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			ts, err := parseTimestampFlag(timestamp)
			if err != nil {
				return err
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				view, err := eng.Baseline(context.Background(), userID, metric, ts)
				if err != nil {
					return err
				}
				resp := api.FromBaselineView(view)
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				source := "personal"
				if resp.ColdStart {
					source = "population (cold start)"
				}
				fmt.Fprintf(out, "Context: %s, source: %s\n", resp.Context, source)
				stats := resp.Metrics
				if resp.Stat != nil {
					stats = map[string]api.BaselineStat{resp.Metric: *resp.Stat}
				}
				names := make([]string, 0, len(stats))
				for name := range stats {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make([][]string, 0, len(names))
				for _, name := range names {
					rows = append(rows, []string{name, formatFloat(stats[name].Mean), formatFloat(stats[name].Std)})
				}
				fmt.Fprintln(out, renderTable([]string{"Metric", "Mean", "Std"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
				return nil
			})
		},
	}
	addUserFlag(cmd, &userID)
	cmd.Flags().StringVarP(&metric, "metric", "m", "", "Single metric to show")
	cmd.Flags().StringVarP(&timestamp, "timestamp", "t", "", "Timestamp selecting the context (general when empty)")
	return cmd
}

func newBaselineImportCommand(ctx *commandContext) *cobra.Command {
	var (
		userID    int64
		file      string
		timestamp string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store a baseline document (flat or context-partitioned) for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			ts, err := parseTimestampFlag(timestamp)
			if err != nil {
				return err
			}
			body, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				doc, err := eng.ImportBaseline(context.Background(), userID, ts, body)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					body, err := baseline.Encode(doc)
					if err != nil {
						return err
					}
					return writeJSON(cmd, json.RawMessage(body))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported baseline for user %d with %d context(s)\n", userID, len(doc.Partitions))
				return nil
			})
		},
	}
	addUserFlag(cmd, &userID)
	cmd.Flags().StringVarP(&file, "file", "f", "", "Baseline JSON document (- for stdin)")
	cmd.Flags().StringVarP(&timestamp, "timestamp", "t", "", "Document timestamp (defaults to now)")
	return cmd
}
