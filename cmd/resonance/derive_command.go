package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"resonance/internal/api"
	"resonance/internal/engine"
	"resonance/internal/scoring"
)

func newDeriveCommand(ctx *commandContext) *cobra.Command {
	var (
		userID int64
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive indicator scores from new observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (userID > 0) {
				return errors.New("specify exactly one of --user or --all")
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				if all {
					return runDeriveAll(cmd, ctx, eng)
				}
				records, err := eng.DeriveScores(context.Background(), userID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.ScoresResponse{UserID: userID, Records: api.FromRecords(records)})
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No new observations to score")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRecords(records))
				return nil
			})
		},
	}
	addUserFlag(cmd, &userID)
	cmd.Flags().BoolVar(&all, "all", false, "Derive scores for every user with observations")
	return cmd
}

func runDeriveAll(cmd *cobra.Command, ctx *commandContext, eng *engine.Engine) error {
	summary, err := eng.DeriveAll(context.Background())
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		type result struct {
			UserID  int64  `json:"userId"`
			Records int    `json:"records"`
			Error   string `json:"error,omitempty"`
		}
		out := make([]result, 0, len(summary.Results))
		for _, r := range summary.Results {
			res := result{UserID: r.UserID, Records: r.Records}
			if r.Err != nil {
				res.Error = r.Err.Error()
			}
			out = append(out, res)
		}
		return writeJSON(cmd, out)
	}
	rows := make([][]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		rows = append(rows, []string{fmt.Sprintf("%d", r.UserID), fmt.Sprintf("%d", r.Records), status})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable([]string{"User", "Records", "Status"}, rows, []columnAlignment{alignRight, alignRight, alignLeft}))
	fmt.Fprintf(out, "%d user(s), %d record(s), %d failed\n", summary.Users, summary.Records, summary.Failed())
	if summary.Failed() > 0 {
		return fmt.Errorf("derive failed for %d user(s)", summary.Failed())
	}
	return nil
}

// renderRecords prints one row per record with the active indicators.
func renderRecords(records []scoring.Record) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		active := make([]string, 0, len(rec.BinaryScores))
		for key, v := range rec.BinaryScores {
			if v == 1 {
				active = append(active, key)
			}
		}
		sort.Strings(active)
		rows = append(rows, []string{
			api.FormatTime(rec.Timestamp),
			yesNo(rec.MDDSignal),
			yesNo(rec.LearningMode),
			fmt.Sprintf("%d", len(active)),
			strings.Join(active, ", "),
		})
	}
	return renderTable(
		[]string{"Timestamp", "Signal", "Learning", "Active", "Indicators"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
