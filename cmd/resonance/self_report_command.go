package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"resonance/internal/api"
	"resonance/internal/engine"
)

func newSelfReportCommand(ctx *commandContext) *cobra.Command {
	var (
		userID    int64
		timestamp string
		impact    string
		total     int
	)
	cmd := &cobra.Command{
		Use:   "self-report indicator=score ...",
		Short: "Submit a questionnaire and apply baseline and threshold feedback",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			assignments, err := parseAssignments(args)
			if err != nil {
				return err
			}
			req := api.SelfReportRequest{
				Timestamp:        timestamp,
				Scores:           make(map[string]int, len(assignments)),
				TotalScore:       total,
				FunctionalImpact: api.FunctionalImpact(impact),
			}
			for indicator, raw := range assignments {
				score, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("score for %s: %w", indicator, err)
				}
				req.Scores[indicator] = score
			}
			report, err := req.SelfReport()
			if err != nil {
				return err
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				result, err := eng.SubmitSelfReport(context.Background(), userID, report)
				if err != nil {
					return err
				}
				resp := api.FromSubmission(result)
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Submission %s stored\n", resp.ID)
				if resp.BaselineUpdated {
					fmt.Fprintf(out, "Baseline fine-tuned (%s context)\n", resp.BaselineContext)
				} else {
					fmt.Fprintf(out, "Baseline unchanged: %s\n", resp.FinetuneReason)
				}
				if len(resp.Calibration) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(resp.Calibration))
				for _, d := range resp.Calibration {
					rows = append(rows, []string{
						d.Indicator,
						d.Action,
						formatFloat(d.PassiveScore),
						formatFloat(d.Threshold),
						formatFloat(d.NewThreshold),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Indicator", "Action", "Score", "Threshold", "New"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	addUserFlag(cmd, &userID)
	cmd.Flags().StringVarP(&timestamp, "timestamp", "t", "", "Submission timestamp (defaults to now)")
	cmd.Flags().StringVar(&impact, "impact", "", "Functional impact label")
	cmd.Flags().IntVar(&total, "total", 0, "Questionnaire total (defaults to the item sum)")
	return cmd
}
