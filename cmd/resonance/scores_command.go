package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"resonance/internal/api"
	"resonance/internal/engine"
)

func newScoresCommand(ctx *commandContext) *cobra.Command {
	var (
		userID int64
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "List derived indicator scores, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				records, err := eng.ListScores(context.Background(), userID, limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.ScoresResponse{UserID: userID, Records: api.FromRecords(records)})
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scores recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRecords(records))
				return nil
			})
		},
	}
	addUserFlag(cmd, &userID)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to list")
	return cmd
}
