package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"resonance/internal/engine"
)

func newThresholdCommand(ctx *commandContext) *cobra.Command {
	thresholdCmd := &cobra.Command{
		Use:   "threshold",
		Short: "Manage per-user severity thresholds",
	}
	var userID int64
	set := &cobra.Command{
		Use:   "set <indicator> <value>",
		Short: "Override an indicator's severity threshold",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("threshold value: %w", err)
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				if err := eng.UpdateThreshold(context.Background(), userID, args[0], value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Threshold for %s set to %s (user %d)\n", args[0], formatFloat(value), userID)
				return nil
			})
		},
	}
	addUserFlag(set, &userID)
	thresholdCmd.AddCommand(set)
	return thresholdCmd
}

func newWeightCommand(ctx *commandContext) *cobra.Command {
	weightCmd := &cobra.Command{
		Use:   "weight",
		Short: "Manage per-user metric weights",
	}
	var userID int64
	set := &cobra.Command{
		Use:   "set <indicator> <metric> <value>",
		Short: "Override a metric's weight within an indicator",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("weight value: %w", err)
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				if err := eng.UpdateWeight(context.Background(), userID, args[0], args[1], value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Weight for %s/%s set to %s (user %d)\n", args[0], args[1], formatFloat(value), userID)
				return nil
			})
		},
	}
	addUserFlag(set, &userID)
	weightCmd.AddCommand(set)
	return weightCmd
}
