package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"resonance/internal/api"
	"resonance/internal/engine"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		userID    int64
		file      string
		timestamp string
	)
	cmd := &cobra.Command{
		Use:   "ingest [metric=value ...]",
		Short: "Store raw metric observations",
		Long: "Store raw metric observations for a user.\n\n" +
			"Values come either from metric=value arguments sharing --timestamp, or from\n" +
			"--file holding a JSON body in the same shape as POST /api/users/{id}/metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			req, err := buildMetricsRequest(cmd, file, timestamp, args)
			if err != nil {
				return err
			}
			observations, err := req.ToObservations()
			if err != nil {
				return err
			}
			if len(observations) == 0 {
				return errors.New("no observations given")
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				stored, err := eng.IngestMetrics(context.Background(), userID, observations)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.IngestResponse{Stored: stored})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %d observation(s) for user %d\n", stored, userID)
				return nil
			})
		},
	}
	addUserFlag(cmd, &userID)
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON metrics document (- for stdin)")
	cmd.Flags().StringVarP(&timestamp, "timestamp", "t", "", "Recording timestamp for metric=value arguments")
	return cmd
}

func buildMetricsRequest(cmd *cobra.Command, file, timestamp string, args []string) (api.MetricsRequest, error) {
	var req api.MetricsRequest
	if file != "" {
		data, err := readInput(cmd, file)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("decode metrics document: %w", err)
		}
	}
	if len(args) == 0 {
		return req, nil
	}
	assignments, err := parseAssignments(args)
	if err != nil {
		return req, err
	}
	if timestamp == "" {
		return req, errors.New("--timestamp is required with metric=value arguments")
	}
	for name, raw := range assignments {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, fmt.Errorf("metric %s: %w", name, err)
		}
		req.Observations = append(req.Observations, api.Observation{Timestamp: timestamp, Metric: name, Value: value})
	}
	return req, nil
}
