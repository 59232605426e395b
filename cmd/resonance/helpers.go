package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"resonance/internal/api"
)

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func requireUser(userID int64) error {
	if userID <= 0 {
		return errors.New("--user is required and must be positive")
	}
	return nil
}

func addUserFlag(cmd *cobra.Command, target *int64) {
	cmd.Flags().Int64VarP(target, "user", "u", 0, "User id")
}

// parseTimestampFlag parses an optional --timestamp value.
func parseTimestampFlag(value string) (time.Time, error) {
	return api.ParseTime("--timestamp", value)
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("--file is required (use - for stdin)")
	}
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// parseAssignments splits key=value arguments.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
