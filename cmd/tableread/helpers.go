package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tableread/internal/config"
)

// parseConfigPairs turns repeated key=value flags into a provider config map.
// Values that parse as booleans or numbers are stored typed; everything else
// stays a string.
func parseConfigPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	result := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid config entry %q (expected key=value)", pair)
		}
		result[key] = coerceConfigValue(strings.TrimSpace(value))
	}
	return result, nil
}

func coerceConfigValue(raw string) any {
	if parsed, err := strconv.ParseBool(raw); err == nil {
		return parsed
	}
	if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return parsed
	}
	if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
		return parsed
	}
	return raw
}

// readTextInput reads a file argument, treating "-" as stdin.
func readTextInput(cmd *cobra.Command, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("input path is required (use - for stdin)")
	}
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	path, err := config.ExpandPath(arg)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// writeTextOutput writes text to path, or to the command's stdout when path
// is empty or "-".
func writeTextOutput(cmd *cobra.Command, path, text string) error {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		_, err := io.WriteString(cmd.OutOrStdout(), text)
		return err
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(expanded, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", expanded, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", expanded)
	return nil
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func truncate(s string, max int) string {
	if max <= 1 || len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
