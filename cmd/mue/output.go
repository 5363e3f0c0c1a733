package main

import (
	"fmt"
	"os"
	"strings"

	"mue/internal/api"
	"mue/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeBackgroundList(items []api.BackgroundResponse) error {
	if len(items) == 0 {
		return writePlain("No backgrounds.\n")
	}
	for _, bg := range items {
		if err := writePlain("%s\n", format.BackgroundLine(bg)); err != nil {
			return err
		}
	}
	return nil
}

func writeBackgroundDetail(bg api.BackgroundResponse) error {
	return writePlain("%s\n", strings.Join(format.BackgroundDetail(bg), "\n"))
}

func writeStorage(usage api.StorageResponse) error {
	lines := []string{
		fmt.Sprintf("backgrounds: %d", usage.Count),
		fmt.Sprintf("used: %s of %s (%.1f%%)", usage.UsedText, usage.QuotaText, usage.Percent),
		fmt.Sprintf("persisted: %t", usage.Persisted),
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}
