package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"mue/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch {
		case errors.Is(err, api.ErrUnauthorized):
			lines = append(lines, "hint: verify MUE_API_TOKEN matches the server's api_token_hash.")
		case errors.Is(err, api.ErrBusy):
			lines = append(lines, "hint: retry shortly; only one import and two exports run at a time.")
		case errors.Is(err, api.ErrQuotaExceeded):
			lines = append(lines, "hint: storage is full; remove backgrounds with: mue rm <id>, or run: mue storage --persist")
		case errors.Is(err, api.ErrUndecodable):
			lines = append(lines, "hint: the file is not an image the server can read; try png, jpeg, gif or webp.")
		case errors.Is(err, api.ErrUnavailable):
			lines = append(lines, "hint: the background database could not be opened; check db_path and disk space.")
		case errors.Is(err, api.ErrNotFound):
			lines = append(lines, "hint: list background ids with: mue list")
		case apiErr.Code == "":
			lines = append(lines, "hint: verify MUE_API_URL points to a mue server.")
		}
		if apiErr.Status >= 500 && apiErr.Status != http.StatusServiceUnavailable && apiErr.Status != http.StatusInsufficientStorage {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase MUE_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a mue server is running at MUE_API_URL.",
			"hint: start local server manually with: mue srv",
			"hint: you can increase MUE_HTTP_TIMEOUT for slower environments.",
		)
		if snapHint := snapStartHint(); snapHint != "" {
			lines = append(lines, snapHint)
		}
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func snapStartHint() string {
	if os.Getenv("SNAP") == "" && os.Getenv("SNAP_NAME") == "" {
		return ""
	}
	return "hint: in snap installs, start the daemon with: snap start mue.daemon"
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
