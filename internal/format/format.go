package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"mue/internal/imagemeta"
	"mue/internal/models"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct {
	Indent bool
}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(payload)
}

// BackgroundLine renders a background as one line of plain output.
func BackgroundLine(b models.Background) string {
	kind := "○"
	if imagemeta.IsVideo(b.URL) {
		kind = "▶"
	} else if !b.IsEmbedded() {
		kind = "↗"
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%s %d", kind, b.ID))
	if b.Dimensions != nil {
		parts = append(parts, fmt.Sprintf("[%dx%d]", b.Dimensions.Width, b.Dimensions.Height))
	}
	if b.FileSize != nil {
		parts = append(parts, "["+imagemeta.FormatSize(*b.FileSize)+"]")
	}
	name := b.Name
	if b.Folder != "" {
		name = b.Folder + "/" + name
	}
	return strings.Join(parts, " ") + " - " + name
}

// BackgroundDetail renders every field of a background, one per line.
// Embedded payloads are summarised rather than printed.
func BackgroundDetail(b models.Background) []string {
	url := b.URL
	if b.IsEmbedded() {
		mediaType := "unknown"
		if end := strings.IndexAny(url, ";,"); end > len("data:") {
			mediaType = url[len("data:"):end]
		}
		url = fmt.Sprintf("(embedded %s, %s)", mediaType, imagemeta.FormatSize(imagemeta.DataURLSize(b.URL)))
	}

	lines := []string{
		fmt.Sprintf("id: %d", b.ID),
		fmt.Sprintf("name: %s", b.Name),
		fmt.Sprintf("url: %s", url),
		fmt.Sprintf("uploaded: %s", Time(b.UploadDate)),
	}
	if b.Folder != "" {
		lines = append(lines, fmt.Sprintf("folder: %s", b.Folder))
	}
	if b.Dimensions != nil {
		lines = append(lines, fmt.Sprintf("dimensions: %dx%d", b.Dimensions.Width, b.Dimensions.Height))
	}
	if b.FileSize != nil {
		lines = append(lines, fmt.Sprintf("size: %s", imagemeta.FormatSize(*b.FileSize)))
	}
	if b.BlurHash != nil {
		lines = append(lines, fmt.Sprintf("blurhash: %s", *b.BlurHash))
	}
	if b.UpdatedAt != nil {
		lines = append(lines, fmt.Sprintf("updated: %s", Time(*b.UpdatedAt)))
	}
	return lines
}

// Time formats t for plain output.
func Time(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
