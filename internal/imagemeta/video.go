package imagemeta

import "mue/internal/models"

// IsVideo reports whether a url or media type names a video payload.
func IsVideo(value string) bool {
	return models.IsVideoSource(value)
}
