package models

import (
	"fmt"
	"strings"
	"time"
)

// Dimensions is the pixel size of a raster background.
type Dimensions struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Background is one stored custom background.
//
// Optional metadata stays nil until it has been computed. Video payloads and
// remote images that could not be decoded never get dimensions or a blur hash.
type Background struct {
	ID         int64       `json:"id"`
	URL        string      `json:"url"`
	Name       string      `json:"name"`
	UploadDate time.Time   `json:"uploadDate"`
	Dimensions *Dimensions `json:"dimensions"`
	FileSize   *int64      `json:"fileSize"`
	Folder     string      `json:"folder"`
	BlurHash   *string     `json:"blurHash"`
	UpdatedAt  *time.Time  `json:"updatedAt,omitempty"`
}

// IsEmbedded reports whether the payload lives inside the record as a data URL.
func (b Background) IsEmbedded() bool {
	return strings.HasPrefix(b.URL, "data:")
}

// NeedsMetadata reports whether dimensions are still missing for a raster source.
func (b Background) NeedsMetadata() bool {
	return b.Dimensions == nil && strings.TrimSpace(b.URL) != "" && !IsVideoSource(b.URL)
}

// BackgroundPatch is a partial update merged into an existing background.
// Nil fields are left untouched.
type BackgroundPatch struct {
	URL        *string     `json:"url,omitempty"`
	Name       *string     `json:"name,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	FileSize   *int64      `json:"fileSize,omitempty"`
	Folder     *string     `json:"folder,omitempty"`
	BlurHash   *string     `json:"blurHash,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p BackgroundPatch) IsEmpty() bool {
	return p.URL == nil && p.Name == nil && p.Dimensions == nil && p.FileSize == nil && p.Folder == nil && p.BlurHash == nil
}

// Apply merges the patch into b.
func (p BackgroundPatch) Apply(b *Background) {
	if b == nil {
		return
	}
	if p.URL != nil {
		b.URL = *p.URL
	}
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Dimensions != nil {
		dims := *p.Dimensions
		b.Dimensions = &dims
	}
	if p.FileSize != nil {
		size := *p.FileSize
		b.FileSize = &size
	}
	if p.Folder != nil {
		b.Folder = *p.Folder
	}
	if p.BlurHash != nil {
		hash := *p.BlurHash
		b.BlurHash = &hash
	}
}

// LegacyName is the display name given to rows stored before names existed.
func LegacyName(id int64) string {
	return fmt.Sprintf("Image %d", id)
}

var videoExtensions = []string{".mp4", ".webm", ".ogg"}

// IsVideoSource reports whether a url or media type refers to a video payload.
func IsVideoSource(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	if strings.HasPrefix(v, "data:video/") || strings.HasPrefix(v, "video/") {
		return true
	}
	if i := strings.IndexAny(v, "?#"); i >= 0 {
		v = v[:i]
	}
	for _, ext := range videoExtensions {
		if strings.HasSuffix(v, ext) {
			return true
		}
	}
	return false
}
