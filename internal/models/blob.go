package models

import "time"

// Blob is a payload copied out of a background into a blob store.
type Blob struct {
	SHA256         string    `json:"sha256" yaml:"sha256"`
	SizeBytes      int64     `json:"size_bytes" yaml:"size_bytes"`
	MediaType      string    `json:"media_type" yaml:"media_type"`
	StorageBackend string    `json:"storage_backend" yaml:"storage_backend"`
	BlobKey        string    `json:"blob_key" yaml:"blob_key"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}
