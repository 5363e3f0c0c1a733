// Package blobstore keeps background payloads outside the database, keyed by
// content digest. Backups write embedded images here.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound means no blob exists under a key.
var ErrNotFound = errors.New("blob not found")

// PutResult describes one stored payload.
type PutResult struct {
	SHA256    string
	SizeBytes int64
	Key       string
}

// BlobStore stores immutable payloads by content digest.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (PutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// Usage returns the bytes held by the store.
	Usage(ctx context.Context) (int64, error)
}

const keyAlgorithm = "sha256"

// keyFromDigest fans keys out over two directory levels.
func keyFromDigest(digest string) string {
	return keyAlgorithm + "/" + digest[0:2] + "/" + digest[2:4] + "/" + digest
}
