package blobstore

import (
	"context"
	"fmt"
	"strings"
)

// Backend names.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Root    string
	S3      S3Options
}

// New opens the backend named by opts.Backend; empty means local.
func New(ctx context.Context, opts Options) (BlobStore, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendLocal:
		return NewLocalCAS(opts.Root)
	case BackendS3:
		return NewS3(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", opts.Backend)
	}
}
