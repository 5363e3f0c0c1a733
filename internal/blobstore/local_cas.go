package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tmpDir = "tmp"

// LocalCAS stores payloads in a content-addressed directory tree.
type LocalCAS struct {
	root string
}

// NewLocalCAS creates (if needed) and opens a tree rooted at root.
func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, tmpDir), 0o755); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs}, nil
}

// Root returns the absolute directory of the tree.
func (c *LocalCAS) Root() string {
	return c.root
}

// Put spools r to a temp file while hashing it, then moves it under its digest.
// Storing the same bytes twice yields the same key.
func (c *LocalCAS) Put(ctx context.Context, r io.Reader) (PutResult, error) {
	if r == nil {
		return PutResult{}, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return PutResult{}, err
	}

	tmp, err := os.CreateTemp(filepath.Join(c.root, tmpDir), "put-*")
	if err != nil {
		return PutResult{}, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return PutResult{}, err
	}

	digest := hex.EncodeToString(h.Sum(nil))
	result := PutResult{SHA256: digest, SizeBytes: n, Key: keyFromDigest(digest)}
	dst := filepath.Join(c.root, filepath.FromSlash(result.Key))
	if _, err := os.Stat(dst); err == nil {
		return result, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return PutResult{}, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		// A concurrent Put of the same bytes may have won the rename.
		if _, statErr := os.Stat(dst); statErr == nil {
			return result, nil
		}
		return PutResult{}, err
	}
	return result, nil
}

// Open returns the payload stored under key.
func (c *LocalCAS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, err
}

// Delete removes a payload. Missing keys are ignored.
func (c *LocalCAS) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := c.pathFromKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Usage sums the size of every stored payload.
func (c *LocalCAS) Usage(ctx context.Context) (int64, error) {
	var total int64
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path == filepath.Join(c.root, tmpDir) {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

func (c *LocalCAS) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blob key must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(c.root, clean), nil
}
