// Package backup exports the background collection to a blob store plus a
// YAML manifest, and restores it from one.
package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"mue/internal/blobstore"
	"mue/internal/imagemeta"
	"mue/internal/models"
	"mue/internal/quota"
	"mue/internal/store"
)

// ManifestVersion is the manifest format written by Export.
const ManifestVersion = 1

// ErrManifest means a manifest could not be read or is inconsistent.
var ErrManifest = errors.New("invalid backup manifest")

// Manifest lists every exported background.
type Manifest struct {
	Version     int       `yaml:"version"`
	ID          string    `yaml:"id"`
	CreatedAt   time.Time `yaml:"created_at"`
	Backend     string    `yaml:"backend"`
	Backgrounds []Entry   `yaml:"backgrounds"`
}

// Entry is one background. Embedded payloads are referenced by Blob; remote
// images keep their URL.
type Entry struct {
	Name       string             `yaml:"name"`
	URL        string             `yaml:"url,omitempty"`
	Blob       *models.Blob       `yaml:"blob,omitempty"`
	UploadDate time.Time          `yaml:"upload_date"`
	Folder     string             `yaml:"folder,omitempty"`
	Dimensions *models.Dimensions `yaml:"dimensions,omitempty"`
	FileSize   *int64             `yaml:"file_size,omitempty"`
	BlurHash   *string            `yaml:"blur_hash,omitempty"`
}

// Records is the store access a backup needs.
type Records interface {
	ListBackgrounds(ctx context.Context) ([]models.Background, error)
	AddBackground(ctx context.Context, bg *models.Background) (int64, error)
	EmbeddedBytes(ctx context.Context) (int64, error)
}

var _ Records = (store.BackgroundStore)(nil)

// Service runs exports and imports against one blob store.
type Service struct {
	records Records
	blobs   blobstore.BlobStore
	backend string
	advisor *quota.Advisor
	logger  *slog.Logger
}

// NewService creates a Service. advisor may be nil to skip quota checks on import.
func NewService(records Records, blobs blobstore.BlobStore, backend string, advisor *quota.Advisor) *Service {
	if backend == "" {
		backend = blobstore.BackendLocal
	}
	return &Service{
		records: records,
		blobs:   blobs,
		backend: backend,
		advisor: advisor,
		logger:  slog.Default().With("component", "backup"),
	}
}

// Export copies embedded payloads to the blob store and writes the manifest to w.
func (s *Service) Export(ctx context.Context, w io.Writer) (*Manifest, error) {
	items, err := s.records.ListBackgrounds(ctx)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Version:     ManifestVersion,
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Backend:     s.backend,
		Backgrounds: make([]Entry, 0, len(items)),
	}
	for _, bg := range items {
		entry := Entry{
			Name:       bg.Name,
			UploadDate: bg.UploadDate,
			Folder:     bg.Folder,
			Dimensions: bg.Dimensions,
			FileSize:   bg.FileSize,
			BlurHash:   bg.BlurHash,
		}
		if !bg.IsEmbedded() {
			entry.URL = bg.URL
			m.Backgrounds = append(m.Backgrounds, entry)
			continue
		}

		mediaType, data, err := imagemeta.ParseDataURL(bg.URL)
		if err != nil {
			return nil, fmt.Errorf("background %d: %w", bg.ID, err)
		}
		put, err := s.blobs.Put(ctx, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("store background %d: %w", bg.ID, err)
		}
		entry.Blob = &models.Blob{
			SHA256:         put.SHA256,
			SizeBytes:      put.SizeBytes,
			MediaType:      mediaType,
			StorageBackend: s.backend,
			BlobKey:        put.Key,
			CreatedAt:      m.CreatedAt,
		}
		m.Backgrounds = append(m.Backgrounds, entry)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	s.logger.Info("exported backgrounds", "manifest", m.ID, "count", len(m.Backgrounds))
	return m, nil
}

// ReadManifest decodes and validates a manifest.
func ReadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrManifest, m.Version)
	}
	for i, entry := range m.Backgrounds {
		if entry.Blob == nil && entry.URL == "" {
			return nil, fmt.Errorf("%w: entry %d has neither url nor blob", ErrManifest, i)
		}
	}
	return &m, nil
}

// Import appends every manifest entry to the collection in manifest order.
// Payloads are verified against their digest before anything is written.
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	m, err := ReadManifest(r)
	if err != nil {
		return 0, err
	}

	restored := make([]models.Background, 0, len(m.Backgrounds))
	var incoming int64
	for i, entry := range m.Backgrounds {
		bg := models.Background{
			URL:        entry.URL,
			Name:       entry.Name,
			UploadDate: entry.UploadDate,
			Folder:     entry.Folder,
			Dimensions: entry.Dimensions,
			FileSize:   entry.FileSize,
			BlurHash:   entry.BlurHash,
		}
		if entry.Blob != nil {
			data, err := s.readBlob(ctx, entry.Blob)
			if err != nil {
				return 0, fmt.Errorf("entry %d: %w", i, err)
			}
			bg.URL = imagemeta.EncodeDataURL(entry.Blob.MediaType, data)
			incoming += int64(len(data))
		}
		restored = append(restored, bg)
	}

	if s.advisor != nil && incoming > 0 {
		used, err := s.records.EmbeddedBytes(ctx)
		if err != nil {
			return 0, err
		}
		if err := quota.CheckWrite(used, incoming, s.advisor.EstimateUsage(ctx).Quota); err != nil {
			return 0, err
		}
	}

	for i := range restored {
		if _, err := s.records.AddBackground(ctx, &restored[i]); err != nil {
			return i, err
		}
	}
	s.logger.Info("imported backgrounds", "manifest", m.ID, "count", len(restored))
	return len(restored), nil
}

func (s *Service) readBlob(ctx context.Context, blob *models.Blob) ([]byte, error) {
	rc, err := s.blobs.Open(ctx, blob.BlobKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != blob.SHA256 {
		return nil, fmt.Errorf("%w: digest mismatch for %s", ErrManifest, blob.BlobKey)
	}
	return data, nil
}
