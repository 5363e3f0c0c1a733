package imagemeta

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"mue/internal/models"
)

const (
	defaultFetchTimeout  = 30 * time.Second
	defaultMaxFetchBytes = 64 << 20 // 64 MiB
)

// Enricher derives metadata for image sources.
type Enricher struct {
	// Client fetches remote sources. A client with a 30s timeout is used when nil.
	Client *http.Client
	// MaxFetchBytes caps how much of a remote image is read.
	MaxFetchBytes int64

	logger *slog.Logger
}

// Metadata is the derived metadata of one image.
type Metadata struct {
	Dimensions *models.Dimensions
	BlurHash   *string
}

// NewEnricher returns an Enricher with default limits.
func NewEnricher() *Enricher {
	return &Enricher{
		Client:        &http.Client{Timeout: defaultFetchTimeout},
		MaxFetchBytes: defaultMaxFetchBytes,
		logger:        slog.Default().With("component", "imagemeta"),
	}
}

// Enrich reads src once and computes dimensions and blur hash concurrently
// from that copy. A blur hash failure only leaves the hash nil; a dimension
// failure is returned.
func (e *Enricher) Enrich(ctx context.Context, src Source) (Metadata, error) {
	var meta Metadata
	var dims models.Dimensions
	var hash string

	if src.Kind != SourceBytes {
		data, err := e.readAll(ctx, src)
		if err != nil {
			return meta, err
		}
		src = BytesSource(data)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dims, err = e.ImageDimensions(gctx, src)
		return err
	})
	g.Go(func() error {
		var err error
		hash, err = e.GenerateBlurHash(gctx, src, DefaultComponentsX, DefaultComponentsY)
		if err != nil {
			e.log().Debug("blur hash unavailable", "source_kind", src.Kind, "error", err)
			hash = ""
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return meta, err
	}

	meta.Dimensions = &dims
	if hash != "" {
		meta.BlurHash = &hash
	}
	return meta, nil
}

func (e *Enricher) readAll(ctx context.Context, src Source) ([]byte, error) {
	rc, err := e.open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (e *Enricher) httpClient() *http.Client {
	if e == nil || e.Client == nil {
		return &http.Client{Timeout: defaultFetchTimeout}
	}
	return e.Client
}

func (e *Enricher) maxBytes() int64 {
	if e == nil || e.MaxFetchBytes <= 0 {
		return defaultMaxFetchBytes
	}
	return e.MaxFetchBytes
}

func (e *Enricher) log() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}
