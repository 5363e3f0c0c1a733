package library

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"mue/internal/events"
	"mue/internal/imagemeta"
	"mue/internal/models"
	"mue/internal/quota"
)

var urlPattern = regexp.MustCompile(`https?://(www\.)?[-a-zA-Z0-9@:%._~#=]{1,256}\.[a-zA-Z0-9()]{1,63}\b([-a-zA-Z0-9()!@:%_.~#?&=]*)`)

// UploadFile is one file queued for upload.
type UploadFile struct {
	Name      string
	MediaType string
	Data      []byte
}

// Progress is reported after each stored file.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Name    string `json:"name"`
}

// FileError records a file that could not be stored.
type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// UploadResult is the outcome of a batch upload.
type UploadResult struct {
	Stored []models.Background
	Failed []FileError
	// Aborted is set when the quota stopped the queue early.
	Aborted bool
}

// Upload stores files one at a time. A quota rejection stops the queue and is
// returned as ErrQuotaExceeded; other failures are collected per file and the
// queue continues. One refresh event is published for the whole batch.
func (l *Library) Upload(ctx context.Context, files []UploadFile, folder string, progress func(Progress)) (UploadResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result UploadResult
	if len(files) == 0 {
		return result, nil
	}
	defer func() {
		if len(result.Stored) > 0 {
			l.publish(events.RefreshBackground)
		}
	}()

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		bg, err := l.prepare(ctx, file, folder)
		if err == nil {
			_, err = l.store.AddBackground(ctx, bg)
		}
		if err != nil {
			if errors.Is(err, quota.ErrQuotaExceeded) {
				l.metrics.QuotaRejected()
				result.Aborted = true
				l.logger.Warn("upload stopped: storage quota exceeded", "file", file.Name, "remaining", len(files)-i)
				return result, err
			}
			l.metrics.UploadFailed()
			l.logger.Warn("upload failed", "file", file.Name, "error", err)
			result.Failed = append(result.Failed, FileError{Name: file.Name, Err: err})
			continue
		}

		l.metrics.UploadStored(derefSize(bg.FileSize))
		result.Stored = append(result.Stored, *bg)
		if progress != nil {
			progress(Progress{Current: i + 1, Total: len(files), Name: bg.Name})
		}
	}
	return result, nil
}

// prepare turns a file into a record ready to insert, enforcing the quota.
func (l *Library) prepare(ctx context.Context, file UploadFile, folder string) (*models.Background, error) {
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", imagemeta.ErrDecode)
	}
	mediaType := file.MediaType
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(file.Data)
	}

	used, err := l.store.EmbeddedBytes(ctx)
	if err != nil {
		return nil, err
	}
	count, err := l.store.CountBackgrounds(ctx)
	if err != nil {
		return nil, err
	}
	available := l.advisor.EstimateUsage(ctx).Quota
	if available > 0 {
		l.advisor.MaybeRequestPersistence(ctx, float64(used)/float64(available))
	}

	bg := &models.Background{
		Name:       imagemeta.FileName(file.Name, count),
		UploadDate: time.Now().UTC(),
		Folder:     folder,
	}

	if imagemeta.IsVideo(mediaType) || imagemeta.IsVideo(file.Name) {
		size := int64(len(file.Data))
		if err := quota.CheckWrite(used, size, available); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(mediaType, "video/") {
			mediaType = "video/mp4"
		}
		bg.URL = imagemeta.EncodeDataURL(mediaType, file.Data)
		bg.FileSize = &size
		return bg, nil
	}

	compressed, err := l.enricher.Compress(ctx, file.Data, mediaType, l.compressTarget)
	if err != nil {
		l.metrics.EnrichFailed("compress")
		return nil, err
	}
	if err := quota.CheckWrite(used, int64(len(compressed.Data)), available); err != nil {
		return nil, err
	}

	bg.URL = imagemeta.EncodeDataURL(compressed.MediaType, compressed.Data)
	size := imagemeta.DataURLSize(bg.URL)
	bg.FileSize = &size

	meta, err := l.enricher.Enrich(ctx, imagemeta.BytesSource(compressed.Data))
	if err != nil {
		l.metrics.EnrichFailed("dimensions")
		return nil, err
	}
	if meta.BlurHash == nil {
		l.metrics.EnrichFailed("blurhash")
	}
	bg.Dimensions = meta.Dimensions
	bg.BlurHash = meta.BlurHash
	return bg, nil
}

// AddURL stores a remote image. Metadata is derived when the image can be
// fetched; otherwise the record is stored without it.
func (l *Library) AddURL(ctx context.Context, rawURL, folder string) (*models.Background, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !validURL(rawURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	bg := &models.Background{
		URL:        rawURL,
		Name:       imagemeta.NameFromURL(rawURL),
		UploadDate: time.Now().UTC(),
		Folder:     folder,
	}
	if meta, err := l.enricher.Enrich(ctx, imagemeta.ParseSource(rawURL)); err != nil {
		l.metrics.EnrichFailed("dimensions")
		l.logger.Info("could not derive metadata for remote image", "url", rawURL, "error", err)
	} else {
		bg.Dimensions = meta.Dimensions
		bg.BlurHash = meta.BlurHash
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.store.AddBackground(ctx, bg); err != nil {
		return nil, err
	}
	l.publish(events.RefreshBackground)
	return bg, nil
}

func derefSize(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
