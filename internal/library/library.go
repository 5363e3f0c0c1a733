// Package library implements the custom background workflows: uploading,
// adding remote urls, organising, picking and backfilling metadata.
package library

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"mue/internal/events"
	"mue/internal/imagemeta"
	"mue/internal/metrics"
	"mue/internal/migration"
	"mue/internal/models"
	"mue/internal/quota"
	"mue/internal/store"
)

// ErrInvalidURL means a url did not look like an http(s) image address.
var ErrInvalidURL = errors.New("invalid url")

const backfillConcurrency = 4

// Store is the persistence the library needs.
type Store interface {
	store.BackgroundStore
	store.PreferenceStore
}

// Options tunes a Library.
type Options struct {
	// CompressTarget is the size uploads are compressed towards.
	CompressTarget int64
	Metrics        *metrics.Collector
	Bus            *events.Bus
}

// Library coordinates the store, metadata enrichment and the quota advisor.
// Uploads and mutations are serialized; reads are not.
type Library struct {
	mu sync.Mutex

	store    Store
	enricher *imagemeta.Enricher
	advisor  *quota.Advisor
	migrator *migration.Migrator
	metrics  *metrics.Collector
	bus      *events.Bus

	compressTarget int64
	intn           func(n int) int
	logger         *slog.Logger
}

// New creates a Library.
func New(st Store, enricher *imagemeta.Enricher, advisor *quota.Advisor, opts Options) *Library {
	if enricher == nil {
		enricher = imagemeta.NewEnricher()
	}
	if advisor == nil {
		advisor = quota.NewAdvisor(nil, nil)
	}
	target := opts.CompressTarget
	if target <= 0 {
		target = imagemeta.DefaultCompressTarget
	}
	return &Library{
		store:          st,
		enricher:       enricher,
		advisor:        advisor,
		migrator:       migration.New(st, st),
		metrics:        opts.Metrics,
		bus:            opts.Bus,
		compressTarget: target,
		intn:           rand.IntN,
		logger:         slog.Default().With("component", "library"),
	}
}

// Load imports legacy data, fills in missing metadata and returns the
// collection in insertion order.
func (l *Library) Load(ctx context.Context) ([]models.Background, error) {
	l.mu.Lock()
	migrated := l.migrator.Migrate(ctx)
	l.mu.Unlock()
	if migrated {
		l.publish(events.RefreshBackground)
	}
	if _, err := l.Backfill(ctx); err != nil {
		l.logger.Warn("metadata backfill failed", "error", err)
	}
	return l.List(ctx, models.SortNone)
}

// List returns the collection in the given order.
func (l *Library) List(ctx context.Context, order models.SortOrder) ([]models.Background, error) {
	items, err := l.store.ListBackgrounds(ctx)
	if err != nil {
		return nil, err
	}
	l.metrics.SetBackgrounds(len(items))
	return models.SortBackgrounds(items, order), nil
}

// Get returns one background, or store.ErrNotFound.
func (l *Library) Get(ctx context.Context, id int64) (*models.Background, error) {
	bg, err := l.store.GetBackground(ctx, id)
	if err != nil {
		return nil, err
	}
	if bg == nil {
		return nil, store.ErrNotFound
	}
	return bg, nil
}

// Pick returns a random background, or nil when there is none to show.
// Offline, only embedded payloads qualify. An empty store falls back to the
// legacy url list while it has not been migrated.
func (l *Library) Pick(ctx context.Context, offline bool) (*models.Background, error) {
	items, err := l.store.ListBackgrounds(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		items, err = l.legacyBackgrounds(ctx)
		if err != nil {
			return nil, err
		}
	}

	if offline {
		embedded := items[:0:0]
		for _, bg := range items {
			if bg.IsEmbedded() {
				embedded = append(embedded, bg)
			}
		}
		items = embedded
	}
	if len(items) == 0 {
		return nil, nil
	}
	picked := items[l.intn(len(items))]
	return &picked, nil
}

// ImportLegacy migrates a legacy url list handed over by an older front end.
// It reports how many records were created; a populated store imports nothing.
func (l *Library) ImportLegacy(ctx context.Context, raw string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	migrated, err := l.migrator.Import(ctx, raw)
	if err != nil || !migrated {
		return 0, err
	}
	count, err := l.store.CountBackgrounds(ctx)
	if err != nil {
		return 0, err
	}
	l.publish(events.RefreshBackground)
	return count, nil
}

func (l *Library) legacyBackgrounds(ctx context.Context) ([]models.Background, error) {
	done, err := migration.Done(ctx, l.store)
	if err != nil || done {
		return nil, err
	}
	raw, ok, err := l.store.GetPreference(ctx, migration.LegacyKey)
	if err != nil || !ok {
		return nil, err
	}
	var out []models.Background
	for _, u := range migration.ParseLegacy(raw) {
		out = append(out, models.Background{URL: u, Name: "Image"})
	}
	return out, nil
}

// Backfill computes dimensions and blur hashes for raster backgrounds that
// lack them. It returns how many records were updated; individual failures
// are logged and skipped.
func (l *Library) Backfill(ctx context.Context) (int, error) {
	items, err := l.store.ListBackgrounds(ctx)
	if err != nil {
		return 0, err
	}

	var (
		mu     sync.Mutex
		filled int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)
	for _, bg := range items {
		if !bg.NeedsMetadata() {
			continue
		}
		g.Go(func() error {
			meta, err := l.enricher.Enrich(gctx, imagemeta.ParseSource(bg.URL))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.metrics.EnrichFailed("dimensions")
				l.logger.Debug("could not derive metadata", "id", bg.ID, "error", err)
				return nil
			}
			patch := models.BackgroundPatch{Dimensions: meta.Dimensions, BlurHash: meta.BlurHash}
			if err := l.store.UpdateBackgroundMetadata(gctx, bg.ID, patch); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			filled++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return filled, err
	}

	l.metrics.Backfilled(filled)
	if filled > 0 {
		l.logger.Info("backfilled background metadata", "count", filled)
		l.publish(events.RefreshBackground)
	}
	return filled, nil
}

// Usage summarises storage consumption.
type Usage struct {
	Count     int     `json:"count"`
	Used      int64   `json:"used"`
	Quota     int64   `json:"quota"`
	Percent   float64 `json:"percent"`
	UsedText  string  `json:"usedText"`
	QuotaText string  `json:"quotaText"`
	Persisted bool    `json:"persisted"`
}

type persistenceReporter interface {
	Persisted(ctx context.Context) (bool, error)
}

// Usage reports embedded payload bytes against the storage quota.
func (l *Library) Usage(ctx context.Context) (Usage, error) {
	used, err := l.store.EmbeddedBytes(ctx)
	if err != nil {
		return Usage{}, err
	}
	count, err := l.store.CountBackgrounds(ctx)
	if err != nil {
		return Usage{}, err
	}
	est := l.advisor.EstimateUsage(ctx)

	u := Usage{
		Count:     count,
		Used:      used,
		Quota:     est.Quota,
		UsedText:  imagemeta.FormatSize(used),
		QuotaText: imagemeta.FormatSize(est.Quota),
	}
	if est.Quota > 0 {
		u.Percent = float64(used) / float64(est.Quota) * 100
	}
	if pr, ok := l.store.(persistenceReporter); ok {
		persisted, err := pr.Persisted(ctx)
		if err != nil {
			return Usage{}, err
		}
		u.Persisted = persisted
	}

	l.metrics.SetBackgrounds(count)
	l.metrics.SetStorage(used, est.Quota)
	return u, nil
}

// RequestPersistence asks for durable storage on the user's behalf.
func (l *Library) RequestPersistence(ctx context.Context) (bool, error) {
	granted, err := l.advisor.RequestPersistence(ctx)
	if err != nil {
		return false, err
	}
	if granted {
		l.publish(events.RefreshStorage)
	}
	return granted, nil
}

// DisplayOrder maps positions in a sorted view to background ids.
type DisplayOrder []int64

// DisplayOrder returns the id at every position of the collection sorted by order.
func (l *Library) DisplayOrder(ctx context.Context, order models.SortOrder) (DisplayOrder, error) {
	items, err := l.List(ctx, order)
	if err != nil {
		return nil, err
	}
	ids := make(DisplayOrder, len(items))
	for i, bg := range items {
		ids[i] = bg.ID
	}
	return ids, nil
}

// IDAt returns the id shown at index.
func (d DisplayOrder) IDAt(index int) (int64, bool) {
	if index < 0 || index >= len(d) {
		return 0, false
	}
	return d[index], true
}

// IDs resolves display indices to ids, skipping duplicates and indices out
// of range.
func (d DisplayOrder) IDs(indices []int) []int64 {
	seen := make(map[int64]struct{}, len(indices))
	out := make([]int64, 0, len(indices))
	for _, index := range indices {
		id, ok := d.IDAt(index)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (l *Library) publish(reason events.Reason) {
	if l.bus != nil {
		l.bus.Publish(reason)
	}
}

func validURL(raw string) bool {
	return urlPattern.MatchString(strings.TrimSpace(raw))
}
