package store

import (
	"context"

	"mue/internal/models"
)

// BackgroundStore abstracts background storage backends.
type BackgroundStore interface {
	ListBackgrounds(ctx context.Context) ([]models.Background, error)
	GetBackground(ctx context.Context, id int64) (*models.Background, error)
	ListBackgroundsByURL(ctx context.Context, rawURL string) ([]models.Background, error)
	CountBackgrounds(ctx context.Context) (int, error)
	AddBackground(ctx context.Context, bg *models.Background) (int64, error)
	AddBackgroundURL(ctx context.Context, rawURL string) (int64, error)
	UpdateBackgroundAt(ctx context.Context, index int, patch models.BackgroundPatch) (int64, bool, error)
	UpdateBackgroundMetadata(ctx context.Context, id int64, patch models.BackgroundPatch) error
	DeleteBackgroundAt(ctx context.Context, index int) (bool, error)
	DeleteBackgroundsAt(ctx context.Context, indices []int) (int, error)
	DeleteBackground(ctx context.Context, id int64) error
	DeleteBackgrounds(ctx context.Context, ids []int64) (int, error)
	ClearBackgrounds(ctx context.Context) error
	EmbeddedBytes(ctx context.Context) (int64, error)
}

// PreferenceStore is the flat key/value storage inherited from older releases.
//
// It is kept separate from BackgroundStore so the migration path can be
// exercised against either in isolation.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

var (
	_ BackgroundStore = (*Store)(nil)
	_ PreferenceStore = (*Store)(nil)
)
