// Package migration moves backgrounds saved by older releases, which kept a
// JSON list of urls under a single preference key, into the record store.
package migration

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

const (
	// LegacyKey holds the pre-database background list.
	LegacyKey = "customBackground"
	// MigratedKey is set to "true" once LegacyKey has been imported. Later
	// runs never read LegacyKey again, so deleted records stay deleted.
	MigratedKey = "customBackgroundMigrated"
)

// Preferences is the flat key/value storage older releases wrote to.
type Preferences interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
}

// Records is the part of the background store the migration writes to.
type Records interface {
	CountBackgrounds(ctx context.Context) (int, error)
	AddBackgroundURL(ctx context.Context, rawURL string) (int64, error)
}

// Migrator imports legacy backgrounds once.
type Migrator struct {
	prefs   Preferences
	records Records
	logger  *slog.Logger
}

// New creates a Migrator.
func New(prefs Preferences, records Records) *Migrator {
	return &Migrator{
		prefs:   prefs,
		records: records,
		logger:  slog.Default().With("component", "migration"),
	}
}

// Migrate imports the legacy list into an empty record store, once. It
// reports whether anything was imported. Failures are logged and reported as
// false so startup never blocks on them.
func (m *Migrator) Migrate(ctx context.Context) bool {
	migrated, err := m.migrate(ctx)
	if err != nil {
		m.logger.Warn("legacy background migration failed", "error", err)
		return false
	}
	return migrated
}

// Import stores raw as the legacy list and migrates it. A value handed over
// explicitly is imported even if an earlier list was migrated already, but
// only into an empty record store; otherwise nothing is written.
func (m *Migrator) Import(ctx context.Context, raw string) (bool, error) {
	if len(ParseLegacy(raw)) == 0 {
		return false, nil
	}
	count, err := m.records.CountBackgrounds(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := m.prefs.SetPreference(ctx, LegacyKey, raw); err != nil {
		return false, err
	}
	if err := m.prefs.SetPreference(ctx, MigratedKey, "false"); err != nil {
		return false, err
	}
	return m.migrate(ctx)
}

// Done reports whether the legacy list has been migrated.
func Done(ctx context.Context, prefs Preferences) (bool, error) {
	flag, ok, err := prefs.GetPreference(ctx, MigratedKey)
	if err != nil {
		return false, err
	}
	return ok && flag == "true", nil
}

func (m *Migrator) migrate(ctx context.Context) (bool, error) {
	done, err := Done(ctx, m.prefs)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	raw, ok, err := m.prefs.GetPreference(ctx, LegacyKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	urls := ParseLegacy(raw)
	if len(urls) == 0 {
		return false, nil
	}

	count, err := m.records.CountBackgrounds(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		m.logger.Debug("record store already populated; skipping legacy migration", "records", count)
		return false, nil
	}

	for _, u := range urls {
		if _, err := m.records.AddBackgroundURL(ctx, u); err != nil {
			return false, err
		}
	}
	if err := m.prefs.SetPreference(ctx, MigratedKey, "true"); err != nil {
		return false, err
	}
	m.logger.Info("migrated legacy backgrounds", "count", len(urls))
	return true, nil
}

// ParseLegacy decodes a legacy preference value into its non-blank urls.
// The value is either a JSON array of strings or one bare url.
func ParseLegacy(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" || trimmed == "[]" {
		return nil
	}

	var entries []string
	var list []any
	if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
		for _, item := range list {
			if s, ok := item.(string); ok {
				entries = append(entries, s)
			}
		}
	} else {
		entries = []string{raw}
	}

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		out = append(out, entry)
	}
	return out
}
