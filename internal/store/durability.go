package store

import (
	"context"
	"strconv"
)

// PersistedPreferenceKey records that durable storage has been granted.
const PersistedPreferenceKey = "storagePersisted"

// RequestPersistence switches the database to fully synchronous commits so
// that acknowledged writes survive a crash or power loss. The grant is
// remembered and reapplied on the next Open.
func (s *Store) RequestPersistence(ctx context.Context) (bool, error) {
	if err := s.applyDurable(ctx); err != nil {
		return false, err
	}
	if err := s.SetPreference(ctx, PersistedPreferenceKey, strconv.FormatBool(true)); err != nil {
		return false, err
	}
	return true, nil
}

// Persisted reports whether durable storage was granted earlier.
func (s *Store) Persisted(ctx context.Context) (bool, error) {
	raw, ok, err := s.GetPreference(ctx, PersistedPreferenceKey)
	if err != nil || !ok {
		return false, err
	}
	persisted, err := strconv.ParseBool(raw)
	if err != nil {
		return false, nil
	}
	return persisted, nil
}

func (s *Store) restoreDurability(ctx context.Context) error {
	persisted, err := s.Persisted(ctx)
	if err != nil || !persisted {
		return err
	}
	return s.applyDurable(ctx)
}

func (s *Store) applyDurable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA synchronous = FULL;"); err != nil {
		return err
	}
	// Keep the single pooled connection so the pragma is not lost on recycle.
	s.db.SetConnMaxLifetime(0)
	return nil
}
