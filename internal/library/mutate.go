package library

import (
	"context"

	"mue/internal/events"
	"mue/internal/models"
)

// Delete removes one background by id.
func (l *Library) Delete(ctx context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.DeleteBackground(ctx, id); err != nil {
		return err
	}
	l.publish(events.RefreshBackground)
	return nil
}

// DeleteMany removes backgrounds by id and reports how many existed.
func (l *Library) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	deleted, err := l.store.DeleteBackgrounds(ctx, ids)
	if err != nil {
		return deleted, err
	}
	if deleted > 0 {
		l.publish(events.RefreshBackground)
	}
	return deleted, nil
}

// DeleteAt removes backgrounds by position in the collection as listed in
// order. Duplicate and out-of-range positions are ignored.
func (l *Library) DeleteAt(ctx context.Context, order models.SortOrder, indices []int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		deleted int
		err     error
	)
	if order == models.SortNone {
		deleted, err = l.store.DeleteBackgroundsAt(ctx, indices)
	} else {
		var shown DisplayOrder
		shown, err = l.DisplayOrder(ctx, order)
		if err != nil {
			return 0, err
		}
		deleted, err = l.store.DeleteBackgrounds(ctx, shown.IDs(indices))
	}
	if err != nil {
		return deleted, err
	}
	if deleted > 0 {
		l.publish(events.RefreshBackground)
	}
	return deleted, nil
}

// Restore runs a bulk write, such as a backup import, under the mutation
// lock. write reports how many records it stored; any stored records are
// announced even when write fails partway.
func (l *Library) Restore(ctx context.Context, write func(context.Context) (int, error)) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, err := write(ctx)
	if stored > 0 {
		l.publish(events.RefreshBackground)
	}
	return stored, err
}

// Clear removes every background.
func (l *Library) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.ClearBackgrounds(ctx); err != nil {
		return err
	}
	l.publish(events.RefreshBackground)
	return nil
}

// SetFolder moves a background into folder. An empty folder removes the tag.
func (l *Library) SetFolder(ctx context.Context, id int64, folder string) (*models.Background, error) {
	return l.patch(ctx, id, models.BackgroundPatch{Folder: &folder})
}

// Rename changes a background's display name.
func (l *Library) Rename(ctx context.Context, id int64, name string) (*models.Background, error) {
	return l.patch(ctx, id, models.BackgroundPatch{Name: &name})
}

// Update applies an arbitrary patch by id.
func (l *Library) Update(ctx context.Context, id int64, patch models.BackgroundPatch) (*models.Background, error) {
	return l.patch(ctx, id, patch)
}

func (l *Library) patch(ctx context.Context, id int64, patch models.BackgroundPatch) (*models.Background, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !patch.IsEmpty() {
		if err := l.store.UpdateBackgroundMetadata(ctx, id, patch); err != nil {
			return nil, err
		}
		l.publish(events.RefreshBackground)
	}
	return l.Get(ctx, id)
}
