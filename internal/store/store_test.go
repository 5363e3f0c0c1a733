package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mue/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func addURLs(t *testing.T, st *Store, urls ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(urls))
	for _, u := range urls {
		id, err := st.AddBackground(context.Background(), &models.Background{URL: u, Name: u})
		if err != nil {
			t.Fatalf("add %s: %v", u, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func listURLs(t *testing.T, st *Store) []string {
	t.Helper()
	items, err := st.ListBackgrounds(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.URL)
	}
	return out
}

func TestOpenUnavailable(t *testing.T) {
	if _, err := Open(""); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable for empty path, got %v", err)
	}

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if _, err := Open(filepath.Join(blocker, "nested.db")); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable for unusable path, got %v", err)
	}
}

func TestAddAndListBackgrounds(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	uploaded := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	size := int64(2048)
	hash := "LEHV6nWB2yk8pyo0adR*.7kCMdnj"

	bg := &models.Background{
		URL:        "data:image/png;base64,AAAA",
		Name:       "beach.png",
		UploadDate: uploaded,
		Dimensions: &models.Dimensions{Width: 1920, Height: 1080},
		FileSize:   &size,
		Folder:     "Trip",
		BlurHash:   &hash,
	}
	id, err := st.AddBackground(ctx, bg)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id <= 0 || bg.ID != id {
		t.Fatalf("expected assigned id, got %d (record %d)", id, bg.ID)
	}

	got, err := st.GetBackground(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := models.Background{
		ID:         id,
		URL:        "data:image/png;base64,AAAA",
		Name:       "beach.png",
		UploadDate: uploaded,
		Dimensions: &models.Dimensions{Width: 1920, Height: 1080},
		FileSize:   &size,
		Folder:     "Trip",
		BlurHash:   &hash,
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("background mismatch (-want +got):\n%s", diff)
	}

	missing, err := st.GetBackground(ctx, id+100)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing background, got %+v err=%v", missing, err)
	}
}

func TestAddBackgroundURLDefaults(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	id, err := st.AddBackgroundURL(ctx, "https://example.com/a.jpg")
	if err != nil {
		t.Fatalf("add url: %v", err)
	}
	got, err := st.GetBackground(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Image" || got.Folder != "" || got.Dimensions != nil || got.BlurHash != nil || got.FileSize != nil {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got.UploadDate.IsZero() {
		t.Fatal("expected upload date to be stamped")
	}
}

func TestLegacyRowsNormalizedOnRead(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, err := st.db.ExecContext(ctx, `INSERT INTO backgrounds (url, created_at, width, height) VALUES (?, ?, 10, 10)`,
		"legacy.png", formatTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	items, err := st.ListBackgrounds(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.Name != models.LegacyName(item.ID) {
		t.Fatalf("expected legacy name, got %q", item.Name)
	}
	if item.Dimensions != nil || item.BlurHash != nil || item.FileSize != nil {
		t.Fatalf("expected legacy metadata to be cleared, got %+v", item)
	}
	if item.UploadDate.Year() != 2020 {
		t.Fatalf("expected upload date from created_at, got %v", item.UploadDate)
	}
}

func TestCountMatchesAddsMinusDeletes(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	ids := addURLs(t, st, "a", "b", "c", "d", "e")
	if err := st.DeleteBackground(ctx, ids[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.DeleteBackgroundAt(ctx, 0); err != nil {
		t.Fatalf("delete at: %v", err)
	}

	count, err := st.CountBackgrounds(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
	if got := len(listURLs(t, st)); got != count {
		t.Fatalf("list length %d does not match count %d", got, count)
	}
}

func TestDeleteBackgroundAt(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	addURLs(t, st, "a", "b", "c", "d")

	deleted, err := st.DeleteBackgroundAt(ctx, 1)
	if err != nil {
		t.Fatalf("delete at: %v", err)
	}
	if !deleted {
		t.Fatal("expected a deletion")
	}
	if diff := cmp.Diff([]string{"a", "c", "d"}, listURLs(t, st)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}

	deleted, err = st.DeleteBackgroundAt(ctx, 10)
	if err != nil {
		t.Fatalf("delete out of range: %v", err)
	}
	if deleted {
		t.Fatal("out-of-range delete should be a no-op")
	}
	if len(listURLs(t, st)) != 3 {
		t.Fatal("out-of-range delete changed the collection")
	}
}

func TestDeleteBackgroundsAtUsesOneSnapshot(t *testing.T) {
	cases := []struct {
		name    string
		indices []int
	}{
		{name: "ascending", indices: []int{0, 2, 4}},
		{name: "descending", indices: []int{4, 2, 0}},
		{name: "with duplicates and out of range", indices: []int{2, 4, 0, 2, 9, -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := testStore(t)
			addURLs(t, st, "a", "b", "c", "d", "e")

			deleted, err := st.DeleteBackgroundsAt(context.Background(), tc.indices)
			if err != nil {
				t.Fatalf("delete many: %v", err)
			}
			if deleted != 3 {
				t.Fatalf("expected 3 deletions, got %d", deleted)
			}
			if diff := cmp.Diff([]string{"b", "d"}, listURLs(t, st)); diff != "" {
				t.Fatalf("unexpected remaining (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateBackgroundAt(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	ids := addURLs(t, st, "a", "b")

	folder := "Trip"
	id, added, err := st.UpdateBackgroundAt(ctx, 1, models.BackgroundPatch{Folder: &folder})
	if err != nil {
		t.Fatalf("update at: %v", err)
	}
	if added || id != ids[1] {
		t.Fatalf("expected in-place update of %d, got id=%d added=%v", ids[1], id, added)
	}
	got, _ := st.GetBackground(ctx, ids[1])
	if got.Folder != "Trip" || got.URL != "b" {
		t.Fatalf("unexpected merge: %+v", got)
	}
	if got.UpdatedAt == nil {
		t.Fatal("expected updatedAt to be stamped")
	}

	newURL := "c"
	id, added, err = st.UpdateBackgroundAt(ctx, 5, models.BackgroundPatch{URL: &newURL})
	if err != nil {
		t.Fatalf("update out of range: %v", err)
	}
	if !added {
		t.Fatal("out-of-range update should add a background")
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, listURLs(t, st)); diff != "" {
		t.Fatalf("unexpected collection (-want +got):\n%s", diff)
	}
	created, _ := st.GetBackground(ctx, id)
	if created == nil || created.Name != "Image" {
		t.Fatalf("expected default name on added background, got %+v", created)
	}
}

func TestUpdateBackgroundMetadata(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	id, err := st.AddBackground(ctx, &models.Background{URL: "x", Name: "x"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	folder := "Trip"
	if err := st.UpdateBackgroundMetadata(ctx, id, models.BackgroundPatch{Folder: &folder}); err != nil {
		t.Fatalf("update metadata: %v", err)
	}
	items, err := st.ListBackgrounds(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items[0].Folder != "Trip" {
		t.Fatalf("expected folder Trip, got %q", items[0].Folder)
	}

	err = st.UpdateBackgroundMetadata(ctx, id+1, models.BackgroundPatch{Folder: &folder})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIDsAreNotReused(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	ids := addURLs(t, st, "a", "b")
	if err := st.ClearBackgrounds(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	next := addURLs(t, st, "c")
	if next[0] <= ids[1] {
		t.Fatalf("expected fresh id above %d, got %d", ids[1], next[0])
	}
}

func TestDeleteBackgroundsByID(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	ids := addURLs(t, st, "a", "b", "c")

	deleted, err := st.DeleteBackgrounds(ctx, []int64{ids[0], ids[2], 999})
	if err != nil {
		t.Fatalf("delete by id: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
	if diff := cmp.Diff([]string{"b"}, listURLs(t, st)); diff != "" {
		t.Fatalf("unexpected remaining (-want +got):\n%s", diff)
	}
	if err := st.DeleteBackground(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
}

func TestListBackgroundsByURL(t *testing.T) {
	st := testStore(t)
	addURLs(t, st, "a", "b", "a")

	matches, err := st.ListBackgroundsByURL(context.Background(), "a")
	if err != nil {
		t.Fatalf("by url: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestPreferences(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, ok, err := st.GetPreference(ctx, "customBackground"); err != nil || ok {
		t.Fatalf("expected missing preference, ok=%v err=%v", ok, err)
	}
	if err := st.SetPreference(ctx, "customBackground", `["a"]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.SetPreference(ctx, "customBackground", `["b"]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, ok, err := st.GetPreference(ctx, "customBackground")
	if err != nil || !ok || value != `["b"]` {
		t.Fatalf("unexpected preference value=%q ok=%v err=%v", value, ok, err)
	}
	if err := st.DeletePreference(ctx, "customBackground"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.GetPreference(ctx, "customBackground"); ok {
		t.Fatal("expected preference to be deleted")
	}
}

func TestRequestPersistenceSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	granted, err := st.RequestPersistence(context.Background())
	if err != nil || !granted {
		t.Fatalf("expected persistence grant, granted=%v err=%v", granted, err)
	}
	st.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	persisted, err := reopened.Persisted(context.Background())
	if err != nil || !persisted {
		t.Fatalf("expected persisted flag after reopen, got %v err=%v", persisted, err)
	}
	var mode int
	if err := reopened.db.QueryRow("PRAGMA synchronous").Scan(&mode); err != nil {
		t.Fatalf("read synchronous: %v", err)
	}
	if mode != 2 {
		t.Fatalf("expected synchronous=FULL (2), got %d", mode)
	}
}

func TestDatabaseSize(t *testing.T) {
	st := testStore(t)
	addURLs(t, st, "a")
	size, err := st.DatabaseSize(context.Background())
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size <= 0 {
		t.Fatalf("expected positive size, got %d", size)
	}
}

func TestEmbeddedBytes(t *testing.T) {
	st := testStore(t)
	addURLs(t, st, "data:image/png;base64,AAAA", "data:image/png;base64,AAA=", "https://example.com/a.png")

	total, err := st.EmbeddedBytes(context.Background())
	if err != nil {
		t.Fatalf("embedded bytes: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5 embedded bytes, got %d", total)
	}
}
