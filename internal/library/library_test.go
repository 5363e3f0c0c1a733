package library

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mue/internal/events"
	"mue/internal/imagemeta"
	"mue/internal/migration"
	"mue/internal/models"
	"mue/internal/quota"
	"mue/internal/store"
)

type fixedEstimator struct{ est quota.Estimate }

func (f fixedEstimator) Estimate(context.Context) (quota.Estimate, error) { return f.est, nil }

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testLibrary(t *testing.T, opts ...quota.Option) (*Library, *store.Store, *events.Bus) {
	t.Helper()
	st := testStore(t)
	bus := events.NewBus()
	advisor := quota.NewAdvisor(nil, st, opts...)
	return New(st, imagemeta.NewEnricher(), advisor, Options{Bus: bus}), st, bus
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func drain(ch <-chan events.Event) []events.Reason {
	var out []events.Reason
	for {
		select {
		case ev := <-ch:
			out = append(out, ev.Reason)
		default:
			return out
		}
	}
}

func TestUploadCollectsErrorsAndRefreshesOnce(t *testing.T) {
	ctx := context.Background()
	lib, st, bus := testLibrary(t)
	sub, cancel := bus.Subscribe(16)
	defer cancel()

	files := []UploadFile{
		{Name: "one.png", MediaType: "image/png", Data: pngBytes(t, 32, 16)},
		{Name: "broken.png", MediaType: "image/png", Data: []byte("not a png")},
		{Name: "", MediaType: "image/png", Data: pngBytes(t, 8, 8)},
	}
	var progress []Progress
	result, err := lib.Upload(ctx, files, "holiday", func(p Progress) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if len(result.Stored) != 2 || len(result.Failed) != 1 || result.Aborted {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Failed[0].Name != "broken.png" || !errors.Is(result.Failed[0], imagemeta.ErrDecode) {
		t.Fatalf("unexpected failure %+v", result.Failed[0])
	}
	wantProgress := []Progress{{Current: 1, Total: 3, Name: "one.png"}, {Current: 3, Total: 3, Name: "Image 2"}}
	if diff := cmp.Diff(wantProgress, progress); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}

	items, err := st.ListBackgrounds(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 records, got %d", len(items))
	}
	first := items[0]
	if !strings.HasPrefix(first.URL, "data:image/png;base64,") || first.Folder != "holiday" {
		t.Fatalf("unexpected record %+v", first)
	}
	if first.Dimensions == nil || first.Dimensions.Width != 32 || first.Dimensions.Height != 16 {
		t.Fatalf("unexpected dimensions %+v", first.Dimensions)
	}
	if first.BlurHash == nil || first.FileSize == nil || *first.FileSize != imagemeta.DataURLSize(first.URL) {
		t.Fatalf("expected blur hash and file size, got %+v", first)
	}

	if got := drain(sub); len(got) != 1 || got[0] != events.RefreshBackground {
		t.Fatalf("expected one background refresh, got %v", got)
	}
}

func TestUploadStopsOnQuota(t *testing.T) {
	ctx := context.Background()
	lib, st, _ := testLibrary(t, quota.WithFallbackQuota(10))

	files := []UploadFile{
		{Name: "a.png", MediaType: "image/png", Data: pngBytes(t, 16, 16)},
		{Name: "b.png", MediaType: "image/png", Data: pngBytes(t, 16, 16)},
	}
	result, err := lib.Upload(ctx, files, "", nil)
	if !errors.Is(err, quota.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if !result.Aborted || len(result.Stored) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if count, _ := st.CountBackgrounds(ctx); count != 0 {
		t.Fatalf("expected nothing stored, got %d", count)
	}
}

func TestUploadRequestsPersistenceNearQuota(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	if _, err := st.AddBackground(ctx, &models.Background{URL: "data:image/png;base64,AAAAAAAAAAAA", Name: "x"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	// 9 embedded bytes against a quota of 1000 is far from the threshold.
	advisor := quota.NewAdvisor(fixedEstimator{quota.Estimate{Usage: 9, Quota: 1000}}, st)
	lib := New(st, imagemeta.NewEnricher(), advisor, Options{})
	if _, err := lib.Upload(ctx, []UploadFile{{Name: "a.png", Data: pngBytes(t, 4, 4)}}, "", nil); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if persisted, _ := st.Persisted(ctx); persisted {
		t.Fatalf("persistence should not be requested below the threshold")
	}

	advisor = quota.NewAdvisor(fixedEstimator{quota.Estimate{Usage: 9, Quota: 10}}, st)
	lib = New(st, imagemeta.NewEnricher(), advisor, Options{})
	_, err := lib.Upload(ctx, []UploadFile{{Name: "b.png", Data: pngBytes(t, 4, 4)}}, "", nil)
	if !errors.Is(err, quota.ErrQuotaExceeded) {
		t.Fatalf("expected quota rejection, got %v", err)
	}
	if persisted, _ := st.Persisted(ctx); !persisted {
		t.Fatalf("expected persistence to be requested above the threshold")
	}
}

func TestUploadVideoStoredRaw(t *testing.T) {
	ctx := context.Background()
	lib, _, _ := testLibrary(t)

	data := []byte("\x00\x00\x00\x18ftypmp42 fake video")
	result, err := lib.Upload(ctx, []UploadFile{{Name: "clip.mp4", MediaType: "video/mp4", Data: data}}, "", nil)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(result.Stored) != 1 {
		t.Fatalf("expected one stored video, got %+v", result)
	}
	bg := result.Stored[0]
	if !strings.HasPrefix(bg.URL, "data:video/mp4;base64,") {
		t.Fatalf("unexpected url prefix %.30s", bg.URL)
	}
	if bg.Dimensions != nil || bg.BlurHash != nil {
		t.Fatalf("video should carry no image metadata: %+v", bg)
	}
	if bg.FileSize == nil || *bg.FileSize != int64(len(data)) {
		t.Fatalf("unexpected file size %v", bg.FileSize)
	}
}

func TestAddURL(t *testing.T) {
	ctx := context.Background()
	payload := pngBytes(t, 20, 10)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photos/bg.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer ts.Close()

	lib, _, _ := testLibrary(t)

	if _, err := lib.AddURL(ctx, "not a url", ""); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}

	bg, err := lib.AddURL(ctx, ts.URL+"/photos/bg.png?size=large", "")
	if err != nil {
		t.Fatalf("add url: %v", err)
	}
	if bg.Name != "bg.png" || bg.FileSize != nil {
		t.Fatalf("unexpected record %+v", bg)
	}
	if bg.Dimensions == nil || bg.Dimensions.Width != 20 {
		t.Fatalf("expected remote dimensions, got %+v", bg.Dimensions)
	}

	// Unreachable images are still stored, without metadata.
	missing, err := lib.AddURL(ctx, ts.URL+"/missing.png", "")
	if err != nil {
		t.Fatalf("add missing url: %v", err)
	}
	if missing.Dimensions != nil || missing.BlurHash != nil {
		t.Fatalf("expected no metadata, got %+v", missing)
	}
}

func TestPick(t *testing.T) {
	ctx := context.Background()
	lib, st, _ := testLibrary(t)

	picked, err := lib.Pick(ctx, false)
	if err != nil || picked != nil {
		t.Fatalf("expected nothing to pick, got %+v %v", picked, err)
	}

	if err := st.SetPreference(ctx, migration.LegacyKey, `["legacy.png"]`); err != nil {
		t.Fatalf("set legacy: %v", err)
	}
	picked, err = lib.Pick(ctx, false)
	if err != nil || picked == nil || picked.URL != "legacy.png" {
		t.Fatalf("expected legacy fallback, got %+v %v", picked, err)
	}

	if _, err := st.AddBackgroundURL(ctx, "https://example.com/remote.jpg"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := st.AddBackgroundURL(ctx, "data:image/png;base64,AAAA"); err != nil {
		t.Fatalf("add: %v", err)
	}

	lib.intn = func(n int) int { return n - 1 }
	picked, err = lib.Pick(ctx, false)
	if err != nil || picked == nil || picked.URL != "data:image/png;base64,AAAA" {
		t.Fatalf("expected last record, got %+v %v", picked, err)
	}

	lib.intn = func(int) int { return 0 }
	picked, err = lib.Pick(ctx, true)
	if err != nil || picked == nil || !picked.IsEmbedded() {
		t.Fatalf("offline pick should be embedded, got %+v %v", picked, err)
	}
}

func TestBackfillFillsMissingMetadata(t *testing.T) {
	ctx := context.Background()
	lib, st, bus := testLibrary(t)
	sub, cancel := bus.Subscribe(4)
	defer cancel()

	raster := imagemeta.EncodeDataURL("image/png", pngBytes(t, 24, 12))
	rasterID, err := st.AddBackgroundURL(ctx, raster)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := st.AddBackgroundURL(ctx, "data:video/mp4;base64,AAAA"); err != nil {
		t.Fatalf("add video: %v", err)
	}
	if _, err := st.AddBackgroundURL(ctx, "data:image/png;base64,Zm9v"); err != nil {
		t.Fatalf("add broken: %v", err)
	}

	filled, err := lib.Backfill(ctx)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if filled != 1 {
		t.Fatalf("expected 1 record backfilled, got %d", filled)
	}
	bg, err := lib.Get(ctx, rasterID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if bg.Dimensions == nil || *bg.Dimensions != (models.Dimensions{Width: 24, Height: 12}) || bg.BlurHash == nil {
		t.Fatalf("expected metadata, got %+v", bg)
	}
	if got := drain(sub); len(got) != 1 {
		t.Fatalf("expected one refresh, got %v", got)
	}

	if filled, _ = lib.Backfill(ctx); filled != 0 {
		t.Fatalf("expected nothing left to backfill, got %d", filled)
	}
}

func TestLoadMigratesLegacyList(t *testing.T) {
	ctx := context.Background()
	lib, st, _ := testLibrary(t)
	if err := st.SetPreference(ctx, migration.LegacyKey, `["a.png","b.png"]`); err != nil {
		t.Fatalf("set legacy: %v", err)
	}

	items, err := lib.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(items) != 2 || items[0].URL != "a.png" || items[1].URL != "b.png" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestMutations(t *testing.T) {
	ctx := context.Background()
	lib, st, bus := testLibrary(t)
	sub, cancel := bus.Subscribe(16)
	defer cancel()

	var ids []int64
	for _, u := range []string{"a.png", "b.png", "c.png"} {
		id, err := st.AddBackgroundURL(ctx, u)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, id)
	}

	bg, err := lib.SetFolder(ctx, ids[0], "nature")
	if err != nil || bg.Folder != "nature" || bg.UpdatedAt == nil {
		t.Fatalf("set folder: %+v %v", bg, err)
	}
	bg, err = lib.Rename(ctx, ids[1], "Beach")
	if err != nil || bg.Name != "Beach" {
		t.Fatalf("rename: %+v %v", bg, err)
	}
	if _, err := lib.Rename(ctx, 999, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := lib.Delete(ctx, ids[2]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := lib.Delete(ctx, ids[2]); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	deleted, err := lib.DeleteMany(ctx, []int64{ids[0], 999})
	if err != nil || deleted != 1 {
		t.Fatalf("delete many: %d %v", deleted, err)
	}
	if err := lib.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if count, _ := st.CountBackgrounds(ctx); count != 0 {
		t.Fatalf("expected empty store, got %d", count)
	}

	want := []events.Reason{
		events.RefreshBackground, events.RefreshBackground, events.RefreshBackground,
		events.RefreshBackground, events.RefreshBackground,
	}
	if diff := cmp.Diff(want, drain(sub)); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDisplayOrder(t *testing.T) {
	ctx := context.Background()
	lib, st, _ := testLibrary(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for i, name := range []string{"b", "c", "a"} {
		bg := &models.Background{URL: name + ".png", Name: name, UploadDate: base.Add(time.Duration(i) * time.Hour)}
		id, err := st.AddBackground(ctx, bg)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, id)
	}

	order, err := lib.DisplayOrder(ctx, models.SortNameAsc)
	if err != nil {
		t.Fatalf("display order: %v", err)
	}
	if diff := cmp.Diff(DisplayOrder{ids[2], ids[0], ids[1]}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{ids[1], ids[2]}, order.IDs([]int{2, 0, 2, 7, -1})); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	// Position 0 sorted by name is "a", the last record inserted.
	deleted, err := lib.DeleteAt(ctx, models.SortNameAsc, []int{0, 0, 5})
	if err != nil || deleted != 1 {
		t.Fatalf("delete at: %d %v", deleted, err)
	}
	if _, err := lib.Get(ctx, ids[2]); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected the first name in order to be gone, got %v", err)
	}

	// Insertion order: position 0 is now "b".
	deleted, err = lib.DeleteAt(ctx, models.SortNone, []int{0})
	if err != nil || deleted != 1 {
		t.Fatalf("delete at insertion position: %d %v", deleted, err)
	}
	if _, err := lib.Get(ctx, ids[0]); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected the oldest record to be gone, got %v", err)
	}
}

func TestUsage(t *testing.T) {
	ctx := context.Background()
	lib, st, _ := testLibrary(t, quota.WithFallbackQuota(300))
	if _, err := st.AddBackgroundURL(ctx, imagemeta.EncodeDataURL("image/png", make([]byte, 30))); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := st.AddBackgroundURL(ctx, "https://example.com/a.png"); err != nil {
		t.Fatalf("add: %v", err)
	}

	u, err := lib.Usage(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	want := Usage{Count: 2, Used: 30, Quota: 300, Percent: 10, UsedText: "30 Bytes", QuotaText: "300 Bytes"}
	if diff := cmp.Diff(want, u); diff != "" {
		t.Fatalf("usage mismatch (-want +got):\n%s", diff)
	}

	granted, err := lib.RequestPersistence(ctx)
	if err != nil || !granted {
		t.Fatalf("request persistence: %v %v", granted, err)
	}
	if u, _ = lib.Usage(ctx); !u.Persisted {
		t.Fatalf("expected persisted usage")
	}
}

func TestClearedBackgroundsStayDeleted(t *testing.T) {
	ctx := context.Background()
	lib, st, _ := testLibrary(t)
	if err := st.SetPreference(ctx, migration.LegacyKey, `["a.png","b.png"]`); err != nil {
		t.Fatalf("set legacy: %v", err)
	}

	items, err := lib.Load(ctx)
	if err != nil || len(items) != 2 {
		t.Fatalf("first load: %d %v", len(items), err)
	}
	if err := lib.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	picked, err := lib.Pick(ctx, false)
	if err != nil || picked != nil {
		t.Fatalf("expected nothing to pick after clear, got %+v %v", picked, err)
	}
	items, err = lib.Load(ctx)
	if err != nil || len(items) != 0 {
		t.Fatalf("expected cleared library to stay empty on reload, got %d %v", len(items), err)
	}
}

func TestImportLegacy(t *testing.T) {
	ctx := context.Background()
	lib, _, bus := testLibrary(t)
	sub, cancel := bus.Subscribe(4)
	defer cancel()

	count, err := lib.ImportLegacy(ctx, `["a.png","b.png"]`)
	if err != nil || count != 2 {
		t.Fatalf("import legacy: %d %v", count, err)
	}
	if diff := cmp.Diff([]events.Reason{events.RefreshBackground}, drain(sub)); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}

	count, err = lib.ImportLegacy(ctx, `["c.png"]`)
	if err != nil || count != 0 {
		t.Fatalf("expected populated library to import nothing, got %d %v", count, err)
	}
	if got := drain(sub); len(got) != 0 {
		t.Fatalf("expected no refresh, got %v", got)
	}
}

func TestRestoreAnnouncesPartialWrites(t *testing.T) {
	ctx := context.Background()
	lib, st, bus := testLibrary(t)
	sub, cancel := bus.Subscribe(4)
	defer cancel()

	errBroken := errors.New("manifest entry 2 unreadable")
	stored, err := lib.Restore(ctx, func(ctx context.Context) (int, error) {
		if _, err := st.AddBackgroundURL(ctx, "kept.png"); err != nil {
			return 0, err
		}
		return 1, errBroken
	})
	if !errors.Is(err, errBroken) || stored != 1 {
		t.Fatalf("restore: %d %v", stored, err)
	}
	if diff := cmp.Diff([]events.Reason{events.RefreshBackground}, drain(sub)); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}

	if _, err := lib.Restore(ctx, func(context.Context) (int, error) { return 0, errBroken }); !errors.Is(err, errBroken) {
		t.Fatalf("expected error, got %v", err)
	}
	if got := drain(sub); len(got) != 0 {
		t.Fatalf("expected no refresh when nothing was stored, got %v", got)
	}
}

func TestLoadWaitsForMutationLock(t *testing.T) {
	ctx := context.Background()
	lib, st, _ := testLibrary(t)
	if err := st.SetPreference(ctx, migration.LegacyKey, `["a.png"]`); err != nil {
		t.Fatalf("set legacy: %v", err)
	}

	lib.mu.Lock()
	done := make(chan error, 1)
	go func() {
		_, err := lib.Load(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		lib.mu.Unlock()
		t.Fatalf("load finished while a mutation held the lock: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if count, _ := st.CountBackgrounds(ctx); count != 0 {
		lib.mu.Unlock()
		t.Fatalf("migration wrote %d records while the lock was held", count)
	}
	lib.mu.Unlock()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("load: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("load did not finish after the lock was released")
	}
	if count, _ := st.CountBackgrounds(ctx); count != 1 {
		t.Fatalf("expected migrated record, got %d", count)
	}
}
