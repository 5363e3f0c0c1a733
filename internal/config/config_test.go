package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)
	t.Setenv(apiURLEnvKey, "")
	t.Setenv(dbPathEnvKey, "")
	t.Setenv(tokenHashEnvKey, "")
	t.Setenv(s3KeyIDEnvKey, "")
	t.Setenv(s3SecretEnvKey, "")
	t.Chdir(dir)
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Backgrounds.CompressTargetBytes != 450*1024 {
		t.Fatalf("unexpected compress target %d", cfg.Backgrounds.CompressTargetBytes)
	}
	if cfg.Storage.FallbackQuotaBytes != 50_000_000 || cfg.Storage.PersistThreshold != 0.9 {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Blobs.Backend != "local" {
		t.Fatalf("expected local blobs, got %q", cfg.Blobs.Backend)
	}
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, []byte(`api_url = "http://localhost:9999"
log_level = "WARN"

[backgrounds]
sort = "name_desc"
offline_mode = true

[storage]
persist_threshold = 0.8
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:9999" {
		t.Fatalf("expected api_url override, got %q", cfg.APIURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected normalized log level, got %q", cfg.LogLevel)
	}
	if cfg.SortOrder() != "name_desc" || !cfg.Backgrounds.OfflineMode {
		t.Fatalf("unexpected backgrounds %+v", cfg.Backgrounds)
	}
	if cfg.Storage.PersistThreshold != 0.8 || cfg.Storage.FallbackQuotaBytes != DefaultFallbackQuotaBytes {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.DBPath != filepath.Join(dir, DefaultDBFileName) {
		t.Fatalf("expected db under config dir, got %q", cfg.DBPath)
	}
	if cfg.Blobs.Root != filepath.Join(dir, DefaultBlobDirName) {
		t.Fatalf("expected blobs under config dir, got %q", cfg.Blobs.Root)
	}
}

func TestLoadFileMissing(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("defaults should be preserved")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, configFileName)
	for _, body := range []string{
		"[backgrounds]\nsort = \"random\"\n",
		"[storage]\npersist_threshold = 1.5\n",
		"[blobs]\nbackend = \"ftp\"\n",
		"[blobs]\nbackend = \"s3\"\n",
		"api_url = [",
	} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := isolate(t)
	t.Setenv(apiURLEnvKey, "http://10.0.0.1:1")
	t.Setenv(dbPathEnvKey, filepath.Join(dir, "custom.db"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://10.0.0.1:1" || cfg.DBPath != filepath.Join(dir, "custom.db") {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := isolate(t)
	t.Setenv(apiURLEnvKey, "http://from-env:1")
	// godotenv only fills variables that are absent, not merely empty.
	os.Unsetenv(s3KeyIDEnvKey)
	if err := os.WriteFile(filepath.Join(dir, dotEnvFileName), []byte(
		"MUE_API_URL=http://from-dotenv:2\nMUE_S3_ACCESS_KEY_ID=key-from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://from-env:1" {
		t.Fatalf("expected process env to win, got %q", cfg.APIURL)
	}
	if cfg.Blobs.S3AccessKeyID != "key-from-dotenv" {
		t.Fatalf("expected .env value, got %q", cfg.Blobs.S3AccessKeyID)
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range []string{"api_url", "db_path", "log_level", "backgrounds.sort", "storage.persist_threshold", "blobs.s3_bucket"} {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	if IsAllowedKey("project_prefix") {
		t.Fatalf("unexpected allowed key")
	}
}

func TestGetEveryAllowedKey(t *testing.T) {
	cfg := Default()
	cfg.Blobs.S3SecretAccessKey = "secret"
	for _, key := range AllowedKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
	}
	if v, _ := cfg.Get("blobs.s3_secret_access_key"); v == "secret" {
		t.Fatalf("secret should be masked")
	}
	if _, err := cfg.Get("nope"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestSetKey(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, configFileName)

	if err := SetKey(path, "backgrounds.sort", "SIZE_DESC"); err != nil {
		t.Fatalf("set sort: %v", err)
	}
	if err := SetKey(path, "storage.fallback_quota_bytes", "1000"); err != nil {
		t.Fatalf("set quota: %v", err)
	}
	if err := SetKey(path, "api_url", "http://127.0.0.1:1234"); err != nil {
		t.Fatalf("set api url: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backgrounds.Sort != "size_desc" || cfg.Storage.FallbackQuotaBytes != 1000 || cfg.APIURL != "http://127.0.0.1:1234" {
		t.Fatalf("unexpected config after set: %+v", cfg)
	}

	for key, value := range map[string]string{
		"storage.fallback_quota_bytes": "-1",
		"storage.persist_threshold":    "2",
		"backgrounds.offline_mode":     "maybe",
		"backgrounds.sort":             "random",
		"blobs.backend":                "ftp",
		"project_prefix":               "x",
	} {
		if err := SetKey(path, key, value); err == nil {
			t.Fatalf("expected error setting %s=%s", key, value)
		}
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, []byte("log_level = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- NewWatcher(path, 20*time.Millisecond).Run(ctx, func(cfg *Config) { changes <- cfg })
	}()

	// Give the watcher time to register before writing.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-changes:
			if cfg.LogLevel != "debug" {
				t.Fatalf("expected reloaded log level, got %q", cfg.LogLevel)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watcher: %v", err)
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("log_level = \"debug\"\n"), 0o644); err != nil {
				t.Fatalf("rewrite: %v", err)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for reload")
		}
	}
}
