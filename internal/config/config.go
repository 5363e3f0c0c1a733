package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"mue/internal/models"
)

const (
	DefaultAPIURL           = "http://127.0.0.1:7419"
	DefaultLogLevel         = "info"
	DefaultDataDirName      = ".mue"
	DefaultDBFileName       = "backgrounds.db"
	DefaultBlobDirName      = "blobs"
	DefaultBlobBackend      = "local"
	DefaultBackfillSchedule = "@every 6h"

	DefaultCompressTargetBytes int64 = 450 * 1024
	DefaultFallbackQuotaBytes  int64 = 50_000_000
	DefaultPersistThreshold          = 0.9

	configFileName  = ".mue.toml"
	configDirEnvKey = "MUE_CONFIG_DIR"
	apiURLEnvKey    = "MUE_API_URL"
	dbPathEnvKey    = "MUE_DB"
	tokenHashEnvKey = "MUE_API_TOKEN_HASH"
	s3KeyIDEnvKey   = "MUE_S3_ACCESS_KEY_ID"
	s3SecretEnvKey  = "MUE_S3_SECRET_ACCESS_KEY"
	dotEnvFileName  = ".env"
)

// BackgroundsConfig tunes the background library.
type BackgroundsConfig struct {
	Sort                string `toml:"sort"`
	OfflineMode         bool   `toml:"offline_mode"`
	CompressTargetBytes int64  `toml:"compress_target_bytes"`
	// BackfillSchedule is a cron spec; empty disables scheduled backfill.
	BackfillSchedule string `toml:"backfill_schedule"`
}

// StorageConfig tunes the quota advisor.
type StorageConfig struct {
	FallbackQuotaBytes int64   `toml:"fallback_quota_bytes"`
	PersistThreshold   float64 `toml:"persist_threshold"`
}

// BlobsConfig selects where backups put payloads.
type BlobsConfig struct {
	Backend           string `toml:"backend"`
	Root              string `toml:"root"`
	S3Endpoint        string `toml:"s3_endpoint"`
	S3Bucket          string `toml:"s3_bucket"`
	S3Region          string `toml:"s3_region"`
	S3Prefix          string `toml:"s3_prefix"`
	S3AccessKeyID     string `toml:"s3_access_key_id"`
	S3SecretAccessKey string `toml:"s3_secret_access_key"`
}

// Config defines runtime configuration for mue.
type Config struct {
	APIURL         string            `toml:"api_url"`
	DBPath         string            `toml:"db_path"`
	LogLevel       string            `toml:"log_level"`
	APITokenHash   string            `toml:"api_token_hash"`
	AllowedOrigins []string          `toml:"allowed_origins"`
	Backgrounds    BackgroundsConfig `toml:"backgrounds"`
	Storage        StorageConfig     `toml:"storage"`
	Blobs          BlobsConfig       `toml:"blobs"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Backgrounds: BackgroundsConfig{
			CompressTargetBytes: DefaultCompressTargetBytes,
			BackfillSchedule:    DefaultBackfillSchedule,
		},
		Storage: StorageConfig{
			FallbackQuotaBytes: DefaultFallbackQuotaBytes,
			PersistThreshold:   DefaultPersistThreshold,
		},
		Blobs: BlobsConfig{Backend: DefaultBlobBackend},
	}
}

// Path returns the config file location.
func Path() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// DataDir returns the directory holding the database and local blobs.
func DataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultDataDirName), nil
}

// Load reads the config file, a .env file in the working directory, and
// environment overrides, in that order of increasing precedence.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := loadDotEnv(dotEnvFileName); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.fillPaths(); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// loadDotEnv sets variables from path without overriding the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(apiURLEnvKey)); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(dbPathEnvKey)); v != "" {
		c.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(tokenHashEnvKey)); v != "" {
		c.APITokenHash = v
	}
	if v := strings.TrimSpace(os.Getenv(s3KeyIDEnvKey)); v != "" {
		c.Blobs.S3AccessKeyID = v
	}
	if v := strings.TrimSpace(os.Getenv(s3SecretEnvKey)); v != "" {
		c.Blobs.S3SecretAccessKey = v
	}
}

func (c *Config) fillPaths() error {
	if c.DBPath != "" && c.Blobs.Root != "" {
		return nil
	}
	dir, err := DataDir()
	if err != nil {
		return err
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dir, DefaultDBFileName)
	}
	if c.Blobs.Root == "" {
		c.Blobs.Root = filepath.Join(dir, DefaultBlobDirName)
	}
	return nil
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Backgrounds.Sort = strings.ToLower(strings.TrimSpace(c.Backgrounds.Sort))
	if c.Backgrounds.CompressTargetBytes <= 0 {
		c.Backgrounds.CompressTargetBytes = DefaultCompressTargetBytes
	}
	if c.Storage.FallbackQuotaBytes <= 0 {
		c.Storage.FallbackQuotaBytes = DefaultFallbackQuotaBytes
	}
	if c.Storage.PersistThreshold <= 0 {
		c.Storage.PersistThreshold = DefaultPersistThreshold
	}
	c.Blobs.Backend = strings.ToLower(strings.TrimSpace(c.Blobs.Backend))
	if c.Blobs.Backend == "" {
		c.Blobs.Backend = DefaultBlobBackend
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if _, err := models.ParseSortOrder(c.Backgrounds.Sort); err != nil {
		return fmt.Errorf("backgrounds.sort: %w", err)
	}
	if c.Storage.PersistThreshold > 1 {
		return fmt.Errorf("storage.persist_threshold must be in (0, 1], got %v", c.Storage.PersistThreshold)
	}
	switch c.Blobs.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("blobs.backend must be local or s3, got %q", c.Blobs.Backend)
	}
	if c.Blobs.Backend == "s3" && strings.TrimSpace(c.Blobs.S3Bucket) == "" {
		return fmt.Errorf("blobs.s3_bucket is required for the s3 backend")
	}
	return nil
}

// SortOrder returns the configured default sort order.
func (c *Config) SortOrder() models.SortOrder {
	order, err := models.ParseSortOrder(c.Backgrounds.Sort)
	if err != nil {
		return models.SortNone
	}
	return order
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"api_token_hash",
	"allowed_origins",
	"backgrounds.sort",
	"backgrounds.offline_mode",
	"backgrounds.compress_target_bytes",
	"backgrounds.backfill_schedule",
	"storage.fallback_quota_bytes",
	"storage.persist_threshold",
	"blobs.backend",
	"blobs.root",
	"blobs.s3_endpoint",
	"blobs.s3_bucket",
	"blobs.s3_region",
	"blobs.s3_prefix",
	"blobs.s3_access_key_id",
	"blobs.s3_secret_access_key",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "api_token_hash":
		return c.APITokenHash, nil
	case "allowed_origins":
		return strings.Join(c.AllowedOrigins, ","), nil
	case "backgrounds.sort":
		return c.Backgrounds.Sort, nil
	case "backgrounds.offline_mode":
		return strconv.FormatBool(c.Backgrounds.OfflineMode), nil
	case "backgrounds.compress_target_bytes":
		return strconv.FormatInt(c.Backgrounds.CompressTargetBytes, 10), nil
	case "backgrounds.backfill_schedule":
		return c.Backgrounds.BackfillSchedule, nil
	case "storage.fallback_quota_bytes":
		return strconv.FormatInt(c.Storage.FallbackQuotaBytes, 10), nil
	case "storage.persist_threshold":
		return strconv.FormatFloat(c.Storage.PersistThreshold, 'f', -1, 64), nil
	case "blobs.backend":
		return c.Blobs.Backend, nil
	case "blobs.root":
		return c.Blobs.Root, nil
	case "blobs.s3_endpoint":
		return c.Blobs.S3Endpoint, nil
	case "blobs.s3_bucket":
		return c.Blobs.S3Bucket, nil
	case "blobs.s3_region":
		return c.Blobs.S3Region, nil
	case "blobs.s3_prefix":
		return c.Blobs.S3Prefix, nil
	case "blobs.s3_access_key_id":
		return c.Blobs.S3AccessKeyID, nil
	case "blobs.s3_secret_access_key":
		if c.Blobs.S3SecretAccessKey == "" {
			return "", nil
		}
		return "********", nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "backgrounds.compress_target_bytes", "storage.fallback_quota_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "storage.persist_threshold":
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			return nil, fmt.Errorf("%s must be a number in (0, 1]", key)
		}
		return parsed, nil
	case "backgrounds.offline_mode":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "backgrounds.sort":
		order, err := models.ParseSortOrder(value)
		if err != nil {
			return nil, err
		}
		return string(order), nil
	case "blobs.backend":
		v := strings.ToLower(value)
		if v != "local" && v != "s3" {
			return nil, fmt.Errorf("%s must be local or s3", key)
		}
		return v, nil
	case "allowed_origins":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
