package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mue/internal/backup"
	"mue/internal/blobstore"
	"mue/internal/config"
	"mue/internal/events"
	"mue/internal/imagemeta"
	"mue/internal/library"
	"mue/internal/metrics"
	"mue/internal/quota"
	"mue/internal/scheduler"
	"mue/internal/server"
	"mue/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the mue API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			return runServer(cmd, cfg)
		},
	}
}

func runServer(cmd *cobra.Command, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level, followConfig := serverLogLevel(cmd, cfg)
	slog.SetDefault(newLogger(os.Stderr, level))
	logger := slog.Default().With("component", "server")

	addr, err := server.ListenAddr(cfg.APIURL)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	blobs, err := blobstore.New(ctx, blobOptions(cfg))
	if err != nil {
		return err
	}

	collector := metrics.New(nil)
	bus := events.NewBus()
	estimator := quota.DiskEstimator{
		Dir:     filepath.Dir(cfg.DBPath),
		Sources: []quota.SizeFunc{st.DatabaseSize},
	}
	if cfg.Blobs.Backend == blobstore.BackendLocal {
		estimator.Sources = append(estimator.Sources, blobs.Usage)
	}
	advisor := quota.NewAdvisor(estimator, st,
		quota.WithFallbackQuota(cfg.Storage.FallbackQuotaBytes),
		quota.WithPersistThreshold(cfg.Storage.PersistThreshold),
	)
	lib := library.New(st, imagemeta.NewEnricher(), advisor, library.Options{
		CompressTarget: cfg.Backgrounds.CompressTargetBytes,
		Metrics:        collector,
		Bus:            bus,
	})

	backfill := scheduler.New(lib, cfg.Backgrounds.BackfillSchedule)
	if err := backfill.Start(ctx); err != nil {
		return err
	}
	defer backfill.Stop()

	srv := server.New(addr, lib, server.Options{
		Backup:         backup.NewService(st, blobs, cfg.Blobs.Backend, advisor),
		Backfill:       backfill,
		Bus:            bus,
		Metrics:        collector,
		TokenHash:      cfg.APITokenHash,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Load holds the library lock while migrating, so requests served
		// meanwhile cannot interleave with the legacy import.
		if _, err := lib.Load(ctx); err != nil {
			logger.Warn("initial library load failed", "error", err)
		}
		if _, err := lib.Usage(ctx); err != nil {
			logger.Warn("initial usage report failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		path, err := config.Path()
		if err != nil {
			return err
		}
		err = config.NewWatcher(path, 0).Run(ctx, func(next *config.Config) {
			if followConfig {
				if parsed, err := parseLogLevel(next.LogLevel); err == nil {
					level.Set(parsed)
				}
			}
			bus.Publish(events.RefreshSettings)
		})
		if err != nil {
			logger.Warn("config watcher stopped", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	return g.Wait()
}

// serverLogLevel returns a level the config watcher can adjust. Reloads only
// apply when neither --log-level nor MUE_LOG_LEVEL pinned the level.
func serverLogLevel(cmd *cobra.Command, cfg *config.Config) (*slog.LevelVar, bool) {
	var flagLevel string
	if f := cmd.Flag("log-level"); f != nil {
		flagLevel = f.Value.String()
	}
	raw, source := selectedLogLevel(flagLevel, os.Getenv(logLevelEnvKey), cfg.LogLevel)

	level := new(slog.LevelVar)
	parsed, err := parseLogLevel(raw)
	if err != nil {
		parsed, _ = parseLogLevel(config.DefaultLogLevel)
	}
	level.Set(parsed)
	return level, !source.pinned()
}

func blobOptions(cfg *config.Config) blobstore.Options {
	return blobstore.Options{
		Backend: cfg.Blobs.Backend,
		Root:    cfg.Blobs.Root,
		S3: blobstore.S3Options{
			Endpoint:        cfg.Blobs.S3Endpoint,
			Bucket:          cfg.Blobs.S3Bucket,
			Region:          cfg.Blobs.S3Region,
			Prefix:          cfg.Blobs.S3Prefix,
			AccessKeyID:     cfg.Blobs.S3AccessKeyID,
			SecretAccessKey: cfg.Blobs.S3SecretAccessKey,
		},
	}
}
