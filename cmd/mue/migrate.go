package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mue/internal/config"
	"mue/internal/migration"
	"mue/internal/store"

	_ "modernc.org/sqlite"
)

type migrateResult struct {
	Schema *store.MigrationStatus `json:"schema"`
	Legacy *legacyResult          `json:"legacy,omitempty"`
}

type legacyResult struct {
	Pending  []string `json:"pending,omitempty"`
	Migrated bool     `json:"migrated"`
	Count    int      `json:"count,omitempty"`
}

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		dryRun     bool
		inspect    bool
		legacy     bool
		legacyFile string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect database schema and legacy preference migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return err
			}
			if inspect || dryRun {
				return inspectMigrations(cfg.DBPath, legacy, *jsonOutput)
			}
			if legacyFile != "" {
				return importLegacyFile(cmd.Context(), cfg.DBPath, legacyFile, *jsonOutput)
			}
			return applyMigrations(cmd.Context(), cfg.DBPath, legacy, *jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "also import the legacy customBackground preference")
	cmd.Flags().StringVar(&legacyFile, "legacy-file", "", "import a customBackground value exported from an older release (- for stdin)")

	return cmd
}

func inspectMigrations(dbPath string, legacy, jsonOutput bool) error {
	db, err := openRawDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	plan, err := store.MigrationPlan(db)
	if err != nil {
		return fmt.Errorf("inspect migrations: %w", err)
	}
	result := migrateResult{Schema: plan}
	if legacy {
		pending, err := pendingLegacy(db)
		if err != nil {
			return fmt.Errorf("inspect legacy backgrounds: %w", err)
		}
		result.Legacy = &legacyResult{Pending: pending}
	}

	if jsonOutput {
		return writeJSON(result)
	}

	fmt.Printf("Current version: %d\n", plan.CurrentVersion)
	fmt.Printf("Available version: %d\n", plan.AvailableVersion)
	if len(plan.Pending) == 0 {
		fmt.Println("No pending migrations.")
	} else {
		fmt.Printf("Pending migrations: %d\n", len(plan.Pending))
		for _, m := range plan.Pending {
			fmt.Printf("  %d: %s\n", m.Version, m.Description)
		}
	}
	if result.Legacy != nil {
		fmt.Printf("Legacy backgrounds to import: %d\n", len(result.Legacy.Pending))
	}
	return nil
}

// applyMigrations opens the store, which brings the schema up to date, and
// optionally imports the legacy url list.
func applyMigrations(ctx context.Context, dbPath string, legacy, jsonOutput bool) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer st.Close()

	result := migrateResult{}
	if legacy {
		result.Legacy = &legacyResult{Migrated: migration.New(st, st).Migrate(ctx)}
	}

	if !jsonOutput {
		fmt.Println("Migrations applied successfully.")
		if result.Legacy != nil && result.Legacy.Migrated {
			fmt.Println("Legacy backgrounds imported.")
		}
		return nil
	}

	db, err := openRawDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if result.Schema, err = store.MigrationPlan(db); err != nil {
		return err
	}
	return writeJSON(result)
}

// importLegacyFile imports a customBackground value saved from an older front
// end's local storage into an empty collection.
func importLegacyFile(ctx context.Context, dbPath, path string, jsonOutput bool) error {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read legacy value: %w", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer st.Close()

	migrated, err := migration.New(st, st).Import(ctx, string(raw))
	if err != nil {
		return fmt.Errorf("import legacy backgrounds: %w", err)
	}
	count, err := st.CountBackgrounds(ctx)
	if err != nil {
		return err
	}
	if !migrated {
		count = 0
	}

	if jsonOutput {
		return writeJSON(legacyResult{Migrated: migrated, Count: count})
	}
	if !migrated {
		fmt.Println("Nothing imported: the value is empty or the collection is not empty.")
		return nil
	}
	fmt.Printf("Imported %d legacy backgrounds.\n", count)
	return nil
}

// pendingLegacy lists the urls a legacy migration would import. It reads the
// preference table directly so inspecting never changes the database.
func pendingLegacy(db *sql.DB) ([]string, error) {
	var exists int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='preferences'").Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, nil
	}

	// A populated collection means the migration would be skipped.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM backgrounds").Scan(&count); err == nil && count > 0 {
		return nil, nil
	}

	var flag string
	err := db.QueryRow("SELECT value FROM preferences WHERE key = ?", migration.MigratedKey).Scan(&flag)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if flag == "true" {
		return nil, nil
	}

	var raw string
	err = db.QueryRow("SELECT value FROM preferences WHERE key = ?", migration.LegacyKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return migration.ParseLegacy(raw), nil
}

func openRawDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}
