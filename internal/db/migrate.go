package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"creditstore/internal/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies all pending schema migrations embedded in the binary.
// It is safe to call on every startup: an up-to-date schema is a no-op.
func Migrate(cfg config.DatabaseConfig) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(cfg.URL.Unmask()))
	if err != nil {
		return fmt.Errorf("initializing migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// migrateURL rewrites the standard Postgres URL scheme to the "pgx5" scheme
// the imported migrate driver registers under. DATABASE_URL stays a plain
// postgres:// URL for pgxpool and operators; only the migrator sees the
// rewritten form.
func migrateURL(raw string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(raw, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return raw
}
