package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
)

const (
	DefaultDir = "pkg/migrate/migrations"

	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"

	sqliteSubdir = "sqlite"
)

// Target pairs a goose dialect with the directory holding its migrations.
type Target struct {
	Dialect string
	Dir     string
}

// TargetFor picks the migration set for the configured driver. The sqlite set
// lives in a subdirectory of baseDir.
func TargetFor(cfg config.DBConfig, baseDir string) Target {
	if baseDir == "" {
		baseDir = DefaultDir
	}
	if cfg.IsSQLite() {
		return Target{Dialect: DialectSQLite, Dir: filepath.Join(baseDir, sqliteSubdir)}
	}
	return Target{Dialect: DialectPostgres, Dir: baseDir}
}

// Run executes a standard goose command that requires a DB connection.
func Run(ctx context.Context, db *sql.DB, target Target, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if target.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if err := setDialect(target); err != nil {
		return err
	}

	// RunContext prints status output to stdout (goose internal)
	if err := goose.RunContext(ctx, command, db, target.Dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, target Target, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	if err := setDialect(target); err != nil {
		return err
	}

	version, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == version:
		return nil
	case current < version:
		if err := goose.UpToContext(ctx, db, target.Dir, version); err != nil {
			return fmt.Errorf("goose up-to %d: %w", version, err)
		}
		return nil
	default:
		if err := goose.DownToContext(ctx, db, target.Dir, version); err != nil {
			return fmt.Errorf("goose down-to %d: %w", version, err)
		}
		return nil
	}
}

func setDialect(target Target) error {
	dialect := target.Dialect
	if dialect == "" {
		dialect = DialectPostgres
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}
