package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/streetfoodconnect/marketplace-backend/pkg/migrate"
)

// OpenSQLiteTestDB opens an isolated in-memory sqlite database with the
// sqlite goose schema applied. Repository tests across packages share it.
func OpenSQLiteTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	target := migrate.Target{Dialect: migrate.DialectSQLite, Dir: sqliteMigrationsDir()}
	if err := migrate.Run(context.Background(), sqlDB, target, "up"); err != nil {
		t.Fatalf("apply sqlite schema: %v", err)
	}
	return conn
}

func sqliteMigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "pkg", "migrate", "migrations", "sqlite")
}
