package migrate

import (
	"context"
	"fmt"

	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// ShouldAutoRun reports whether a service should migrate on boot: always for
// sqlite, and in dev only when SFC_AUTO_MIGRATE is set.
func ShouldAutoRun(cfg *config.Config) bool {
	return cfg.DB.IsSQLite() || (cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate)
}

// MaybeRunDev applies pending migrations when ShouldAutoRun allows it.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !ShouldAutoRun(cfg) {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrapping gorm connection: %w", err)
	}

	target := TargetFor(cfg.DB, DefaultDir)
	ctx = logg.WithFields(ctx, map[string]any{"dir": target.Dir, "dialect": target.Dialect})
	if err := Run(ctx, sqlDB, target, "up"); err != nil {
		return fmt.Errorf("auto-migrating %s: %w", target.Dialect, err)
	}
	logg.Info(ctx, "migrate.auto_applied")
	return nil
}
