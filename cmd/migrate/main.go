package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/streetfoodconnect/marketplace-backend/internal/app"
	"github.com/streetfoodconnect/marketplace-backend/pkg/db"
	"github.com/streetfoodconnect/marketplace-backend/pkg/migrate"
)

const serviceName = "migrate"

var migrationsDir string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Manage the marketplace database schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "dir", migrate.DefaultDir, "goose migrations directory")

	rootCmd.AddCommand(gooseCommand("up", "Apply all pending migrations"))
	rootCmd.AddCommand(gooseCommand("down", "Roll back the most recent migration"))
	rootCmd.AddCommand(gooseCommand("status", "Show the status of each migration"))
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(validateCmd)
}

// gooseCommand wraps a goose command that needs a live connection.
func gooseCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), name, func(ctx context.Context, sqlDB *sql.DB, target migrate.Target) error {
				return migrate.Run(ctx, sqlDB, target, name)
			})
		},
	}
}

// migrate version <YYYYMMDDHHMMSS>
var versionCmd = &cobra.Command{
	Use:   "version <version>",
	Short: "Migrate up or down to an exact version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), "version", func(ctx context.Context, sqlDB *sql.DB, target migrate.Target) error {
			return migrate.MigrateToVersion(ctx, sqlDB, target, args[0])
		})
	},
}

// migrate create <name>
var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Scaffold a new SQL migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := migrate.CreateSQLMigration(migrationsDir, args[0])
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "created migration:", path)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check migration filenames and up/down sections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := migrate.ValidateDir(migrationsDir); err != nil {
			return fmt.Errorf("migration validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migration validation passed")
		return nil
	},
}

func withDB(ctx context.Context, command string, fn func(context.Context, *sql.DB, migrate.Target) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := app.Load(serviceName)
	if err != nil {
		return err
	}
	logg := app.NewLogger(serviceName, cfg.App)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer app.Close(ctx, logg, "db", dbClient)
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}

	target := migrate.TargetFor(cfg.DB, migrationsDir)
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"cmd":     command,
		"dir":     target.Dir,
		"dialect": target.Dialect,
	})
	logg.Info(logCtx, "migrate ready")
	if err := fn(ctx, sqlDB, target); err != nil {
		return err
	}
	logg.Info(logCtx, "migrate complete")
	return nil
}
