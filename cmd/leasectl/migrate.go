package main

import (
	"github.com/spf13/cobra"

	"github.com/garyjia/lease-agent/internal/config"
	"github.com/garyjia/lease-agent/pkg/database"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending database migrations and exit.

The migrations built into the binary are used unless --dir names a directory
of NNN_name.sql files.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := database.New(database.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		migrator := database.NewMigrator(db, logger)
		if migrationsDir != "" {
			return migrator.RunMigrationsDir(migrationsDir)
		}
		return migrator.RunMigrations()
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "Directory of migration files (default: built-in)")
}
