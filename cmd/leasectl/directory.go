package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/lease-agent/internal/application/service"
	"github.com/garyjia/lease-agent/internal/config"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/infrastructure/persistence/repository"
	"github.com/garyjia/lease-agent/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/lease-agent/pkg/database"
)

var directoryFile string

var importDirectoryCmd = &cobra.Command{
	Use:   "import-directory",
	Short: "Load properties and business partners from a YAML file",
	Long: `Load the property and business partner directory from a YAML file with
"properties" and "business_partners" lists. Records are upserted by id. The
whole file is validated first and written in one transaction.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir, err := readDirectory(directoryFile)
		if err != nil {
			return err
		}

		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		return importDirectory(cmd.Context(), cfg, dir, logger)
	},
}

func init() {
	importDirectoryCmd.Flags().StringVarP(&directoryFile, "file", "f", "", "YAML file with properties and business_partners")
	_ = importDirectoryCmd.MarkFlagRequired("file")
}

func readDirectory(path string) (entity.Directory, error) {
	var dir entity.Directory
	data, err := os.ReadFile(path)
	if err != nil {
		return dir, fmt.Errorf("failed to read directory file: %w", err)
	}
	if err := yaml.Unmarshal(data, &dir); err != nil {
		return dir, fmt.Errorf("failed to parse directory file %s: %w", path, err)
	}
	return dir, nil
}

func importDirectory(ctx context.Context, cfg *config.Config, dir entity.Directory, logger *zap.Logger) error {
	db, err := database.OpenMigrated(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := service.NewDirectoryService(
		repository.NewDirectoryRepository(db.DB, logger),
		sqlite.NewTxManager(db.DB, logger),
		sugarLogger{logger.Sugar()},
	)
	result, err := svc.Import(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d properties and %d business partners\n", result.Properties, result.BusinessPartners)
	return nil
}

// sugarLogger adapts zap's sugared logger to the key/value service logger
type sugarLogger struct {
	s *zap.SugaredLogger
}

func (l sugarLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l sugarLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}
