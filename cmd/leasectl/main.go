package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/config"
	"github.com/garyjia/lease-agent/pkg/utils"
)

const serviceName = "lease-agent"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "leasectl",
	Short: "Lease request workflow service",
	Long: `leasectl runs the lease request workflow service.

Configuration is read from the YAML file given by --config, a .env file in the
working directory and LEASE_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	rootCmd.AddCommand(serveCmd, migrateCmd, importDirectoryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Level,
		OutputPath: cfg.OutputPath,
		Format:     cfg.Format,
		Service:    serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
