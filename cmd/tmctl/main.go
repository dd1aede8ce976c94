// Command tmctl is the operator CLI for the flow tester store.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/amoshaviv/flow-tester-sub001/internal/config"
	"github.com/amoshaviv/flow-tester-sub001/internal/logger"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
)

var version = "dev"

// app carries what every subcommand needs once the root pre-run has loaded it.
type app struct {
	configPath string
	cfg        *config.Config
	db         *gorm.DB
	logger     *log.Logger
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	db, err := repository.OpenDatabase(cfg.Database)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.db = db
	a.logger = logger.FromConfig(cfg.Log, cmd.Name())
	return nil
}

func (a *app) close(*cobra.Command, []string) error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:                "tmctl",
		Short:              "Operate the flow tester store",
		Long:               "Migrate the schema, import seed data, create users and record run results directly against the store.",
		Version:            version,
		SilenceUsage:       true,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: a.close,
	}

	defaultConfig := os.Getenv("CONFIG_FILE")
	if defaultConfig == "" {
		defaultConfig = "config.toml"
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfig, "Path to config file")

	rootCmd.AddCommand(
		newMigrateCommand(a),
		newImportCommand(a),
		newUserCommand(a),
		newRunCommand(a),
	)
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
