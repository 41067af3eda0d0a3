package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/axellelanca/acortador/internal/config"
	"github.com/axellelanca/acortador/internal/logger"
	"github.com/axellelanca/acortador/internal/repository"
)

// Cfg is the global variable that will contain the loaded configuration.
// It is filled before any subcommand runs.
var Cfg *config.Config

var cfgFile string

// RootCmd is the base command for the CLI application.
// Subcommands (run-server, create, resolve, migrate, purge) register themselves in their own init().
var RootCmd = &cobra.Command{
	Use:   "acortador",
	Short: "Acortador de URLs con límite diario por IP",
	Long: `Acortador de URLs: convierte URLs largas en códigos cortos hexadecimales,
redirige los códigos a su destino y limita las creaciones por dirección IP.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the Cobra application.
func Execute() {
	defer logger.Close()

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./configs/config.yaml)")
}

// initConfig loads the configuration and sets up the logger before any command runs.
func initConfig() {
	var err error

	Cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(Cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}

// OpenDatabase opens the configured SQLite database and brings its schema up to date.
func OpenDatabase() (*gorm.DB, error) {
	db, err := repository.Open(Cfg.Database.Name)
	if err != nil {
		return nil, err
	}

	if err := repository.Migrate(db); err != nil {
		_ = repository.Close(db)
		return nil, err
	}

	return db, nil
}
