package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"haf/config"
	"haf/storage"
)

var (
	configPath string
	dataDir    string
	timeout    int
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:           "hafctl",
		Short:         "hafctl - heartbeat-driven replication simulator",
		Long:          `hafctl runs availability-aware replication simulations and inspects archived runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Archive directory (overrides archive.data_dir)")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 30, "Archive operation timeout in seconds")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(reportsCmd())
	rootCmd.AddCommand(assignmentsCmd())
	rootCmd.AddCommand(configCmd())

	return rootCmd
}

// loadConfig applies the global flags on top of the loaded configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Archive.DataDir = dataDir
	}
	return cfg, nil
}

// openArchive opens the Badger archive named by the configuration.
func openArchive() (*storage.BadgerArchive, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.OpenBadger(cfg.Archive.DataDir, cfg.Archive.CacheMB)
}
