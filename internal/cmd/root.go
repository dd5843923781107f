// Package cmd implements the specflow command-line interface: the driver
// layer that sequences the transition engine, the completion watcher, and
// the recovery engine for one project at a time.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/specflow/specflow/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "specflow",
	Short: "Spec workflow coordinator",
	Long: `Specflow coordinates a multi-stage specification workflow in which
PM, UX and engineering roles produce documents in sequence, with human
checkpoints between stages. It keeps a durable, crash-safe record of where
each project is, detects when an external editor or agent has finished
writing a document, and self-heals when the record drifts from what is
actually on disk.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/specflow/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		if dir, err := config.ConfigDir(); err == nil {
			viper.AddConfigPath(dir)
		}
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SPECFLOW")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SPECFLOW_WATCHER_POLL_INTERVAL_MS for watcher.poll_interval_ms
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
