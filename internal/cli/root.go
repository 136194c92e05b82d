// Package cli implements the retrievectl command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pbs-retrieval/internal/config"
)

var (
	cfgFile       string
	logLevel      string
	currentConfig config.Config
)

var rootCmd = &cobra.Command{
	Use:           "retrievectl",
	Short:         "retrievectl: query and inspect the PBS report retrieval engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		currentConfig = cfg
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (defaults to $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for diagnostics written to stderr")
}

func loadConfig() (config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load()
}
