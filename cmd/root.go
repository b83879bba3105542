package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/migration-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "migration-cli",
	Short: "Restaurant identity resolution and migration engine",
	Long:  "Imports bulk restaurant batches, detects duplicates, fuzzy-maps imported records onto existing identities, repairs dependent references, and performs the destructive cut-over.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
