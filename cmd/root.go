package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/willregister/admin-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "willadmin",
	Short: "Will register administration tool",
	Long:  "Bulk-uploads will registrations from firm CSV/XLSX exports, validates and fixes rows, and runs batch import jobs against the will register.",
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
