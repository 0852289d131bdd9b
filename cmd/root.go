package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tallyconv/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tallyconv",
	Short: "Convert PDF and image tables into validated Tally-ready exports",
	Long:  "Extracts tables from PDFs and scanned images, validates them against a column profile, applies audited corrections, and exports XLSX, CSV, or Tally XML.",
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
