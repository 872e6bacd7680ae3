package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/junkusano/famille-docsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Document reconciliation pipeline for care records",
	Long:  "Scans client records for embedded document references, reconciles them against the normalized document store, and runs OCR plus summarization on documents not yet analyzed.",
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
