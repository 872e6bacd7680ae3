package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/junkusano/famille-docsync/internal/reconcile"
	"github.com/junkusano/famille-docsync/pkg/notion"
)

var (
	reconcileDaysBack int
	reconcileLimit    int
	reconcileDryRun   bool
	reconcileVerbose  bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass over the client document lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report := env.Runner.Run(ctx, reconcile.Params{
			DaysBack: reconcileDaysBack,
			Limit:    reconcileLimit,
			DryRun:   reconcileDryRun,
			Verbose:  reconcileVerbose,
		})

		if cfg.Notion.Configured() {
			nc := notion.NewClient(cfg.Notion.Token)
			if err := notion.PublishRunReport(ctx, nc, cfg.Notion.RunDB, report); err != nil {
				zap.L().Warn("publish run report to notion", zap.Error(err))
			}
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		if !report.OK {
			return fmt.Errorf("run %s finished with errors", report.RunID)
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().IntVar(&reconcileDaysBack, "days-back", 0, "only consider entries acquired within the last N days (0 = no cutoff)")
	reconcileCmd.Flags().IntVar(&reconcileLimit, "limit", 0, "processing budget per run (default from config)")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "scan and plan only, write nothing")
	reconcileCmd.Flags().BoolVar(&reconcileVerbose, "verbose", false, "per-candidate diagnostic logging")
	rootCmd.AddCommand(reconcileCmd)
}
