package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"parserator/internal/domain"
	"parserator/internal/export"
	"parserator/internal/repository/postgres"
	"parserator/internal/service"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect and maintain monthly quotas",
}

var usageShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show an account's current month usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		account, err := newAccountRepo(e).GetByID(cmd.Context(), accountID)
		if err != nil {
			return fmt.Errorf("loading account: %w", err)
		}
		principal := &domain.Principal{Account: account, Limits: e.cfg.Governance.LimitsFor(account.Tier)}
		summary, err := service.NewUsageService(postgres.NewUsageRepo(e.db, e.cfg.Governance.ReservationTTL), postgres.NewUsageRecordRepo(e.db)).
			Summary(cmd.Context(), principal)
		if err != nil {
			return fmt.Errorf("loading usage: %w", err)
		}

		if done, err := render(os.Stdout, outputFormat(cmd), summary); done {
			return err
		}
		fmt.Fprintf(os.Stdout, "tier:      %s\nused:      %d of %s\nremaining: %d\nresets at: %s\n",
			summary.Tier, summary.MonthlyUsage, limitString(summary.MonthlyLimit), summary.Remaining,
			summary.ResetAt.Format(time.RFC3339))
		return nil
	},
}

var usageExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an account's usage history as CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		formatName, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")
		outPath, _ := cmd.Flags().GetString("file")
		if outPath == "" {
			outPath = export.BuildFilename("parserator_usage", format, time.Now().UTC())
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()

		svc := service.NewUsageService(postgres.NewUsageRepo(e.db, e.cfg.Governance.ReservationTTL), postgres.NewUsageRecordRepo(e.db))
		since := time.Now().UTC().AddDate(0, 0, -days)
		if err := svc.Export(cmd.Context(), accountID, format, since, f); err != nil {
			return fmt.Errorf("exporting usage: %w", err)
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", outPath)
		return nil
	},
}

var usageResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero monthly counters whose last reset is before the current month",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		worker := service.NewUsageResetWorker(postgres.NewUsageRepo(e.db, e.cfg.Governance.ReservationTTL), e.cfg.Worker.ResetInterval)
		n := worker.RunOnce(cmd.Context())
		fmt.Fprintf(os.Stdout, "reset %d accounts\n", n)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{usageShowCmd, usageExportCmd} {
		c.Flags().String("account", "", "account id")
		_ = c.MarkFlagRequired("account")
	}
	usageExportCmd.Flags().String("format", "csv", "csv or xlsx")
	usageExportCmd.Flags().Int("days", 90, "history window in days")
	usageExportCmd.Flags().String("file", "", "output path (default: generated name in the working directory)")

	usageCmd.AddCommand(usageShowCmd, usageExportCmd, usageResetCmd)
	rootCmd.AddCommand(usageCmd)
}
