package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"parserator/internal/config"
	"parserator/internal/domain"
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Inspect subscription tiers",
}

var tiersShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective tier limits, including tiers file overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return writeTiers(os.Stdout, outputFormat(cmd), cfg.Governance.Tiers)
	},
}

var tierSetCmd = &cobra.Command{
	Use:   "tier",
	Short: "Change an account's tier",
}

var tierSetRunCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the tier of an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("tier")
		tier := domain.Tier(name)
		if !tier.Valid() {
			return domain.ErrInvalidTier
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := newAccountRepo(e).UpdateTier(cmd.Context(), accountID, tier); err != nil {
			return fmt.Errorf("updating tier: %w", err)
		}
		fmt.Fprintf(os.Stdout, "account %s is now on the %s tier\n", accountID, tier)
		return nil
	},
}

type tierRow struct {
	Tier   domain.Tier       `json:"tier" yaml:"tier"`
	Limits domain.TierLimits `json:"limits" yaml:"limits"`
}

// writeTiers prints tiers in rank order.
func writeTiers(w io.Writer, format string, tiers map[domain.Tier]domain.TierLimits) error {
	rows := make([]tierRow, 0, len(tiers))
	for t, l := range tiers {
		rows = append(rows, tierRow{Tier: t, Limits: l})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Tier.Rank() < rows[j].Tier.Rank() })

	if done, err := render(w, format, rows); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tREQUESTS/MONTH\tREQUESTS/MIN\tMAX INPUT BYTES")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Tier,
			limitString(r.Limits.RequestsPerMonth), limitString(r.Limits.RequestsPerMinute), r.Limits.MaxInputBytes)
	}
	return tw.Flush()
}

func limitString(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}

func init() {
	tierSetRunCmd.Flags().String("account", "", "account id")
	tierSetRunCmd.Flags().String("tier", "", "free, pro or enterprise")
	_ = tierSetRunCmd.MarkFlagRequired("account")
	_ = tierSetRunCmd.MarkFlagRequired("tier")

	tiersCmd.AddCommand(tiersShowCmd)
	tierSetCmd.AddCommand(tierSetRunCmd)
	rootCmd.AddCommand(tiersCmd, tierSetCmd)
}
