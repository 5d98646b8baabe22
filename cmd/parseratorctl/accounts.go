package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Suspend or reinstate accounts",
}

func setActiveCmd(use, short string, active bool) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
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

			if err := newAccountRepo(e).SetActive(cmd.Context(), accountID, active); err != nil {
				return fmt.Errorf("updating account: %w", err)
			}
			state := "suspended"
			if active {
				state = "active"
			}
			fmt.Fprintf(os.Stdout, "account %s is %s\n", accountID, state)
			return nil
		},
	}
	c.Flags().String("account", "", "account id")
	_ = c.MarkFlagRequired("account")
	return c
}

func init() {
	accountsCmd.AddCommand(
		setActiveCmd("suspend", "Reject all API keys of an account", false),
		setActiveCmd("reinstate", "Re-enable a suspended account", true),
	)
	rootCmd.AddCommand(accountsCmd)
}
