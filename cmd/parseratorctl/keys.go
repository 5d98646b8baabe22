package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"parserator/internal/domain"
	"parserator/internal/port"
	"parserator/internal/repository/postgres"
	"parserator/internal/service"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key. The secret is printed once.",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		envName, _ := cmd.Flags().GetString("env")

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		svc, tasks := newKeyService(e)
		created, err := svc.Create(cmd.Context(), accountID, service.CreateKeyInput{
			Name:        name,
			Environment: domain.Environment(envName),
		})
		tasks.Wait()
		if err != nil {
			return fmt.Errorf("creating key: %w", err)
		}

		if done, err := render(os.Stdout, outputFormat(cmd), created); done {
			return err
		}
		fmt.Fprintf(os.Stdout, "id:     %s\nprefix: %s\nsecret: %s\n\nStore the secret now. It cannot be shown again.\n",
			created.Key.ID, created.Key.LookupPrefix, created.Secret)
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an account's API keys",
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

		svc, _ := newKeyService(e)
		keys, err := svc.List(cmd.Context(), accountID)
		if err != nil {
			return fmt.Errorf("listing keys: %w", err)
		}
		if done, err := render(os.Stdout, outputFormat(cmd), keys); done {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tENV\tACTIVE\tLAST USED")
		for _, k := range keys {
			lastUsed := "never"
			if k.LastUsedAt != nil {
				lastUsed = k.LastUsedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n", k.ID, k.Name, k.LookupPrefix, k.Environment, k.IsActive, lastUsed)
		}
		return tw.Flush()
	},
}

var keysDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate an API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		rawKey, _ := cmd.Flags().GetString("key")
		keyID, err := uuid.Parse(rawKey)
		if err != nil {
			return fmt.Errorf("--key must be a uuid: %w", err)
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		svc, _ := newKeyService(e)
		if err := svc.Deactivate(cmd.Context(), accountID, keyID); err != nil {
			return fmt.Errorf("deactivating key: %w", err)
		}
		fmt.Fprintf(os.Stdout, "key %s deactivated\n", keyID)
		return nil
	},
}

func newAccountRepo(e *env) port.AccountRepository {
	return postgres.NewAccountRepo(e.db)
}

// newKeyService skips webhooks and email: operator actions are not announced.
func newKeyService(e *env) (service.APIKeyService, *service.TaskRunner) {
	tasks := service.NewTaskRunner(service.TaskRunnerConfig{Concurrency: 1, TaskTimeout: e.cfg.Worker.TaskTimeout})
	return service.NewAPIKeyService(postgres.NewAPIKeyRepo(e.db), newAccountRepo(e), tasks, nil, nil), tasks
}

func init() {
	for _, c := range []*cobra.Command{keysCreateCmd, keysListCmd, keysDeactivateCmd} {
		c.Flags().String("account", "", "account id")
		_ = c.MarkFlagRequired("account")
	}
	keysCreateCmd.Flags().String("name", "", "key name")
	keysCreateCmd.Flags().String("env", string(domain.EnvironmentLive), "live or test")
	_ = keysCreateCmd.MarkFlagRequired("name")
	keysDeactivateCmd.Flags().String("key", "", "key id")
	_ = keysDeactivateCmd.MarkFlagRequired("key")

	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysDeactivateCmd)
	rootCmd.AddCommand(keysCmd)
}
