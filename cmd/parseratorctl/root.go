package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"parserator/internal/config"
	"parserator/internal/logger"
	"parserator/internal/repository/postgres"
)

var rootCmd = &cobra.Command{
	Use:   "parseratorctl",
	Short: "Operator tool for Parserator accounts, keys and quotas",
	Long: `parseratorctl talks directly to the Parserator database using the same
PARSERATOR_* environment as the server.

Examples:
  # Issue a live key for an account
  parseratorctl keys create --account 6f1c... --name "backend" --env live

  # Move an account to the pro tier
  parseratorctl tier set --account 6f1c... --tier pro

  # Zero counters left over from previous months
  parseratorctl usage reset`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			level = "debug"
		}
		logger.Init(logger.Options{Level: level})
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json or yaml")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}

// env holds what every database-backed command needs.
type env struct {
	cfg *config.Config
	db  *sqlx.DB
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &env{cfg: cfg, db: db}, nil
}

func (e *env) Close() {
	e.db.Close()
}

func accountFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("account")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--account must be a uuid: %w", err)
	}
	return id, nil
}

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}

// render writes v as JSON or YAML. It returns false for table output, which
// each command prints itself.
func render(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q", format)
	}
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
