package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/logging"
)

var (
	flagDSN         string
	flagStorePath   string
	flagLogLevel    string
	flagMaxAttempts int
	flagThreshold   float64
)

var rootCmd = &cobra.Command{
	Use:   "askdb",
	Short: "Ask your PostgreSQL database questions in plain language",
	Long: `askdb turns natural-language questions into SQL, runs them against a
PostgreSQL database, and remembers what worked. Answers are cached by
question similarity and scoped to a fingerprint of the database schema,
so a schema change never replays SQL written for a different structure.
When generated SQL fails, the database error is fed back to the model
for a corrected attempt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	ctx := context.Background()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDSN, "dsn", "",
		"PostgreSQL connection string (overrides ASKDB_SOURCE_DSN)")
	rootCmd.PersistentFlags().StringVar(&flagStorePath, "store-path", "",
		"Path to the local cache database")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().IntVar(&flagMaxAttempts, "max-attempts", 0,
		"Maximum generation attempts per question")
	rootCmd.PersistentFlags().Float64Var(&flagThreshold, "threshold", 0,
		"Cache similarity threshold in (0, 1]")
}

// loadConfig builds the effective configuration from file, environment,
// and flags, and initializes logging from it
func loadConfig() (*config.Config, error) {
	overrides := map[string]interface{}{
		"dsn":          flagDSN,
		"store-path":   flagStorePath,
		"log-level":    flagLogLevel,
		"max-attempts": flagMaxAttempts,
		"threshold":    flagThreshold,
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		return nil, err
	}

	cfg.ExpandAllPaths()

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return cfg, nil
}
