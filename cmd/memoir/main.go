package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/longregen/memoir/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "memoir",
		Short: "Memoir - story prompt engine",
		Long: `Memoir chooses the next question to ask a storyteller and retires
questions they keep skipping.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		expireCmd(),
		migrateCmd(),
		tokenCmd(),
		configCmd(),
		versionCmd(),
	)
	return rootCmd
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Current configuration:")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Server:")
			fmt.Fprintf(out, "  Address:      %s\n", cfg.Addr())
			fmt.Fprintf(out, "  CORS Origins: %s\n", strings.Join(cfg.Server.CORSOrigins, ", "))
			fmt.Fprintf(out, "  Shutdown:     %s\n", cfg.Server.ShutdownTimeout)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Database:")
			fmt.Fprintf(out, "  Store:      %s\n", cfg.Database.Store)
			fmt.Fprintf(out, "  PostgreSQL: %s\n", maskSecret(cfg.Database.PostgresURL))
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Auth:")
			fmt.Fprintf(out, "  JWT Secret: %s\n", maskSecret(cfg.Auth.JWTSecret))
			fmt.Fprintf(out, "  Issuer:     %s\n", cfg.Auth.Issuer)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Prompts:")
			fmt.Fprintf(out, "  Retirement Threshold: %d\n", cfg.Prompts.RetirementThreshold)
			fmt.Fprintf(out, "  Max Words:            %d\n", cfg.Prompts.MaxWords)
			fmt.Fprintf(out, "  Forbidden Words:      %d\n", len(cfg.Prompts.ForbiddenWords))
			fmt.Fprintf(out, "  Generation Attempts:  %d\n", cfg.Prompts.MaxGenerationAttempts)
			fmt.Fprintf(out, "  Expire Schedule:      %s\n", orNone(cfg.Prompts.ExpireSchedule))
			fmt.Fprintf(out, "  Expire Batch:         %d\n", cfg.Prompts.ExpireBatchSize)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "LLM:")
			fmt.Fprintf(out, "  URL:         %s\n", orNone(cfg.LLM.URL))
			fmt.Fprintf(out, "  Model:       %s\n", cfg.LLM.Model)
			fmt.Fprintf(out, "  Max Tokens:  %d\n", cfg.LLM.MaxTokens)
			fmt.Fprintf(out, "  Temperature: %.2f\n", cfg.LLM.Temperature)
			fmt.Fprintf(out, "  API Key:     %s\n", maskSecret(cfg.LLM.APIKey))
			fmt.Fprintf(out, "  Status:      %s\n", boolStatus(cfg.IsLLMConfigured()))
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Environment variables:")
			fmt.Fprintln(out, "  MEMOIR_SERVER_HOST, MEMOIR_SERVER_PORT, MEMOIR_CORS_ORIGINS")
			fmt.Fprintln(out, "  MEMOIR_STORE, MEMOIR_POSTGRES_URL")
			fmt.Fprintln(out, "  MEMOIR_JWT_SECRET, MEMOIR_JWT_ISSUER")
			fmt.Fprintln(out, "  MEMOIR_RETIREMENT_THRESHOLD, MEMOIR_MAX_WORDS, MEMOIR_FORBIDDEN_WORDS")
			fmt.Fprintln(out, "  MEMOIR_EXPIRE_SCHEDULE, MEMOIR_EXPIRE_BATCH_SIZE")
			fmt.Fprintln(out, "  MEMOIR_LLM_URL, MEMOIR_LLM_API_KEY, MEMOIR_LLM_MODEL")
			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// version works without a valid configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Memoir %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Build Date: %s\n", buildDate)
		},
	}
}
