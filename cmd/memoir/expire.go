package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/longregen/memoir/internal/scheduler"
)

// expireCmd runs one expiry sweep and exits, for use from an external cron
func expireCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Archive expired prompts once",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer log.Sync()

			eng, err := buildEngine(cmd.Context(), false, log)
			if err != nil {
				return err
			}
			defer eng.close()

			if limit <= 0 {
				limit = cfg.Prompts.ExpireBatchSize
			}
			n, err := scheduler.New(eng.lifecycle, nil, limit, log).Sweep(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Expired %d prompt(s)\n", n)
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum prompts to archive (default: expire batch size)")
	return cmd
}
