package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/longregen/memoir/internal/adapters/auth"
)

// tokenCmd mints a bearer token for local testing
func tokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = cfg.Auth.DevTokenTTL
			}
			token, err := auth.Mint(cfg.Auth.JWTSecret, cfg.Auth.Issuer, userID, ttl, time.Now())
			if err != nil {
				return fmt.Errorf("failed to mint token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID to put in the sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: dev token TTL)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
