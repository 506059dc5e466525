package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rxchain/rxchain/internal/config"
	"github.com/rxchain/rxchain/internal/platform/auth"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 bearer token signed with AUTH_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			rawRole, _ := cmd.Flags().GetString("role")
			org, _ := cmd.Flags().GetString("org")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.IssueToken([]byte(cfg.AuthSigningKey), auth.TokenRequest{
				Subject:        sub,
				Role:           auth.Role(rawRole),
				OrganizationID: org,
				Issuer:         cfg.AuthIssuer,
				Audience:       cfg.AuthAudience,
				TTL:            ttl,
			}, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("sub", "", "Subject (user id)")
	cmd.Flags().String("role", "consumer", "Role claim")
	cmd.Flags().String("org", "", "Organization id claim")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}
