package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/ecotrack/internal/auth"
)

func newTokenCmd(opts *options) *cobra.Command {
	var (
		subject string
		name    string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development bearer token with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signed, err := auth.Issue(auth.Config{Secret: opts.cfg.JWTSecret, Issuer: opts.cfg.JWTIssuer}, auth.IssueParams{
				Subject: subject,
				Name:    name,
				Scopes:  scopes,
				TTL:     ttl,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "sub", "", "owner id placed in the sub claim")
	cmd.Flags().StringVar(&name, "name", "", "display name shown on the leaderboard")
	cmd.Flags().StringSliceVar(&scopes, "scope", auth.AllScopes, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
