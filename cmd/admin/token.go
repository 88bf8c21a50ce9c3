package main

import (
	"fmt"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/infrastructure/di"
	"github.com/dharun-sukumar/Audio-Rag/pkg/auth"

	"github.com/spf13/cobra"
)

func NewTokenCmd(a *app) *cobra.Command {
	var (
		email string
		name  string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Sign an access token for local testing",
		Long: `Sign an HS256 access token the API accepts for the given subject.
Refused in production.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("token: refusing to sign tokens in production")
			}

			var audience []string
			if cfg.JWTAudience != "" {
				audience = []string{cfg.JWTAudience}
			}
			token, err := auth.NewJWTGenerator(di.SigningSecret(cfg), cfg.JWTIssuer, audience, ttl).
				GenerateToken(args[0], email, name)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&name, "name", "", "Name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
