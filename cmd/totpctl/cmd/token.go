package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"totpattend/internal/auth"
	"totpattend/internal/config"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
	tokenQuiet   bool
)

func init() {
	adminTokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "token subject")
	adminTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default ACCESS_TTL)")
	adminTokenCmd.Flags().BoolVarP(&tokenQuiet, "quiet", "q", false, "print only the token")
	rootCmd.AddCommand(adminTokenCmd)
}

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Mint an admin bearer token",
	Long: `Mint an HS256 admin token signed with JWT_SIGNING_KEY and JWT_ISSUER.

Examples:
  totpctl admin-token
  curl -H "Authorization: Bearer $(totpctl admin-token -q)" localhost:8081/v1/admin/meetings/m1/attendance`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.AccessTTL
		}
		tok, err := auth.Issue(tokenSubject, auth.RoleAdmin, cfg.JWTIssuer, cfg.JWTSigningKey, ttl)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}

		out := cmd.OutOrStdout()
		if tokenQuiet {
			fmt.Fprintln(out, tok.Value)
			return nil
		}
		fmt.Fprintln(out, okFmt(tok.Value))
		fmt.Fprintln(out, dimFmt(fmt.Sprintf("subject %s, expires %s", tokenSubject, tok.ExpiresAt.Format(time.RFC3339))))
		return nil
	},
}
