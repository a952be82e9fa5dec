package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"totpattend/internal/otp"
)

var (
	codeSecret string
	codeAt     string
	codeDigits int
	codeStep   time.Duration
	codeDrift  int
)

func init() {
	codeCmd.Flags().StringVar(&codeSecret, "secret", "", "base32 TOTP secret")
	codeCmd.Flags().StringVar(&codeAt, "at", "", "RFC 3339 instant to generate for (default now)")
	codeCmd.Flags().IntVar(&codeDigits, "digits", 6, "code length")
	codeCmd.Flags().DurationVar(&codeStep, "step", otp.DefaultStep, "time step")
	codeCmd.Flags().IntVar(&codeDrift, "drift", 0, "also print codes this many steps either side")
	_ = codeCmd.MarkFlagRequired("secret")
	rootCmd.AddCommand(codeCmd)
}

var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Print the TOTP code for a secret",
	Long: `Print the code a roster secret produces, as the validate endpoint computes it.

Examples:
  totpctl code --secret JBSWY3DPEHPK3PXP
  totpctl code --secret JBSWY3DPEHPK3PXP --at 2024-01-02T15:04:05Z --drift 1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		at := time.Now()
		if codeAt != "" {
			parsed, err := time.Parse(time.RFC3339, codeAt)
			if err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
			at = parsed
		}
		if codeStep < time.Second {
			return fmt.Errorf("--step must be at least 1s")
		}
		key := otp.DecodeBase32(codeSecret)
		if len(key) == 0 {
			return fmt.Errorf("secret decodes to an empty key")
		}

		m := otp.Matcher{Step: codeStep, Drift: codeDrift, Digits: codeDigits}
		current := uint64(otp.Counter(at, codeStep))
		out := cmd.OutOrStdout()
		for _, ctr := range m.Window(at) {
			code, err := otp.Generate(key, ctr, codeDigits)
			if err != nil {
				return err
			}
			if ctr == current {
				fmt.Fprintf(out, "%s  %s\n", okFmt(code), dimFmt(fmt.Sprintf("counter %d", ctr)))
				continue
			}
			fmt.Fprintf(out, "%s  %s\n", code, dimFmt(fmt.Sprintf("counter %d", ctr)))
		}

		remaining := codeStep - time.Duration(at.Unix()%int64(codeStep/time.Second))*time.Second
		fmt.Fprintln(out, infoFmt(fmt.Sprintf("valid for %s", remaining)))
		return nil
	},
}
