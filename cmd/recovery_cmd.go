package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramhq/engram/internal/crypto"
	"github.com/engramhq/engram/internal/keyvault"
	"github.com/engramhq/engram/internal/recovery"
	"github.com/engramhq/engram/internal/vault"
)

func newRecoveryCmd() *cobra.Command {
	recoveryCmd := &cobra.Command{
		Use:   "recovery",
		Short: "Generate or combine a Shamir recovery kit for the vault key",
	}
	recoveryCmd.AddCommand(newRecoveryGenerateCmd(), newRecoveryCombineCmd())
	return recoveryCmd
}

func newRecoveryGenerateCmd() *cobra.Command {
	var shares, threshold int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Split the vault key into recovery shares",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			session, err := vault.Unlock(cmd.Context(), db, keyvault.NewOSKeyring())
			if err != nil {
				return fmt.Errorf("recovery generate: unlock vault: %w", err)
			}

			kit, err := recovery.GenerateRecoveryKit(session.VaultKey, shares, threshold)
			if err != nil {
				return fmt.Errorf("recovery generate: %w", err)
			}

			fmt.Printf("Generated %d shares, %d needed to recover:\n\n", kit.Total, kit.Threshold)
			for _, share := range kit.Shares {
				fmt.Println(recovery.FormatShare(share))
			}
			fmt.Println()

			confirmed, err := recovery.ConfirmRecoveryKitDisplay()
			if err != nil {
				return fmt.Errorf("recovery generate: %w", err)
			}
			if !confirmed {
				return fmt.Errorf("recovery generate: aborted, shares were not confirmed as saved")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&shares, "shares", 5, "total number of shares to generate")
	cmd.Flags().IntVar(&threshold, "threshold", 3, "number of shares required to recover the vault key")
	return cmd
}

func newRecoveryCombineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combine <share> [share...]",
		Short: "Recombine recovery shares (engram-share:<index>:<data>) back into the vault key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			shares := make([]crypto.Share, 0, len(args))
			for _, raw := range args {
				share, err := parseShare(raw)
				if err != nil {
					return fmt.Errorf("recovery combine: %w", err)
				}
				shares = append(shares, share)
			}

			vaultKey, err := recovery.RecoverFromKit(shares)
			if err != nil {
				return fmt.Errorf("recovery combine: %w", err)
			}
			fmt.Printf("Recovered vault key (base64): %s\n", encodeKey(vaultKey))
			return nil
		},
	}
	return cmd
}

// parseShare reverses recovery.FormatShare's "engram-share:<index>:<data>"
// display format back into a crypto.Share.
func parseShare(raw string) (crypto.Share, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 || parts[0] != "engram-share" {
		return crypto.Share{}, fmt.Errorf("malformed share %q, expected engram-share:<index>:<data>", raw)
	}
	var index int
	if _, err := fmt.Sscanf(parts[1], "%d", &index); err != nil {
		return crypto.Share{}, fmt.Errorf("malformed share index in %q: %w", raw, err)
	}
	return crypto.Share{Index: index, Data: parts[2]}, nil
}
