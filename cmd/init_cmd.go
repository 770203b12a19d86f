package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramhq/engram/internal/crypto"
	"github.com/engramhq/engram/internal/keyvault"
	"github.com/engramhq/engram/internal/recovery"
	"github.com/engramhq/engram/internal/storage"
	"github.com/engramhq/engram/internal/vault"
)

// devicePrivateKeyAccount is the OS-keychain account under which this
// device's own RSA private key PEM is stored, separate from the Master
// Key's account (see internal/vault) to keep the two secrets independent.
const devicePrivateKeyAccount = "device-private-key"

func newInitCmd() *cobra.Command {
	var usePassword bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap a new vault: generate the Master/Vault/Blind-Index keys and register this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if usePassword {
				password, perr := promptPassword("Vault password", "Used to derive the Master Key on headless unlock (SPEC_FULL.md §10.1)")
				if perr != nil {
					return perr
				}
				_, err = vault.BootstrapWithPassword(ctx, db, password)
			} else {
				_, err = vault.Bootstrap(ctx, db, keyvault.NewOSKeyring())
			}
			if err != nil {
				return fmt.Errorf("init: bootstrap vault: %w", err)
			}

			if err := registerLocalDevice(ctx, db); err != nil {
				return err
			}

			logger.Info("vault initialized", "db_path", cfg.DBPath, "password_unlock", usePassword)
			fmt.Println("Vault initialized. Run `engram recovery generate` next to create a recovery kit.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&usePassword, "password", false, "derive the Master Key from a password instead of the OS keychain")
	return cmd
}

// registerLocalDevice generates this machine's device identity, records
// its public key in the local devices table so `engram device list`
// reports it immediately after init (without requiring a first sync
// round-trip), and persists its private key PEM in the OS keychain
// under a separate account from the Master Key, keeping it out of the
// same blast radius as the Vault Key's enveloped SQL storage.
func registerLocalDevice(ctx context.Context, db *storage.DB) error {
	identity, err := recovery.GenerateDeviceIdentity(ctx, "")
	if err != nil {
		return fmt.Errorf("init: generate device identity: %w", err)
	}
	registry := recovery.NewDeviceRegistry(db)
	if _, err := registry.Register(ctx, "this device", identity.PublicPEM); err != nil {
		return fmt.Errorf("init: register local device: %w", err)
	}

	privatePEM, err := crypto.EncodePrivateKeyPEM(identity.PrivateKey)
	if err != nil {
		return fmt.Errorf("init: encode device private key: %w", err)
	}
	if err := keyvault.NewOSKeyring().Store(devicePrivateKeyAccount, []byte(privatePEM)); err != nil {
		return fmt.Errorf("init: store device private key: %w", err)
	}
	return nil
}
