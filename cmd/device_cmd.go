package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/engramhq/engram/internal/crypto"
	"github.com/engramhq/engram/internal/keyvault"
	"github.com/engramhq/engram/internal/recovery"
	"github.com/engramhq/engram/internal/sync"
	"github.com/engramhq/engram/internal/vault"
)

func newDeviceCmd() *cobra.Command {
	deviceCmd := &cobra.Command{
		Use:   "device",
		Short: "Authorize, revoke, and list devices paired to this vault",
	}
	deviceCmd.AddCommand(newDeviceAuthorizeCmd(), newDeviceRevokeCmd(), newDeviceListCmd())
	return deviceCmd
}

func newDeviceAuthorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize <name> <public-key-pem-file>",
		Short: "Wrap the vault key under a new device's public key and register it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, keyFile := args[0], args[1]
			pemBytes, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("device authorize: read public key: %w", err)
			}
			pub, err := crypto.ParsePublicKeyPEM(string(pemBytes))
			if err != nil {
				return fmt.Errorf("device authorize: %w", err)
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			session, err := vault.Unlock(cmd.Context(), db, keyvault.NewOSKeyring())
			if err != nil {
				return fmt.Errorf("device authorize: unlock vault: %w", err)
			}

			registry := recovery.NewDeviceRegistry(db)
			d, err := registry.Register(cmd.Context(), name, string(pemBytes))
			if err != nil {
				return fmt.Errorf("device authorize: %w", err)
			}

			if cfg.APIURL != "" {
				client := sync.NewDeviceClient(sync.Config{ServerURL: cfg.APIURL, DeviceID: d.ID, Timeout: 30 * time.Second})
				if err := client.AuthorizeDevice(cmd.Context(), d.ID, name, pub, session.VaultKey); err != nil {
					return fmt.Errorf("device authorize: upload to sync server: %w", err)
				}
			}

			png, err := recovery.DevicePairingQR(d.ID, string(pemBytes))
			if err != nil {
				return fmt.Errorf("device authorize: %w", err)
			}
			qrPath := d.ID + ".png"
			if err := os.WriteFile(qrPath, png, 0o600); err != nil {
				return fmt.Errorf("device authorize: write pairing qr: %w", err)
			}

			fmt.Printf("Authorized device %s (%s). Pairing QR written to %s\n", d.ID, name, qrPath)
			return nil
		},
	}
	return cmd
}

func newDeviceRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <device-id>",
		Short: "Revoke a device's access to the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID := args[0]
			confirmed, err := promptConfirm(fmt.Sprintf("Revoke device %s?", deviceID), false)
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted.")
				return nil
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			registry := recovery.NewDeviceRegistry(db)
			if err := registry.Revoke(cmd.Context(), deviceID); err != nil {
				return fmt.Errorf("device revoke: %w", err)
			}

			if cfg.APIURL != "" {
				client := sync.NewDeviceClient(sync.Config{ServerURL: cfg.APIURL, DeviceID: deviceID, Timeout: 30 * time.Second})
				if err := client.RevokeDevice(cmd.Context(), deviceID); err != nil {
					return fmt.Errorf("device revoke: notify sync server: %w", err)
				}
			}

			fmt.Printf("Revoked device %s\n", deviceID)
			return nil
		},
	}
	return cmd
}

func newDeviceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every device ever authorized to this vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			registry := recovery.NewDeviceRegistry(db)
			devices, err := registry.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("device list: %w", err)
			}
			if len(devices) == 0 {
				fmt.Println("No devices registered.")
				return nil
			}
			for _, d := range devices {
				status := "active"
				if d.RevokedAt != nil {
					status = "revoked"
				}
				fmt.Printf("%s\t%s\t%s\n", d.ID, d.Name, status)
			}
			return nil
		},
	}
	return cmd
}
