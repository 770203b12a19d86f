package sync

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	engramcrypto "github.com/engramhq/engram/internal/crypto"
)

// DeviceClient wraps device authorization/revocation against the remote
// server: wrapping the vault key under the new device's RSA public key
// and uploading it, and revoking a device's access.
type DeviceClient struct {
	client *client
}

func NewDeviceClient(cfg Config) *DeviceClient {
	return &DeviceClient{client: newClient(cfg)}
}

// AuthorizeDevice wraps vaultKey under the new device's public key and
// registers it with the remote server.
func (d *DeviceClient) AuthorizeDevice(ctx context.Context, deviceID, deviceName string, devicePublicKey *rsa.PublicKey, vaultKey []byte) error {
	wrapped, err := engramcrypto.WrapVaultKey(vaultKey, devicePublicKey)
	if err != nil {
		return fmt.Errorf("sync: wrap vault key: %w", err)
	}

	req := AuthorizeDeviceRequest{
		DeviceID:        deviceID,
		DeviceName:      deviceName,
		WrappedVaultKey: base64.StdEncoding.EncodeToString(wrapped),
	}
	if err := d.client.doJSON(ctx, "POST", "/v1/devices/authorize", req, nil); err != nil {
		return fmt.Errorf("sync: authorize device: %w", err)
	}
	return nil
}

// RevokeDevice revokes a previously authorized device's access.
func (d *DeviceClient) RevokeDevice(ctx context.Context, deviceID string) error {
	req := RevokeDeviceRequest{DeviceID: deviceID}
	if err := d.client.doJSON(ctx, "POST", "/v1/devices/revoke", req, nil); err != nil {
		return fmt.Errorf("sync: revoke device: %w", err)
	}
	return nil
}
