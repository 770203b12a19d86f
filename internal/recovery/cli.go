package recovery

import (
	"encoding/base64"
	"fmt"

	"github.com/charmbracelet/huh"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/engramhq/engram/internal/crypto"
)

// ConfirmRecoveryKitDisplay asks the user to confirm they've written down
// their recovery shares before continuing, matching the teacher's
// cmd/prompt.go runWithHelp confirmation idiom.
func ConfirmRecoveryKitDisplay() (bool, error) {
	var confirmed bool
	field := huh.NewConfirm().
		Title("Have you written down all recovery shares in a safe place?").
		Description("Without them, a lost device cannot be recovered.").
		Affirmative("Yes, I've saved them").
		Negative("Not yet").
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(field)).WithShowHelp(true).Run(); err != nil {
		return false, fmt.Errorf("recovery: confirm prompt: %w", err)
	}
	return confirmed, nil
}

// FormatShare renders a single Shamir share as a display string suitable
// for writing down or embedding in a QR code.
func FormatShare(share crypto.Share) string {
	return fmt.Sprintf("engram-share:%d:%s", share.Index, share.Data)
}

// DevicePairingQR renders a PNG QR code encoding the device's pairing
// payload (its id and base64 public key), for display during the
// authorize-device CLI flow (SPEC_FULL.md §10.2).
func DevicePairingQR(deviceID, publicKeyPEM string) ([]byte, error) {
	payload := fmt.Sprintf("engram-device:%s:%s", deviceID, base64.StdEncoding.EncodeToString([]byte(publicKeyPEM)))
	png, err := qrcode.Encode(payload, qrcode.Medium, 320)
	if err != nil {
		return nil, fmt.Errorf("recovery: render qr code: %w", err)
	}
	return png, nil
}
