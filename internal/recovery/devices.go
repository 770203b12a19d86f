package recovery

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/storage"
)

// Device is a row of the local devices table: every device this vault
// has ever authorized, independent of whether it is still active.
type Device struct {
	ID         string
	Name       string
	PublicKey  string
	CreatedAt  int64
	LastSyncAt *int64
	RevokedAt  *int64
}

// DeviceRegistry manages the local devices table, grounded on the
// teacher's internal/pairing/service.go Store shape but backed by SQL
// rather than a JSON file, since SPEC_FULL.md §3.1 models Device as a
// first-class entity alongside Memory and Secret.
type DeviceRegistry struct {
	db *storage.DB
}

func NewDeviceRegistry(db *storage.DB) *DeviceRegistry {
	return &DeviceRegistry{db: db}
}

// Register records a newly authorized device.
func (r *DeviceRegistry) Register(ctx context.Context, name, publicKeyPEM string) (Device, error) {
	d := Device{ID: uuid.Must(uuid.NewV7()).String(), Name: name, PublicKey: publicKeyPEM, CreatedAt: nowMillis()}
	_, err := r.db.Conn.ExecContext(ctx,
		`INSERT INTO devices (id, name, public_key, created_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.Name, d.PublicKey, d.CreatedAt,
	)
	if err != nil {
		return Device{}, fmt.Errorf("recovery: register device: %w", err)
	}
	return d, nil
}

// List returns all known devices, revoked or not.
func (r *DeviceRegistry) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.Conn.QueryContext(ctx,
		`SELECT id, name, public_key, created_at, last_sync_at, revoked_at FROM devices ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("recovery: list devices: %w", err)
	}
	defer rows.Close()

	var out []Device
	for rows.Next() {
		var (
			d          Device
			name       sql.NullString
			lastSync   sql.NullInt64
			revokedAt  sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &name, &d.PublicKey, &d.CreatedAt, &lastSync, &revokedAt); err != nil {
			return nil, fmt.Errorf("recovery: scan device: %w", err)
		}
		d.Name = name.String
		if lastSync.Valid {
			v := lastSync.Int64
			d.LastSyncAt = &v
		}
		if revokedAt.Valid {
			v := revokedAt.Int64
			d.RevokedAt = &v
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Revoke marks a device as revoked; it is kept in the table (not
// deleted) so its history remains auditable.
func (r *DeviceRegistry) Revoke(ctx context.Context, deviceID string) error {
	_, err := r.db.Conn.ExecContext(ctx, `UPDATE devices SET revoked_at = ? WHERE id = ?`, nowMillis(), deviceID)
	if err != nil {
		return fmt.Errorf("recovery: revoke device: %w", err)
	}
	return nil
}

// TouchLastSync records that a device just completed a sync pass.
func (r *DeviceRegistry) TouchLastSync(ctx context.Context, deviceID string) error {
	_, err := r.db.Conn.ExecContext(ctx, `UPDATE devices SET last_sync_at = ? WHERE id = ?`, nowMillis(), deviceID)
	if err != nil {
		return fmt.Errorf("recovery: touch last_sync_at: %w", err)
	}
	return nil
}
