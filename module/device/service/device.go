package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"TeleProject/module/device/model"
)

// ErrNotFound is returned when a device does not exist or is not visible to
// the caller.
var ErrNotFound = errors.New("device not found")

// DeviceService is the Postgres-backed device store. Devices are owned
// records; every read here except GetByDeviceID is owner-scoped.
type DeviceService struct {
	pool *pgxpool.Pool
}

func NewDeviceService(pool *pgxpool.Pool) *DeviceService {
	return &DeviceService{pool: pool}
}

const deviceColumns = `id, device_id, name, location, type, is_active, owner_id, last_seen`

func scanDevice(row pgx.Row) (model.Device, error) {
	var d model.Device
	err := row.Scan(&d.ID, &d.DeviceID, &d.Name, &d.Location, &d.Type, &d.IsActive, &d.OwnerID, &d.LastSeen)
	return d, err
}

func (s *DeviceService) ListByOwner(ctx context.Context, ownerID string) ([]model.Device, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "device: list")
	}
	defer rows.Close()

	var out []model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, errors.Wrap(err, "device: scan")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetByDeviceID resolves a device by its external id regardless of owner.
// The ingestion path uses this; API handlers must check ownership on the
// returned record.
func (s *DeviceService) GetByDeviceID(ctx context.Context, deviceID string) (model.Device, error) {
	d, err := scanDevice(s.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = $1`, deviceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Device{}, ErrNotFound
	}
	if err != nil {
		return model.Device{}, errors.Wrap(err, "device: get")
	}
	return d, nil
}

func (s *DeviceService) Create(ctx context.Context, d model.Device) (model.Device, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO devices (device_id, name, location, type, is_active, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+deviceColumns,
		d.DeviceID, d.Name, d.Location, d.Type, d.IsActive, d.OwnerID)
	created, err := scanDevice(row)
	if err != nil {
		return model.Device{}, errors.Wrap(err, "device: create")
	}
	return created, nil
}

// Update rewrites the mutable fields of an owner's device. Changing
// owner_id here is how ownership transfer happens; the gateway picks the
// change up on its next per-message ownership check.
func (s *DeviceService) Update(ctx context.Context, ownerID string, d model.Device) (model.Device, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE devices
		 SET name = $1, location = $2, type = $3, is_active = $4, owner_id = $5
		 WHERE device_id = $6 AND owner_id = $7
		 RETURNING `+deviceColumns,
		d.Name, d.Location, d.Type, d.IsActive, d.OwnerID, d.DeviceID, ownerID)
	updated, err := scanDevice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Device{}, ErrNotFound
	}
	if err != nil {
		return model.Device{}, errors.Wrap(err, "device: update")
	}
	return updated, nil
}

func (s *DeviceService) Delete(ctx context.Context, ownerID, deviceID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM devices WHERE device_id = $1 AND owner_id = $2`, deviceID, ownerID)
	if err != nil {
		return errors.Wrap(err, "device: delete")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastSeen bumps the device's last_seen timestamp. Called by the
// ingestion path for every accepted reading.
func (s *DeviceService) TouchLastSeen(ctx context.Context, deviceID string, ts time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE devices SET last_seen = $1 WHERE device_id = $2`, ts, deviceID)
	return errors.Wrap(err, "device: touch last_seen")
}
