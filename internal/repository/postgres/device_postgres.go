package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository"
)

const deviceColumns = `d.id, d.field_id, d.name, d.device_type, d.serial_number, d.status,
	d.last_seen_at, d.created_at, d.updated_at`

type deviceRepository struct {
	db *sqlx.DB
}

func NewDeviceRepository(db *sqlx.DB) repository.DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) Create(ctx context.Context, device *domain.Device) error {
	query := `
		INSERT INTO devices (id, field_id, name, device_type, serial_number, status, last_seen_at, created_at, updated_at)
		VALUES (:id, :field_id, :name, :device_type, :serial_number, :status, :last_seen_at, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, device); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("device serial %s: %w", device.SerialNumber, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (r *deviceRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices d
		JOIN fields f ON f.id = d.field_id
		WHERE d.id = $1 AND f.owner_id = $2`

	var device domain.Device
	if err := r.db.GetContext(ctx, &device, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

func (r *deviceRepository) List(ctx context.Context, ownerID uuid.UUID, fieldID *uuid.UUID) ([]*domain.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices d
		JOIN fields f ON f.id = d.field_id
		WHERE f.owner_id = $1`
	args := []interface{}{ownerID}
	if fieldID != nil {
		query += ` AND d.field_id = $2`
		args = append(args, *fieldID)
	}
	query += ` ORDER BY d.created_at DESC`

	devices := []*domain.Device{}
	if err := r.db.SelectContext(ctx, &devices, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// Update only touches devices on a field the owner holds.
func (r *deviceRepository) Update(ctx context.Context, ownerID uuid.UUID, device *domain.Device) error {
	query := `
		UPDATE devices d
		SET field_id = $1, name = $2, device_type = $3, status = $4, updated_at = $5
		FROM fields f
		WHERE d.id = $6 AND f.id = d.field_id AND f.owner_id = $7`

	result, err := r.db.ExecContext(ctx, query,
		device.FieldID, device.Name, device.DeviceType, device.Status, device.UpdatedAt,
		device.ID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	return expectOne(result, "device", device.ID)
}

func (r *deviceRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	query := `DELETE FROM devices d USING fields f WHERE d.id = $1 AND f.id = d.field_id AND f.owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return expectOne(result, "device", id)
}

// Touch marks a reporting device as seen. Devices in maintenance keep their status.
func (r *deviceRepository) Touch(ctx context.Context, id uuid.UUID, seenAt time.Time) error {
	query := `
		UPDATE devices
		SET last_seen_at = $2,
			status = CASE WHEN status = 'maintenance' THEN status ELSE 'online' END,
			updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, seenAt); err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	return nil
}
