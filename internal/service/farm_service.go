package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository"
)

const (
	DefaultReadingLimit = 50
	MaxReadingLimit     = 500
	statisticsWindow    = 24 * time.Hour
)

// FarmService manages a farmer's fields, their devices and sensor readings.
// Every call is scoped to the owner passed in.
type FarmService struct {
	fields   repository.FieldRepository
	devices  repository.DeviceRepository
	readings repository.ReadingRepository
	logger   *slog.Logger
	now      func() time.Time
}

type FieldInput struct {
	Name         string  `json:"name" validate:"required,min=1,max=100"`
	Location     string  `json:"location" validate:"max=255"`
	AreaHectares float64 `json:"area_hectares" validate:"gte=0"`
	CropType     string  `json:"crop_type" validate:"max=100"`
}

type DeviceInput struct {
	FieldID      uuid.UUID           `json:"field_id" validate:"required"`
	Name         string              `json:"name" validate:"required,min=1,max=100"`
	DeviceType   string              `json:"device_type" validate:"required,max=50"`
	SerialNumber string              `json:"serial_number" validate:"required,max=100"`
	Status       domain.DeviceStatus `json:"status" validate:"omitempty,oneof=online offline maintenance"`
}

type ReadingInput struct {
	DeviceID     uuid.UUID  `json:"device_id" validate:"required"`
	SoilMoisture *float64   `json:"soil_moisture" validate:"omitempty,gte=0,lte=100"`
	Temperature  *float64   `json:"temperature" validate:"omitempty,gte=-60,lte=80"`
	Humidity     *float64   `json:"humidity" validate:"omitempty,gte=0,lte=100"`
	PH           *float64   `json:"ph" validate:"omitempty,gte=0,lte=14"`
	RecordedAt   *time.Time `json:"recorded_at"`
}

func NewFarmService(
	fields repository.FieldRepository,
	devices repository.DeviceRepository,
	readings repository.ReadingRepository,
	logger *slog.Logger,
) *FarmService {
	return &FarmService{fields: fields, devices: devices, readings: readings, logger: logger, now: time.Now}
}

func (s *FarmService) ListFields(ctx context.Context, ownerID uuid.UUID) ([]*domain.Field, error) {
	return s.fields.ListByOwner(ctx, ownerID)
}

func (s *FarmService) GetField(ctx context.Context, ownerID, id uuid.UUID) (*domain.Field, error) {
	return s.fields.GetByID(ctx, ownerID, id)
}

func (s *FarmService) CreateField(ctx context.Context, ownerID uuid.UUID, in FieldInput) (*domain.Field, error) {
	now := s.now()
	field := &domain.Field{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(in.Name),
		Location:     strings.TrimSpace(in.Location),
		AreaHectares: in.AreaHectares,
		CropType:     strings.TrimSpace(in.CropType),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.fields.Create(ctx, field); err != nil {
		return nil, err
	}
	return field, nil
}

func (s *FarmService) UpdateField(ctx context.Context, ownerID, id uuid.UUID, in FieldInput) (*domain.Field, error) {
	field, err := s.fields.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	field.Name = strings.TrimSpace(in.Name)
	field.Location = strings.TrimSpace(in.Location)
	field.AreaHectares = in.AreaHectares
	field.CropType = strings.TrimSpace(in.CropType)
	field.UpdatedAt = s.now()

	if err := s.fields.Update(ctx, field); err != nil {
		return nil, err
	}
	return field, nil
}

func (s *FarmService) DeleteField(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.fields.Delete(ctx, ownerID, id)
}

func (s *FarmService) ListDevices(ctx context.Context, ownerID uuid.UUID, fieldID *uuid.UUID) ([]*domain.Device, error) {
	return s.devices.List(ctx, ownerID, fieldID)
}

func (s *FarmService) GetDevice(ctx context.Context, ownerID, id uuid.UUID) (*domain.Device, error) {
	return s.devices.GetByID(ctx, ownerID, id)
}

func (s *FarmService) CreateDevice(ctx context.Context, ownerID uuid.UUID, in DeviceInput) (*domain.Device, error) {
	if _, err := s.fields.GetByID(ctx, ownerID, in.FieldID); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = domain.DeviceStatusOffline
	}

	now := s.now()
	device := &domain.Device{
		ID:           uuid.New(),
		FieldID:      in.FieldID,
		Name:         strings.TrimSpace(in.Name),
		DeviceType:   strings.TrimSpace(in.DeviceType),
		SerialNumber: strings.TrimSpace(in.SerialNumber),
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// UpdateDevice can move a device to another of the owner's fields. The serial number is fixed.
func (s *FarmService) UpdateDevice(ctx context.Context, ownerID, id uuid.UUID, in DeviceInput) (*domain.Device, error) {
	device, err := s.devices.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if in.FieldID != device.FieldID {
		if _, err := s.fields.GetByID(ctx, ownerID, in.FieldID); err != nil {
			return nil, err
		}
	}

	device.FieldID = in.FieldID
	device.Name = strings.TrimSpace(in.Name)
	device.DeviceType = strings.TrimSpace(in.DeviceType)
	if in.Status != "" {
		device.Status = in.Status
	}
	device.UpdatedAt = s.now()

	if err := s.devices.Update(ctx, ownerID, device); err != nil {
		return nil, err
	}
	return device, nil
}

func (s *FarmService) DeleteDevice(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.devices.Delete(ctx, ownerID, id)
}

// RecordReading stores a sample against the device's field and marks the device as seen.
func (s *FarmService) RecordReading(ctx context.Context, ownerID uuid.UUID, in ReadingInput) (*domain.Reading, error) {
	device, err := s.devices.GetByID(ctx, ownerID, in.DeviceID)
	if err != nil {
		return nil, err
	}

	recordedAt := s.now()
	if in.RecordedAt != nil {
		if in.RecordedAt.After(recordedAt.Add(5 * time.Minute)) {
			return nil, fmt.Errorf("%w: recorded_at is in the future", ErrInvalidInput)
		}
		recordedAt = *in.RecordedAt
	}

	reading := &domain.Reading{
		ID:           uuid.New(),
		DeviceID:     device.ID,
		FieldID:      device.FieldID,
		SoilMoisture: in.SoilMoisture,
		Temperature:  in.Temperature,
		Humidity:     in.Humidity,
		PH:           in.PH,
		RecordedAt:   recordedAt,
	}
	if err := s.readings.Create(ctx, reading); err != nil {
		return nil, err
	}

	if err := s.devices.Touch(ctx, device.ID, recordedAt); err != nil {
		s.logger.WarnContext(ctx, "failed to mark device as seen", "device_id", device.ID, "error", err)
	}
	return reading, nil
}

// ListReadings returns the newest readings for a field; limit is clamped to MaxReadingLimit.
func (s *FarmService) ListReadings(ctx context.Context, ownerID, fieldID uuid.UUID, limit int) ([]*domain.Reading, error) {
	if _, err := s.fields.GetByID(ctx, ownerID, fieldID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = DefaultReadingLimit
	case limit > MaxReadingLimit:
		limit = MaxReadingLimit
	}
	return s.readings.ListByField(ctx, fieldID, limit)
}

func (s *FarmService) Statistics(ctx context.Context, ownerID uuid.UUID) (*domain.Statistics, error) {
	return s.readings.Statistics(ctx, ownerID, s.now().Add(-statisticsWindow))
}
