package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
)

// Field and device lookups are scoped to an owner; rows owned by someone
// else report ErrNotFound.
type FieldRepository interface {
	Create(ctx context.Context, field *domain.Field) error
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Field, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Field, error)
	Update(ctx context.Context, field *domain.Field) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type DeviceRepository interface {
	Create(ctx context.Context, device *domain.Device) error
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Device, error)
	// List returns the owner's devices, optionally restricted to one field.
	List(ctx context.Context, ownerID uuid.UUID, fieldID *uuid.UUID) ([]*domain.Device, error)
	Update(ctx context.Context, ownerID uuid.UUID, device *domain.Device) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	Touch(ctx context.Context, id uuid.UUID, seenAt time.Time) error
}

type ReadingRepository interface {
	Create(ctx context.Context, reading *domain.Reading) error
	ListByField(ctx context.Context, fieldID uuid.UUID, limit int) ([]*domain.Reading, error)
	Statistics(ctx context.Context, ownerID uuid.UUID, since time.Time) (*domain.Statistics, error)
}
