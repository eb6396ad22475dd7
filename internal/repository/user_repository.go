package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// RecordFailedLogin increments the counter and locks the account until
	// lockUntil once it reaches maxAttempts. It returns the new count.
	RecordFailedLogin(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil time.Time) (int, error)
	RecordSuccessfulLogin(ctx context.Context, id uuid.UUID) error
}
