package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
)

type ProductFilter struct {
	Category string
	SellerID *uuid.UUID
	Search   string
	Limit    int
	Offset   int
}

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
	// AdjustStock applies delta atomically for the seller's product and
	// returns ErrInsufficientStock rather than going below zero.
	AdjustStock(ctx context.Context, sellerID, id uuid.UUID, delta int) (*domain.Product, error)
}
