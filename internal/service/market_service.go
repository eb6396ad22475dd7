package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository"
)

const (
	defaultProductPage = 20
	maxProductPage     = 100
)

// MarketService backs the produce marketplace. Carts live in the browser;
// only listings and stock are persisted.
type MarketService struct {
	products repository.ProductRepository
	now      func() time.Time
}

type ProductInput struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"max=60"`
	Unit        string `json:"unit" validate:"max=20"`
	PriceCents  int64  `json:"price_cents" validate:"gte=0"`
	Stock       int    `json:"stock" validate:"gte=0"`
}

type ProductQuery struct {
	Category string `query:"category"`
	Seller   string `query:"seller_id" validate:"omitempty,uuid"`
	Search   string `query:"q" validate:"max=100"`
	Limit    int    `query:"limit" validate:"omitempty,gte=1,lte=100"`
	Offset   int    `query:"offset" validate:"omitempty,gte=0"`
}

type InventoryInput struct {
	Delta int `json:"delta" validate:"ne=0"`
}

func NewMarketService(products repository.ProductRepository) *MarketService {
	return &MarketService{products: products, now: time.Now}
}

func (s *MarketService) ListProducts(ctx context.Context, q ProductQuery) ([]*domain.Product, error) {
	filter := repository.ProductFilter{
		Category: strings.TrimSpace(q.Category),
		Search:   strings.TrimSpace(q.Search),
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultProductPage
	}
	if filter.Limit > maxProductPage {
		filter.Limit = maxProductPage
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if q.Seller != "" {
		id, err := uuid.Parse(q.Seller)
		if err != nil {
			return nil, fmt.Errorf("%w: seller_id", ErrInvalidInput)
		}
		filter.SellerID = &id
	}
	return s.products.List(ctx, filter)
}

func (s *MarketService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *MarketService) CreateProduct(ctx context.Context, sellerID uuid.UUID, in ProductInput) (*domain.Product, error) {
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = "kg"
	}

	now := s.now()
	product := &domain.Product{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		Unit:        unit,
		PriceCents:  in.PriceCents,
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// AdjustInventory adds delta (negative to sell) to the seller's stock. Stock never drops below zero.
func (s *MarketService) AdjustInventory(ctx context.Context, sellerID, id uuid.UUID, delta int) (*domain.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must not be zero", ErrInvalidInput)
	}
	return s.products.AdjustStock(ctx, sellerID, id, delta)
}
