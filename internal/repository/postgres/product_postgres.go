package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository"
)

const productColumns = `id, seller_id, name, description, category, unit, price_cents, stock, created_at, updated_at`

type productRepository struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (:id, :seller_id, :name, :description, :category, :unit, :price_cents, :stock, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var product domain.Product
	err := r.db.GetContext(ctx, &product, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Category != "" {
		where = append(where, "category = "+arg(filter.Category))
	}
	if filter.SellerID != nil {
		where = append(where, "seller_id = "+arg(*filter.SellerID))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC LIMIT ` + arg(filter.Limit) + ` OFFSET ` + arg(filter.Offset)

	products := []*domain.Product{}
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (r *productRepository) AdjustStock(ctx context.Context, sellerID, id uuid.UUID, delta int) (*domain.Product, error) {
	query := `
		UPDATE products
		SET stock = stock + $3, updated_at = NOW()
		WHERE id = $1 AND seller_id = $2 AND stock + $3 >= 0
		RETURNING ` + productColumns

	var product domain.Product
	err := r.db.GetContext(ctx, &product, query, id, sellerID, delta)
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	// No row updated: either not the seller's product or the stock would go negative.
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1 AND seller_id = $2)`, id, sellerID); err != nil {
		return nil, fmt.Errorf("failed to check product: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("product %s: %w", id, repository.ErrInsufficientStock)
	}
	return nil, fmt.Errorf("product %s: %w", id, repository.ErrNotFound)
}
