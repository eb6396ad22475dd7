package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository"
)

const fieldColumns = `id, owner_id, name, location, area_hectares, crop_type, created_at, updated_at`

type fieldRepository struct {
	db *sqlx.DB
}

func NewFieldRepository(db *sqlx.DB) repository.FieldRepository {
	return &fieldRepository{db: db}
}

func (r *fieldRepository) Create(ctx context.Context, field *domain.Field) error {
	query := `
		INSERT INTO fields (` + fieldColumns + `)
		VALUES (:id, :owner_id, :name, :location, :area_hectares, :crop_type, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, field); err != nil {
		return fmt.Errorf("failed to create field: %w", err)
	}
	return nil
}

func (r *fieldRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields WHERE id = $1 AND owner_id = $2`

	var field domain.Field
	if err := r.db.GetContext(ctx, &field, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("field %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get field: %w", err)
	}
	return &field, nil
}

func (r *fieldRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields WHERE owner_id = $1 ORDER BY created_at DESC`

	fields := []*domain.Field{}
	if err := r.db.SelectContext(ctx, &fields, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	return fields, nil
}

func (r *fieldRepository) Update(ctx context.Context, field *domain.Field) error {
	query := `
		UPDATE fields
		SET name = :name,
			location = :location,
			area_hectares = :area_hectares,
			crop_type = :crop_type,
			updated_at = :updated_at
		WHERE id = :id AND owner_id = :owner_id`

	result, err := r.db.NamedExecContext(ctx, query, field)
	if err != nil {
		return fmt.Errorf("failed to update field: %w", err)
	}
	return expectOne(result, "field", field.ID)
}

func (r *fieldRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM fields WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}
	return expectOne(result, "field", id)
}

func expectOne(result sql.Result, kind string, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, repository.ErrNotFound)
	}
	return nil
}
