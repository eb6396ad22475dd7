package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository"
)

const readingColumns = `id, device_id, field_id, soil_moisture, temperature, humidity, ph, recorded_at`

type readingRepository struct {
	db *sqlx.DB
}

func NewReadingRepository(db *sqlx.DB) repository.ReadingRepository {
	return &readingRepository{db: db}
}

func (r *readingRepository) Create(ctx context.Context, reading *domain.Reading) error {
	query := `
		INSERT INTO field_readings (` + readingColumns + `)
		VALUES (:id, :device_id, :field_id, :soil_moisture, :temperature, :humidity, :ph, :recorded_at)`

	if _, err := r.db.NamedExecContext(ctx, query, reading); err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}
	return nil
}

func (r *readingRepository) ListByField(ctx context.Context, fieldID uuid.UUID, limit int) ([]*domain.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM field_readings
		WHERE field_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`

	readings := []*domain.Reading{}
	if err := r.db.SelectContext(ctx, &readings, query, fieldID, limit); err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, nil
}

func (r *readingRepository) Statistics(ctx context.Context, ownerID uuid.UUID, since time.Time) (*domain.Statistics, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM fields WHERE owner_id = $1) AS fields,
			(SELECT COUNT(*) FROM devices d JOIN fields f ON f.id = d.field_id
				WHERE f.owner_id = $1) AS devices,
			(SELECT COUNT(*) FROM devices d JOIN fields f ON f.id = d.field_id
				WHERE f.owner_id = $1 AND d.status = 'online') AS devices_online,
			(SELECT COALESCE(SUM(area_hectares), 0) FROM fields WHERE owner_id = $1) AS total_area_hectares,
			(SELECT COUNT(*) FROM field_readings r JOIN fields f ON f.id = r.field_id
				WHERE f.owner_id = $1 AND r.recorded_at >= $2) AS readings_last_24h,
			(SELECT AVG(r.soil_moisture) FROM field_readings r JOIN fields f ON f.id = r.field_id
				WHERE f.owner_id = $1 AND r.recorded_at >= $2) AS average_soil_moisture`

	var stats domain.Statistics
	if err := r.db.GetContext(ctx, &stats, query, ownerID, since); err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}
	return &stats, nil
}
