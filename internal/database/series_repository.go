package database

import (
	"context"
	"fmt"
	"time"

	"github.com/demandcast/demandcast/internal/timeseries"
)

// SeriesRepository persists harmonized observations keyed by entity code,
// quantity and UTC timestamp.
type SeriesRepository struct {
	pool DatabasePool
}

// NewSeriesRepository creates a repository on top of a connection pool.
func NewSeriesRepository(pool DatabasePool) *SeriesRepository {
	return &SeriesRepository{
		pool: pool,
	}
}

// UpsertRows stores harmonized rows, replacing existing observations for
// the same (entity, quantity, timestamp). Re-running a retrieval is
// therefore idempotent at the storage layer.
func (r *SeriesRepository) UpsertRows(ctx context.Context, entityCode, quantity string, rows []timeseries.FrameRow) error {
	query := `
		INSERT INTO harmonized_series (
			entity_code, quantity, ts, value,
			local_hour, local_day_of_week, local_month, local_year
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entity_code, quantity, ts)
		DO UPDATE SET
			value = EXCLUDED.value,
			local_hour = EXCLUDED.local_hour,
			local_day_of_week = EXCLUDED.local_day_of_week,
			local_month = EXCLUDED.local_month,
			local_year = EXCLUDED.local_year
	`

	for _, row := range rows {
		_, err := r.pool.Exec(ctx, query,
			entityCode,
			quantity,
			row.TimeUTC,
			row.Value,
			row.LocalHour,
			row.LocalDayOfWeek,
			row.LocalMonth,
			row.LocalYear,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert observation at %s: %w", row.TimeUTC.Format(time.RFC3339), err)
		}
	}

	return nil
}

// QueryYear returns the harmonized rows of one (entity, quantity, local
// year) in ascending timestamp order.
func (r *SeriesRepository) QueryYear(ctx context.Context, entityCode, quantity string, year int) ([]timeseries.FrameRow, error) {
	query := `
		SELECT ts, value, local_hour, local_day_of_week, local_month, local_year
		FROM harmonized_series
		WHERE entity_code = $1 AND quantity = $2 AND local_year = $3
		ORDER BY ts ASC
	`

	rows, err := r.pool.Query(ctx, query, entityCode, quantity, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query harmonized series: %w", err)
	}
	defer rows.Close()

	var result []timeseries.FrameRow
	for rows.Next() {
		var row timeseries.FrameRow
		err := rows.Scan(
			&row.TimeUTC,
			&row.Value,
			&row.LocalHour,
			&row.LocalDayOfWeek,
			&row.LocalMonth,
			&row.LocalYear,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan harmonized row: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating harmonized rows: %w", err)
	}

	return result, nil
}

// LatestYear returns the most recent local year stored for an entity and
// quantity, or zero when nothing is stored yet.
func (r *SeriesRepository) LatestYear(ctx context.Context, entityCode, quantity string) (int, error) {
	query := `
		SELECT COALESCE(MAX(local_year), 0)
		FROM harmonized_series
		WHERE entity_code = $1 AND quantity = $2
	`

	var year int
	if err := r.pool.QueryRow(ctx, query, entityCode, quantity).Scan(&year); err != nil {
		return 0, fmt.Errorf("failed to query latest stored year: %w", err)
	}
	return year, nil
}

// DeleteYear removes one (entity, quantity, local year) so a botched run
// can be re-ingested from scratch.
func (r *SeriesRepository) DeleteYear(ctx context.Context, entityCode, quantity string, year int) (int64, error) {
	query := `
		DELETE FROM harmonized_series
		WHERE entity_code = $1 AND quantity = $2 AND local_year = $3
	`

	result, err := r.pool.Exec(ctx, query, entityCode, quantity, year)
	if err != nil {
		return 0, fmt.Errorf("failed to delete harmonized year: %w", err)
	}
	return result.RowsAffected(), nil
}
