package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nsmonitor/apiserver/types"
)

// OutputIndicatorRepository handles persistence for output indicators.
type OutputIndicatorRepository struct {
	db *sql.DB
}

func NewOutputIndicatorRepository(db *sql.DB) *OutputIndicatorRepository {
	return &OutputIndicatorRepository{db: db}
}

const indicatorColumns = `
	id, project_id, indicator_name, description, unit_of_measurement, baseline_value, target_value,
	current_value, data_source, collection_method, frequency, responsible_person, status, comments,
	last_updated, created_at, updated_at`

func scanIndicator(row rowScanner) (types.OutputIndicator, error) {
	var o types.OutputIndicator
	err := row.Scan(
		&o.ID,
		&o.ProjectID,
		&o.IndicatorName,
		&o.Description,
		&o.UnitOfMeasurement,
		&o.BaselineValue,
		&o.TargetValue,
		&o.CurrentValue,
		&o.DataSource,
		&o.CollectionMethod,
		&o.Frequency,
		&o.ResponsiblePerson,
		&o.Status,
		&o.Comments,
		&o.LastUpdated,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

func (r *OutputIndicatorRepository) ListByProject(ctx context.Context, projectID int) ([]types.OutputIndicator, error) {
	query := `SELECT` + indicatorColumns + ` FROM output_indicators WHERE project_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indicators := []types.OutputIndicator{}
	for rows.Next() {
		o, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, o)
	}
	return indicators, rows.Err()
}

func (r *OutputIndicatorRepository) Get(ctx context.Context, projectID, id int) (types.OutputIndicator, error) {
	query := `SELECT` + indicatorColumns + ` FROM output_indicators WHERE project_id = $1 AND id = $2`
	o, err := scanIndicator(r.db.QueryRowContext(ctx, query, projectID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OutputIndicator{}, ErrNotFound
		}
		return types.OutputIndicator{}, err
	}
	return o, nil
}

func (r *OutputIndicatorRepository) Create(ctx context.Context, o types.OutputIndicator) (types.OutputIndicator, error) {
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.LastUpdated = &now

	const query = `
		INSERT INTO output_indicators (
			project_id, indicator_name, description, unit_of_measurement, baseline_value, target_value,
			current_value, data_source, collection_method, frequency, responsible_person, status, comments,
			last_updated, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		o.ProjectID,
		o.IndicatorName,
		o.Description,
		o.UnitOfMeasurement,
		o.BaselineValue,
		o.TargetValue,
		o.CurrentValue,
		o.DataSource,
		o.CollectionMethod,
		o.Frequency,
		o.ResponsiblePerson,
		o.Status,
		o.Comments,
		o.LastUpdated,
		o.CreatedAt,
		o.UpdatedAt,
	).Scan(&o.ID); err != nil {
		return types.OutputIndicator{}, translate(err)
	}
	return o, nil
}

func (r *OutputIndicatorRepository) Update(ctx context.Context, o types.OutputIndicator) (types.OutputIndicator, error) {
	now := time.Now()
	o.UpdatedAt = now
	o.LastUpdated = &now

	const query = `
		UPDATE output_indicators
		SET indicator_name = $1,
			description = $2,
			unit_of_measurement = $3,
			baseline_value = $4,
			target_value = $5,
			current_value = $6,
			data_source = $7,
			collection_method = $8,
			frequency = $9,
			responsible_person = $10,
			status = $11,
			comments = $12,
			last_updated = $13,
			updated_at = $14
		WHERE id = $15 AND project_id = $16`
	result, err := r.db.ExecContext(
		ctx,
		query,
		o.IndicatorName,
		o.Description,
		o.UnitOfMeasurement,
		o.BaselineValue,
		o.TargetValue,
		o.CurrentValue,
		o.DataSource,
		o.CollectionMethod,
		o.Frequency,
		o.ResponsiblePerson,
		o.Status,
		o.Comments,
		o.LastUpdated,
		o.UpdatedAt,
		o.ID,
		o.ProjectID,
	)
	if err != nil {
		return types.OutputIndicator{}, err
	}
	if err := checkAffected(result); err != nil {
		return types.OutputIndicator{}, err
	}
	return o, nil
}

func (r *OutputIndicatorRepository) Delete(ctx context.Context, projectID, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM output_indicators WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}
