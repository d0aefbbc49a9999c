package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nsmonitor/apiserver/types"
)

// LocationRepository reads LGAs and wards.
type LocationRepository struct {
	db *sql.DB
}

func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

const lgaColumns = `
	l.id, l.name, l.code, l.headquarters, l.zone, l.latitude, l.longitude, l.population_estimate,
	l.area_km2, l.description, l.created_at, l.updated_at,
	(SELECT COUNT(1) FROM projects p WHERE p.lga_id = l.id),
	(SELECT COUNT(1) FROM wards w WHERE w.lga_id = l.id),
	(SELECT COALESCE(AVG(p.progress_percentage), 0) FROM projects p WHERE p.lga_id = l.id),
	(SELECT COALESCE(SUM(p.total_budget), 0) FROM projects p WHERE p.lga_id = l.id)`

func scanLga(row rowScanner) (types.Lga, error) {
	var l types.Lga
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Code,
		&l.Headquarters,
		&l.Zone,
		&l.Latitude,
		&l.Longitude,
		&l.PopulationEstimate,
		&l.AreaKm2,
		&l.Description,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.ProjectsCount,
		&l.WardsCount,
		&l.AverageProgress,
		&l.TotalBudget,
	)
	return l, err
}

const wardColumns = `id, lga_id, name, code, latitude, longitude, population_estimate, description`

func scanWard(row rowScanner) (types.Ward, error) {
	var w types.Ward
	err := row.Scan(
		&w.ID,
		&w.LgaID,
		&w.Name,
		&w.Code,
		&w.Latitude,
		&w.Longitude,
		&w.PopulationEstimate,
		&w.Description,
	)
	return w, err
}

// ListLgas returns every LGA ordered by name, with its wards attached.
func (r *LocationRepository) ListLgas(ctx context.Context) ([]types.Lga, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT`+lgaColumns+` FROM lgas l ORDER BY l.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lgas := []types.Lga{}
	index := map[int]int{}
	for rows.Next() {
		l, err := scanLga(rows)
		if err != nil {
			return nil, err
		}
		l.Wards = []types.Ward{}
		index[l.ID] = len(lgas)
		lgas = append(lgas, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	wards, err := r.ListWards(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, w := range wards {
		if i, ok := index[w.LgaID]; ok {
			lgas[i].Wards = append(lgas[i].Wards, w)
		}
	}
	return lgas, nil
}

func (r *LocationRepository) GetLga(ctx context.Context, id int) (types.Lga, error) {
	l, err := scanLga(r.db.QueryRowContext(ctx, `SELECT`+lgaColumns+` FROM lgas l WHERE l.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Lga{}, ErrNotFound
		}
		return types.Lga{}, err
	}
	l.Wards, err = r.ListWards(ctx, id)
	if err != nil {
		return types.Lga{}, err
	}
	return l, nil
}

// ListWards returns wards ordered by name. A zero lgaID returns all wards.
func (r *LocationRepository) ListWards(ctx context.Context, lgaID int) ([]types.Ward, error) {
	var conds conditions
	if lgaID > 0 {
		conds.add("lga_id = ?", lgaID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+wardColumns+` FROM wards`+conds.where()+` ORDER BY name`, conds.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wards := []types.Ward{}
	for rows.Next() {
		w, err := scanWard(rows)
		if err != nil {
			return nil, err
		}
		wards = append(wards, w)
	}
	return wards, rows.Err()
}

// WardBelongsTo reports whether the ward exists under the given LGA.
func (r *LocationRepository) WardBelongsTo(ctx context.Context, wardID, lgaID int) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM wards WHERE id = $1 AND lga_id = $2)`,
		wardID, lgaID).Scan(&ok)
	return ok, err
}

func (r *LocationRepository) GetWard(ctx context.Context, id int) (types.Ward, error) {
	w, err := scanWard(r.db.QueryRowContext(ctx, `SELECT `+wardColumns+` FROM wards WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Ward{}, ErrNotFound
	}
	return w, err
}

func (r *LocationRepository) LgaExists(ctx context.Context, id int) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM lgas WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (r *LocationRepository) WardExists(ctx context.Context, id int) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM wards WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}
