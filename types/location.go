package types

import "time"

// Lga is a Local Government Area, the administrative unit projects are
// grouped under.
type Lga struct {
	ID                 int      `json:"id" db:"id"`
	Name               string   `json:"name" db:"name"`
	Code               string   `json:"code" db:"code"`
	Headquarters       string   `json:"headquarters" db:"headquarters"`
	Zone               string   `json:"zone" db:"zone"`
	Latitude           *float64 `json:"latitude" db:"latitude"`
	Longitude          *float64 `json:"longitude" db:"longitude"`
	PopulationEstimate *int     `json:"population_estimate" db:"population_estimate"`
	AreaKm2            *float64 `json:"area_km2" db:"area_km2"`
	Description        string   `json:"description" db:"description"`

	// Aggregates, populated by list queries.
	ProjectsCount   int     `json:"projects_count" db:"-"`
	WardsCount      int     `json:"wards_count" db:"-"`
	AverageProgress float64 `json:"average_progress" db:"-"`
	TotalBudget     float64 `json:"total_budget" db:"-"`

	Wards []Ward `json:"wards,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Ward is a subdivision of an LGA.
type Ward struct {
	ID                 int      `json:"id" db:"id"`
	LgaID              int      `json:"lga_id" db:"lga_id"`
	Name               string   `json:"name" db:"name"`
	Code               string   `json:"code" db:"code"`
	Latitude           *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude          *float64 `json:"longitude,omitempty" db:"longitude"`
	PopulationEstimate *int     `json:"population_estimate,omitempty" db:"population_estimate"`
	Description        string   `json:"description,omitempty" db:"description"`
}
