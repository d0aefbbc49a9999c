package types

import "time"

// OutputIndicator tracks a measurable project output against a target.
type OutputIndicator struct {
	ID                 int        `json:"id" db:"id"`
	ProjectID          int        `json:"project_id" db:"project_id"`
	IndicatorName      string     `json:"indicator_name" db:"indicator_name"`
	Description        string     `json:"description" db:"description"`
	UnitOfMeasurement  string     `json:"unit_of_measurement" db:"unit_of_measurement"`
	BaselineValue      float64    `json:"baseline_value" db:"baseline_value"`
	TargetValue        float64    `json:"target_value" db:"target_value"`
	CurrentValue       float64    `json:"current_value" db:"current_value"`
	DataSource         string     `json:"data_source" db:"data_source"`
	CollectionMethod   string     `json:"collection_method" db:"collection_method"`
	Frequency          string     `json:"frequency" db:"frequency"`
	ResponsiblePerson  string     `json:"responsible_person" db:"responsible_person"`
	Status             string     `json:"status" db:"status"`
	Comments           string     `json:"comments" db:"comments"`
	LastUpdated        *time.Time `json:"last_updated" db:"last_updated"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`

	// AchievementPercentage is the share of the baseline-to-target distance
	// covered by the current value, capped at 100.
	AchievementPercentage float64 `json:"achievement_percentage" db:"-"`
}

// IndicatorFrequencies lists the accepted reporting frequencies.
var IndicatorFrequencies = []string{"daily", "weekly", "monthly", "quarterly", "annually"}

// IndicatorStatuses lists the accepted indicator statuses.
var IndicatorStatuses = []string{"on_track", "at_risk", "off_track", "achieved"}

// WithAchievement returns a copy of o with AchievementPercentage computed.
func (o OutputIndicator) WithAchievement() OutputIndicator {
	span := o.TargetValue - o.BaselineValue
	if span == 0 {
		o.AchievementPercentage = 0
		if o.CurrentValue >= o.TargetValue && o.TargetValue != 0 {
			o.AchievementPercentage = 100
		}
		return o
	}
	pct := (o.CurrentValue - o.BaselineValue) / span * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	o.AchievementPercentage = round(pct, 2)
	return o
}
