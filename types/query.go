package types

// ListQuery carries the search, filter, sort and paging options shared by
// list endpoints. Empty fields mean "no constraint".
type ListQuery struct {
	Search    string
	Status    string
	Category  string
	Role      string
	SortBy    string
	SortOrder string
	Offset    int
	Limit     int
}

// ProjectQuery extends ListQuery with project-specific filters.
type ProjectQuery struct {
	ListQuery
	LgaID  int
	WardID int
}

// ProjectTotals summarizes the whole project table for list metadata.
type ProjectTotals struct {
	Total      int `json:"total"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Overdue    int `json:"overdue"`
}
