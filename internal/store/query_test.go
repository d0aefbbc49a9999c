package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionsNumbersPlaceholders(t *testing.T) {
	var conds conditions
	conds.add("(p.name ILIKE ? OR p.id_code ILIKE ?)", "%road%", "%road%")
	conds.add("p.status = ?", "in_progress")

	assert.Equal(t, " WHERE (p.name ILIKE $1 OR p.id_code ILIKE $2) AND p.status = $3", conds.where())
	assert.Equal(t, "$4", conds.placeholder(1))
	assert.Len(t, conds.args, 3)
}

func TestOrderByWhitelist(t *testing.T) {
	assert.Equal(t, " ORDER BY p.name DESC", orderBy("name", "desc", projectSorts, "p.created_at DESC"))
	assert.Equal(t, " ORDER BY p.name ASC", orderBy("name", "sideways", projectSorts, "p.created_at DESC"))
	assert.Equal(t, " ORDER BY p.created_at DESC", orderBy("name; DROP TABLE projects", "asc", projectSorts, "p.created_at DESC"))
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_done%`, likePattern("50%_done"))
}
