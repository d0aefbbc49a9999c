package store

import (
	"database/sql"
	"fmt"
	"strings"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// conditions accumulates WHERE clauses with positional arguments. Each clause
// uses "?" for its single argument and is rewritten to the next $n.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, args ...any) {
	for _, arg := range args {
		c.args = append(c.args, arg)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(c.args)), 1)
	}
	c.clauses = append(c.clauses, clause)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// placeholder returns the $n for the next argument appended after the
// conditions.
func (c *conditions) placeholder(offset int) string {
	return fmt.Sprintf("$%d", len(c.args)+offset)
}

// orderBy resolves a client sort key against a whitelist of columns. Unknown
// keys fall back to def.
func orderBy(sortBy, sortOrder string, allowed map[string]string, def string) string {
	column, ok := allowed[sortBy]
	if !ok {
		return " ORDER BY " + def
	}
	dir := "ASC"
	if strings.EqualFold(sortOrder, "desc") {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, dir)
}

func likePattern(search string) string {
	search = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(search)
	return "%" + search + "%"
}

func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 15
	}
	return offset, limit
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// rollback is deferred after BeginTx; it is a no-op once the tx committed.
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
