package common

import (
	"strings"

	"gorm.io/gorm"
)

// Paginate applies the offset and limit of req.
// Usage: db.Scopes(common.Paginate(req)).Find(&rows)
func Paginate(req PaginationRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.GetOffset()).Limit(req.GetPageSize())
	}
}

// Search matches q case-insensitively against any of columns. An empty q
// leaves the statement unchanged.
func Search(q string, columns ...string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		q = strings.TrimSpace(q)
		if q == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + EscapeLike(strings.ToLower(q)) + "%"
		conds := make([]string, 0, len(columns))
		args := make([]any, 0, len(columns))
		for _, col := range columns {
			conds = append(conds, "LOWER("+col+") LIKE ? ESCAPE '\\'")
			args = append(args, pattern)
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

// EscapeLike escapes LIKE wildcards with a backslash.
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
