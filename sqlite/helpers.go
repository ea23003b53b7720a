package sqlite

import (
	"strings"
	"unicode/utf8"
)

// appendPagination appends LIMIT and OFFSET clauses to a query builder if values are > 0.
func appendPagination(query *strings.Builder, args *[]any, limit, offset int) {
	if limit > 0 {
		query.WriteString(" LIMIT ?")
		*args = append(*args, limit)
	}
	if offset > 0 {
		query.WriteString(" OFFSET ?")
		*args = append(*args, offset)
	}
}

// appendFilters appends kind and path prefix conditions to a query that
// already has a WHERE clause.
func appendFilters(query *strings.Builder, args *[]any, kind, pathPrefix string) {
	if kind != "" {
		query.WriteString(" AND kind = ?")
		*args = append(*args, kind)
	}
	if pathPrefix != "" {
		query.WriteString(" AND substr(path, 1, ?) = ?")
		*args = append(*args, utf8.RuneCountInString(pathPrefix), pathPrefix)
	}
}
