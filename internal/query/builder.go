// Package query assembles parameterized SQL WHERE clauses.
//
// Every user-supplied value is bound through a placeholder; only quoted
// identifiers and placeholder counts are written into the SQL text.
package query

import (
	"strings"
)

type predicate struct {
	clause string
	args   []any
}

// Builder accumulates predicates joined by AND. The zero value is ready
// to use.
type Builder struct {
	preds []predicate
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{}
}

// Ident quotes a column or table name for SQLite, doubling embedded quotes.
func Ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Where appends a raw clause with its bound arguments. The clause must
// contain exactly len(args) placeholders.
func (b *Builder) Where(clause string, args ...any) *Builder {
	b.preds = append(b.preds, predicate{clause: clause, args: args})
	return b
}

// Eq appends column = value.
func (b *Builder) Eq(column string, value any) *Builder {
	return b.Where(Ident(column)+" = ?", value)
}

// In appends column IN (...). An empty set adds nothing, meaning the
// dimension is unfiltered.
func (b *Builder) In(column string, values []string) *Builder {
	if len(values) == 0 {
		return b
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return b.Where(Ident(column)+" IN ("+placeholders(len(values))+")", args...)
}

// Between appends column BETWEEN lo AND hi (inclusive).
func (b *Builder) Between(column string, lo, hi any) *Builder {
	return b.Where(Ident(column)+" BETWEEN ? AND ?", lo, hi)
}

// Like appends column LIKE %value% with wildcard characters in value
// escaped so they match literally.
func (b *Builder) Like(column, value string) *Builder {
	return b.Where(Ident(column)+` LIKE ? ESCAPE '\'`, "%"+EscapeLike(value)+"%")
}

// StrftimeEq appends strftime(format, column) = value.
func (b *Builder) StrftimeEq(format, column, value string) *Builder {
	return b.Where("strftime('"+format+"', "+Ident(column)+") = ?", value)
}

// Len returns the number of accumulated predicates.
func (b *Builder) Len() int {
	return len(b.preds)
}

// Build returns the WHERE clause (empty when no predicates were added)
// and the arguments in placeholder order.
func (b *Builder) Build() (string, []any) {
	if len(b.preds) == 0 {
		return "", nil
	}
	clauses := make([]string, len(b.preds))
	var args []any
	for i, p := range b.preds {
		clauses[i] = p.clause
		args = append(args, p.args...)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// EscapeLike escapes LIKE metacharacters using backslash.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
