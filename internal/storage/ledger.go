package storage

import (
	"context"
	"fmt"

	"multitool/internal/core"
	"multitool/internal/query"
)

// Ledger column and table names of the household budget database.
const (
	LedgerTable   = "kakeibo"
	ColumnDate    = "日付"
	ColumnContent = "内容"
	ColumnMajor   = "大項目"
	ColumnMinor   = "中項目"
	ColumnAmount  = "金額（円）"
)

// LedgerRepository reads the household budget ledger. It never writes.
type LedgerRepository struct {
	pinger
}

// NewLedgerRepository opens the ledger database read-only.
func NewLedgerRepository(dbPath string) (*LedgerRepository, error) {
	db, err := openReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	return &LedgerRepository{pinger: pinger{db: db}}, nil
}

// Entries returns ledger rows matching the builder's predicates ordered by
// date. Amounts are normalized to whole yen.
func (r *LedgerRepository) Entries(ctx context.Context, b *query.Builder) ([]core.LedgerEntry, error) {
	where, args := b.Build()
	q := fmt.Sprintf(`SELECT %s, %s, %s, %s, %s FROM %s %s ORDER BY %s ASC`,
		query.Ident(ColumnDate),
		query.Ident(ColumnContent),
		query.Ident(ColumnMajor),
		query.Ident(ColumnMinor),
		query.Ident(ColumnAmount),
		query.Ident(LedgerTable),
		where,
		query.Ident(ColumnDate),
	)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		var (
			date, content, major, minor nullString
			amount                      any
		)
		if err := rows.Scan(&date, &content, &major, &minor, &amount); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		out = append(out, core.LedgerEntry{
			Date:    date.String(),
			Content: content.String(),
			Major:   major.String(),
			Minor:   minor.String(),
			Amount:  core.NormalizeAmount(amount),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return out, nil
}

// Majors lists the distinct non-null top-level categories.
func (r *LedgerRepository) Majors(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM %[2]s WHERE %[1]s IS NOT NULL ORDER BY %[1]s`,
		query.Ident(ColumnMajor), query.Ident(LedgerTable))

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query majors: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan major: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MinorsByMajor maps each top-level category to its distinct subcategories.
func (r *LedgerRepository) MinorsByMajor(ctx context.Context) (map[string][]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT %[1]s, %[2]s FROM %[3]s WHERE %[1]s IS NOT NULL AND %[2]s IS NOT NULL ORDER BY %[1]s, %[2]s`,
		query.Ident(ColumnMajor), query.Ident(ColumnMinor), query.Ident(LedgerTable))

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query minors: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var major, minor string
		if err := rows.Scan(&major, &minor); err != nil {
			return nil, fmt.Errorf("scan minor: %w", err)
		}
		out[major] = append(out[major], minor)
	}
	return out, rows.Err()
}

// nullString scans TEXT, NULL, or numeric columns into a string.
type nullString struct {
	s     string
	valid bool
}

func (n *nullString) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		n.s, n.valid = "", false
	case string:
		n.s, n.valid = x, true
	case []byte:
		n.s, n.valid = string(x), true
	default:
		n.s, n.valid = fmt.Sprint(x), true
	}
	return nil
}

func (n nullString) String() string { return n.s }
