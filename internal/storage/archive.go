package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"multitool/internal/core"
	"multitool/internal/query"
)

const (
	archiveTable   = "data"
	archiveColumns = "id, tab_sheet, date, time, text"
)

// ArchiveRepository reads the classifieds archive. It never writes.
type ArchiveRepository struct {
	pinger
	path string
}

// NewArchiveRepository opens the archive database read-only.
func NewArchiveRepository(dbPath string) (*ArchiveRepository, error) {
	db, err := openReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	return &ArchiveRepository{pinger: pinger{db: db}, path: dbPath}, nil
}

// UpdatedAt returns the modification time of the database file.
func (r *ArchiveRepository) UpdatedAt() (time.Time, error) {
	fi, err := os.Stat(r.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat archive: %w", err)
	}
	return fi.ModTime(), nil
}

// TabSheets lists the distinct tab names in ascending order.
func (r *ArchiveRepository) TabSheets(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT tab_sheet FROM `+archiveTable+` ORDER BY tab_sheet ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tab sheets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s nullString
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan tab sheet: %w", err)
		}
		out = append(out, s.String())
	}
	return out, rows.Err()
}

// Search returns records whose tab contains tab and whose text contains
// text, ordered by date then time.
func (r *ArchiveRepository) Search(ctx context.Context, tab, text string) ([]core.ArchiveRecord, error) {
	b := query.New().Like("tab_sheet", tab).Like("text", text)
	return r.list(ctx, b, "")
}

// Tab returns every record of one tab ordered by date then time.
func (r *ArchiveRepository) Tab(ctx context.Context, name string) ([]core.ArchiveRecord, error) {
	return r.list(ctx, query.New().Eq("tab_sheet", name), "")
}

// Find returns the record with id inside tab.
func (r *ArchiveRepository) Find(ctx context.Context, tab string, id int64) (core.ArchiveRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+archiveColumns+` FROM `+archiveTable+` WHERE tab_sheet = ? AND id = ?`, tab, id)
	rec, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ArchiveRecord{}, fmt.Errorf("archive %s/%d: %w", tab, id, core.ErrNotFound)
	}
	return rec, err
}

// Window returns up to 2*radius+1 records of the target's tab centered on
// the target's (date, time) position. The offset is clamped at zero so a
// target near the start yields a shorter leading side.
func (r *ArchiveRepository) Window(ctx context.Context, target core.ArchiveRecord, radius int) ([]core.ArchiveRecord, error) {
	var before int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+archiveTable+` WHERE tab_sheet = ? AND (date < ? OR (date = ? AND time < ?))`,
		target.TabSheet, target.Date, target.Date, target.Time).Scan(&before)
	if err != nil {
		return nil, fmt.Errorf("count preceding records: %w", err)
	}

	offset := before - radius
	if offset < 0 {
		offset = 0
	}
	limit := fmt.Sprintf(" LIMIT %d OFFSET %d", 2*radius+1, offset)
	return r.list(ctx, query.New().Eq("tab_sheet", target.TabSheet), limit)
}

func (r *ArchiveRepository) list(ctx context.Context, b *query.Builder, suffix string) ([]core.ArchiveRecord, error) {
	where, args := b.Build()
	q := `SELECT ` + archiveColumns + ` FROM ` + archiveTable + ` ` + where + ` ORDER BY date ASC, time ASC, id ASC` + suffix

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var out []core.ArchiveRecord
	for rows.Next() {
		rec, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive: %w", err)
	}
	return out, nil
}

func scanArchive(s scanner) (core.ArchiveRecord, error) {
	var (
		rec                 core.ArchiveRecord
		tab, date, tm, text nullString
	)
	if err := s.Scan(&rec.ID, &tab, &date, &tm, &text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan archive: %w", err)
	}
	rec.TabSheet = tab.String()
	rec.Date = date.String()
	rec.Time = tm.String()
	rec.Text = text.String()
	return rec, nil
}
