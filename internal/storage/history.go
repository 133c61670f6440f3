package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"multitool/internal/core"
)

// TimestampLayout is how history timestamps are stored.
const TimestampLayout = "2006-01-02 15:04:05"

// HistoryRepository stores the per-feature history logs in one database
// with one table per feature.
type HistoryRepository struct {
	pinger
	loc *time.Location
}

// NewHistoryRepository opens the history database, applying migrations.
// Timestamps are read back in loc.
func NewHistoryRepository(dbPath string, loc *time.Location) (*HistoryRepository, error) {
	db, err := openWritable(dbPath)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}
	return &HistoryRepository{pinger: pinger{db: db}, loc: loc}, nil
}

// table maps a feature to its history table. Only known features resolve,
// so the returned name is safe to splice into SQL.
func table(f core.Feature) (string, error) {
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown history namespace %q", core.ErrInvalidInput, f)
	}
	return "history_" + string(f), nil
}

// Insert appends one record and returns its id.
func (r *HistoryRepository) Insert(ctx context.Context, rec core.HistoryRecord) (int64, error) {
	t, err := table(rec.Feature)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO `+t+` (timestamp, input_description, output_reference) VALUES (?, ?, ?)`,
		rec.Timestamp.In(r.loc).Format(TimestampLayout), rec.InputDescription, rec.OutputReference)
	if err != nil {
		return 0, fmt.Errorf("insert history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history last insert id: %w", err)
	}

	slog.DebugContext(ctx, "History row saved", "feature", rec.Feature, "id", id)
	return id, nil
}

// List returns every record of the feature, newest first.
func (r *HistoryRepository) List(ctx context.Context, f core.Feature) ([]core.HistoryRecord, error) {
	t, err := table(f)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp, input_description, output_reference FROM `+t+` ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []core.HistoryRecord
	for rows.Next() {
		rec, err := r.scan(rows, f)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// Get returns one record by id.
func (r *HistoryRepository) Get(ctx context.Context, f core.Feature, id int64) (core.HistoryRecord, error) {
	t, err := table(f)
	if err != nil {
		return core.HistoryRecord{}, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, timestamp, input_description, output_reference FROM `+t+` WHERE id = ?`, id)
	rec, err := r.scan(row, f)
	if errors.Is(err, sql.ErrNoRows) {
		return core.HistoryRecord{}, fmt.Errorf("history %s/%d: %w", f, id, core.ErrNotFound)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *HistoryRepository) scan(s scanner, f core.Feature) (core.HistoryRecord, error) {
	var (
		rec core.HistoryRecord
		ts  string
	)
	if err := s.Scan(&rec.ID, &ts, &rec.InputDescription, &rec.OutputReference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan history: %w", err)
	}
	rec.Feature = f
	if parsed, err := time.ParseInLocation(TimestampLayout, ts, r.loc); err == nil {
		rec.Timestamp = parsed
	}
	return rec, nil
}
