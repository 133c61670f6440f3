package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"multitool/internal/amqp"
	"multitool/internal/core"
	"multitool/internal/sheets"
)

// HistoryReader loads a single history row.
type HistoryReader interface {
	Get(ctx context.Context, f core.Feature, id int64) (core.HistoryRecord, error)
}

// ExportWorker copies appended history rows to a spreadsheet.
type ExportWorker struct {
	history  HistoryReader
	exporter sheets.HistoryExporter
}

func NewExportWorker(history HistoryReader, exporter sheets.HistoryExporter) *ExportWorker {
	return &ExportWorker{history: history, exporter: exporter}
}

// HandleHistoryEvent processes a single history.appended message. Events
// that can never succeed (unknown namespace, deleted row) are dropped by
// returning nil so they are not redelivered.
func (w *ExportWorker) HandleHistoryEvent(ctx context.Context, msg *amqp.HistoryEvent) error {
	slog.InfoContext(ctx, "Processing history event",
		"feature", msg.Feature,
		"id", msg.ID)

	feature := core.Feature(msg.Feature)
	if !feature.Valid() {
		slog.WarnContext(ctx, "Dropping history event with unknown feature",
			"feature", msg.Feature,
			"id", msg.ID)
		return nil
	}

	rec, err := w.history.Get(ctx, feature, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "History row not found, dropping event",
			"feature", msg.Feature,
			"id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get history row: %w", err)
	}

	ref, err := w.exporter.Export(ctx, rec)
	if err != nil {
		return fmt.Errorf("export history row: %w", err)
	}

	slog.InfoContext(ctx, "Successfully exported history row",
		"feature", msg.Feature,
		"id", msg.ID,
		"sheets_ref", ref)
	return nil
}
