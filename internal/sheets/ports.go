package sheets

import (
	"context"

	"multitool/internal/core"
)

// Ports for outbound adapters.
type (
	// HistoryExporter copies one history record to a spreadsheet and
	// returns a reference to the written row.
	HistoryExporter interface {
		Export(ctx context.Context, rec core.HistoryRecord) (rowRef string, err error)
	}
)

// Row renders a record as spreadsheet cells: id, timestamp, feature,
// input, output.
func Row(rec core.HistoryRecord, layout string) []any {
	return []any{
		rec.ID,
		rec.Timestamp.Format(layout),
		string(rec.Feature),
		rec.InputDescription,
		rec.OutputReference,
	}
}
