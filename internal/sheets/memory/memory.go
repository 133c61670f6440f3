// Package memory is an in-process HistoryExporter. The history worker uses
// it when no spreadsheet is configured, so events are still consumed and
// logged.
package memory

import (
	"context"
	"fmt"
	"sync"

	"multitool/internal/core"
	ports "multitool/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []core.HistoryRecord
}

var _ ports.HistoryExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Export stores the record and returns a synthetic row reference.
func (s *Store) Export(_ context.Context, rec core.HistoryRecord) (string, error) {
	if !rec.Feature.Valid() {
		return "", fmt.Errorf("%w: unknown feature %q", core.ErrInvalidInput, rec.Feature)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rec)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the exported records in export order.
func (s *Store) Rows() []core.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.HistoryRecord(nil), s.rows...)
}
