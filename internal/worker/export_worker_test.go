package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"multitool/internal/amqp"
	"multitool/internal/core"
	"multitool/internal/sheets/memory"
)

type fakeHistory struct {
	rows  map[int64]core.HistoryRecord
	err   error
	calls int
}

func (f *fakeHistory) Get(_ context.Context, feat core.Feature, id int64) (core.HistoryRecord, error) {
	f.calls++
	if f.err != nil {
		return core.HistoryRecord{}, f.err
	}
	rec, ok := f.rows[id]
	if !ok || rec.Feature != feat {
		return core.HistoryRecord{}, core.ErrNotFound
	}
	return rec, nil
}

type failingExporter struct{}

func (failingExporter) Export(context.Context, core.HistoryRecord) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestHandleHistoryEvent(t *testing.T) {
	rec := core.HistoryRecord{ID: 4, Feature: core.FeatureSpeech, Timestamp: time.Now(), InputDescription: "hi"}

	tests := []struct {
		name       string
		history    *fakeHistory
		event      amqp.HistoryEvent
		wantErr    bool
		wantRows   int
		wantLookup bool
	}{
		{
			name:       "exports row",
			history:    &fakeHistory{rows: map[int64]core.HistoryRecord{4: rec}},
			event:      amqp.HistoryEvent{Feature: "speech", ID: 4},
			wantRows:   1,
			wantLookup: true,
		},
		{
			name:       "unknown feature dropped",
			history:    &fakeHistory{},
			event:      amqp.HistoryEvent{Feature: "expenses", ID: 4},
			wantLookup: false,
		},
		{
			name:       "missing row dropped",
			history:    &fakeHistory{rows: map[int64]core.HistoryRecord{}},
			event:      amqp.HistoryEvent{Feature: "speech", ID: 9},
			wantLookup: true,
		},
		{
			name:       "storage error retried",
			history:    &fakeHistory{err: errors.New("database is locked")},
			event:      amqp.HistoryEvent{Feature: "speech", ID: 4},
			wantErr:    true,
			wantLookup: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			w := NewExportWorker(tt.history, store)
			err := w.HandleHistoryEvent(context.Background(), &tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := len(store.Rows()); got != tt.wantRows {
				t.Errorf("exported rows = %d, want %d", got, tt.wantRows)
			}
			if (tt.history.calls > 0) != tt.wantLookup {
				t.Errorf("lookup calls = %d", tt.history.calls)
			}
		})
	}
}

func TestHandleHistoryEvent_ExportFailure(t *testing.T) {
	rec := core.HistoryRecord{ID: 1, Feature: core.FeatureBudget}
	w := NewExportWorker(&fakeHistory{rows: map[int64]core.HistoryRecord{1: rec}}, failingExporter{})
	if err := w.HandleHistoryEvent(context.Background(), &amqp.HistoryEvent{Feature: "budget", ID: 1}); err == nil {
		t.Fatal("expected export error to be returned for redelivery")
	}
}
