package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"multitool/internal/core"
)

// HistoryService records what each feature did. Appends are best effort:
// a failed write is logged and never fails the caller's operation.
type HistoryService struct {
	store     HistoryStore
	publisher EventPublisher
	secret    string
	now       func() time.Time
}

func NewHistoryService(store HistoryStore, publisher EventPublisher, secret string, loc *time.Location) *HistoryService {
	if loc == nil {
		loc = time.UTC
	}
	return &HistoryService{
		store:     store,
		publisher: publisher,
		secret:    secret,
		now:       func() time.Time { return time.Now().In(loc) },
	}
}

// Log returns the history log of one feature.
func (s *HistoryService) Log(f core.Feature) *HistoryLog {
	return &HistoryLog{svc: s, feature: f}
}

// Get returns one record; used by the export worker.
func (s *HistoryService) Get(ctx context.Context, f core.Feature, id int64) (core.HistoryRecord, error) {
	rec, err := s.store.Get(ctx, f, id)
	if err != nil {
		return rec, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return rec, nil
}

// HistoryLog is the history of a single feature namespace.
type HistoryLog struct {
	svc     *HistoryService
	feature core.Feature
}

// Feature returns the namespace of the log.
func (l *HistoryLog) Feature() core.Feature { return l.feature }

// Append records one operation with the server time.
func (l *HistoryLog) Append(ctx context.Context, description, reference string) {
	if l == nil {
		return
	}
	rec := core.HistoryRecord{
		Feature:          l.feature,
		Timestamp:        l.svc.now(),
		InputDescription: description,
		OutputReference:  reference,
	}
	id, err := l.svc.store.Insert(ctx, rec)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to append history",
			"component", "history",
			"feature", l.feature,
			"error", err)
		return
	}

	if l.svc.publisher == nil {
		return
	}
	if err := l.svc.publisher.PublishHistoryAppended(ctx, string(l.feature), id); err != nil {
		slog.WarnContext(ctx, "Failed to publish history event",
			"component", "history",
			"feature", l.feature,
			"id", id,
			"error", err)
	}
}

// ListAll returns every record newest first when secret matches the
// configured history password. On mismatch nothing is read.
func (l *HistoryLog) ListAll(ctx context.Context, secret string) ([]core.HistoryRecord, error) {
	if l.svc.secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(l.svc.secret)) != 1 {
		return nil, core.ErrUnauthorized
	}
	recs, err := l.svc.store.List(ctx, l.feature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return recs, nil
}
