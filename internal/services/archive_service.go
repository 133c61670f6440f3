package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"multitool/internal/core"
)

// ContextRadius is how many neighbours are shown on each side of a record.
const ContextRadius = 15

// ArchiveService searches the classifieds archive.
type ArchiveService struct {
	archive ArchiveReader
	history *HistoryLog
}

func NewArchiveService(archive ArchiveReader, history *HistoryLog) *ArchiveService {
	return &ArchiveService{archive: archive, history: history}
}

// TabListing is the result of an empty search: every tab and the time the
// archive was last refreshed.
type TabListing struct {
	Tabs      []string
	UpdatedAt time.Time
}

// SearchResult holds the matches of a two-token search.
type SearchResult struct {
	Tab     string
	Term    string
	Records []core.ArchiveRecord
}

// ListTabs lists every tab sheet. A missing modification time is reported
// as the zero time.
func (s *ArchiveService) ListTabs(ctx context.Context) (TabListing, error) {
	tabs, err := s.archive.TabSheets(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Archive tab listing failed", "component", "archive", "error", err)
		return TabListing{}, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	updated, err := s.archive.UpdatedAt()
	if err != nil {
		slog.WarnContext(ctx, "Archive modification time unavailable", "component", "archive", "error", err)
	}
	return TabListing{Tabs: tabs, UpdatedAt: updated}, nil
}

// ParseSearch splits raw input into exactly two whitespace-separated
// tokens: a tab fragment and a text fragment.
func ParseSearch(raw string) (tab, term string, err error) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: 検索語はスペースで区切られた2つの単語である必要があります。", core.ErrInvalidInput)
	}
	return parts[0], parts[1], nil
}

// Search runs a two-token search. The token count is checked before any
// storage access. A non-empty result is recorded in history.
func (s *ArchiveService) Search(ctx context.Context, raw string) (SearchResult, error) {
	raw = strings.TrimSpace(raw)
	tab, term, err := ParseSearch(raw)
	if err != nil {
		return SearchResult{}, err
	}

	records, err := s.archive.Search(ctx, tab, term)
	if err != nil {
		slog.ErrorContext(ctx, "Archive search failed", "component", "archive", "error", err)
		return SearchResult{}, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	if len(records) > 0 && s.history != nil {
		s.history.Append(ctx, raw, "")
	}
	return SearchResult{Tab: tab, Term: term, Records: records}, nil
}

// Tab returns every record of one tab.
func (s *ArchiveService) Tab(ctx context.Context, name string) ([]core.ArchiveRecord, error) {
	records, err := s.archive.Tab(ctx, name)
	if err != nil {
		slog.ErrorContext(ctx, "Archive tab query failed", "component", "archive", "tab", name, "error", err)
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return records, nil
}

// Detail is one archive record with its neighbours.
type Detail struct {
	Found   bool
	Record  core.ArchiveRecord
	Context []core.ArchiveRecord
}

// DetailWithContext returns the record and up to ContextRadius neighbours
// on each side within its tab. An absent record yields Found=false and no
// context rather than an error.
func (s *ArchiveService) DetailWithContext(ctx context.Context, tab string, id int64) (Detail, error) {
	rec, err := s.archive.Find(ctx, tab, id)
	if errors.Is(err, core.ErrNotFound) {
		return Detail{}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "Archive detail lookup failed", "component", "archive", "tab", tab, "id", id, "error", err)
		return Detail{}, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	window, err := s.archive.Window(ctx, rec, ContextRadius)
	if err != nil {
		slog.ErrorContext(ctx, "Archive context query failed", "component", "archive", "tab", tab, "id", id, "error", err)
		return Detail{}, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return Detail{Found: true, Record: rec, Context: window}, nil
}
