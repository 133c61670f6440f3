package services

import (
	"context"
	"io"
	"time"

	"multitool/internal/core"
	"multitool/internal/query"
)

// Ports for outbound adapters.
type (
	HistoryStore interface {
		Insert(ctx context.Context, rec core.HistoryRecord) (int64, error)
		List(ctx context.Context, f core.Feature) ([]core.HistoryRecord, error)
		Get(ctx context.Context, f core.Feature, id int64) (core.HistoryRecord, error)
	}

	// EventPublisher announces appended history rows to other processes.
	EventPublisher interface {
		PublishHistoryAppended(ctx context.Context, feature string, id int64) error
	}

	LedgerReader interface {
		Entries(ctx context.Context, b *query.Builder) ([]core.LedgerEntry, error)
		Majors(ctx context.Context) ([]string, error)
		MinorsByMajor(ctx context.Context) (map[string][]string, error)
	}

	ArchiveReader interface {
		TabSheets(ctx context.Context) ([]string, error)
		UpdatedAt() (time.Time, error)
		Search(ctx context.Context, tab, text string) ([]core.ArchiveRecord, error)
		Tab(ctx context.Context, name string) ([]core.ArchiveRecord, error)
		Find(ctx context.Context, tab string, id int64) (core.ArchiveRecord, error)
		Window(ctx context.Context, target core.ArchiveRecord, radius int) ([]core.ArchiveRecord, error)
	}

	// Captioner describes an image in natural language.
	Captioner interface {
		Caption(ctx context.Context, image []byte, mimeType string) (string, error)
	}

	// Synthesizer turns text into encoded audio.
	Synthesizer interface {
		Synthesize(ctx context.Context, text string, voice core.VoiceGender) (Audio, error)
	}

	// BackgroundRemover returns a PNG with the image background removed.
	BackgroundRemover interface {
		RemoveBackground(ctx context.Context, image []byte, filename string) ([]byte, error)
	}

	// MediaDownloader fetches a video or its audio track into dir and
	// returns the path of the produced file.
	MediaDownloader interface {
		CheckReachable(ctx context.Context, url string) error
		Download(ctx context.Context, url string, format core.MediaFormat, dir string) (string, error)
	}

	// ArtifactStore persists generated files under a per-feature prefix.
	ArtifactStore interface {
		Save(ctx context.Context, feature core.Feature, name string, r io.Reader, contentType string) error
		Open(ctx context.Context, feature core.Feature, name string) (io.ReadCloser, error)
		Exists(ctx context.Context, feature core.Feature, name string) (bool, error)
		Clear(ctx context.Context, feature core.Feature) error
	}
)

// Audio is encoded speech ready to be stored.
type Audio struct {
	Data        []byte
	Extension   string // including the dot
	ContentType string
}
