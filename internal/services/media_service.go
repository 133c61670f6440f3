package services

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"multitool/internal/core"
)

// MediaService downloads videos or their audio tracks.
type MediaService struct {
	downloader MediaDownloader
	store      ArtifactStore
	history    *HistoryLog
	timeout    time.Duration
	tempDir    string
}

func NewMediaService(downloader MediaDownloader, store ArtifactStore, history *HistoryLog, timeout time.Duration, tempDir string) *MediaService {
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}
	return &MediaService{downloader: downloader, store: store, history: history, timeout: timeout, tempDir: tempDir}
}

// Reset removes previously downloaded files.
func (s *MediaService) Reset(ctx context.Context) error {
	return s.store.Clear(ctx, core.FeatureMediaDownload)
}

// Download checks the URL is reachable, downloads the media in the
// requested format and stores it. It returns the stored file name.
func (s *MediaService) Download(ctx context.Context, req core.MediaRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	url := strings.TrimSpace(req.URL)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.downloader.CheckReachable(callCtx, url); err != nil {
		return "", fmt.Errorf("%w: URL is not reachable: %w", core.ErrInvalidInput, err)
	}

	workDir, err := os.MkdirTemp(s.tempDir, "media-*")
	if err != nil {
		return "", fmt.Errorf("%w: create work dir: %w", core.ErrStorage, err)
	}
	defer os.RemoveAll(workDir)

	path, err := s.downloader.Download(callCtx, url, req.Format, workDir)
	if err != nil {
		slog.ErrorContext(ctx, "Media download failed", "component", "media", "format", req.Format, "error", err)
		return "", fmt.Errorf("%w: %w", core.ErrExternalService, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open download: %w", core.ErrStorage, err)
	}
	defer f.Close()

	name := newArtifactName("." + string(req.Format))
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.store.Save(ctx, core.FeatureMediaDownload, name, f, contentType); err != nil {
		return "", fmt.Errorf("%w: save download: %w", core.ErrStorage, err)
	}

	s.history.Append(ctx, url, name)
	return name, nil
}

// Exists reports whether a stored file is still available.
func (s *MediaService) Exists(ctx context.Context, name string) (bool, error) {
	return s.store.Exists(ctx, core.FeatureMediaDownload, name)
}
