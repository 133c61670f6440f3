package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"multitool/internal/core"
	"multitool/internal/imaging"
)

// BackgroundService removes image backgrounds.
type BackgroundService struct {
	remover BackgroundRemover
	store   ArtifactStore
	history *HistoryLog
	timeout time.Duration
}

func NewBackgroundService(remover BackgroundRemover, store ArtifactStore, history *HistoryLog, timeout time.Duration) *BackgroundService {
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}
	return &BackgroundService{remover: remover, store: store, history: history, timeout: timeout}
}

// BackgroundResult names the stored original and the PNG cut-out.
type BackgroundResult struct {
	Original string
	Result   string
}

// Remove stores the upload, removes its background and stores the PNG.
func (s *BackgroundService) Remove(ctx context.Context, image []byte) (BackgroundResult, error) {
	image, kind, err := imaging.NormalizePhoto(image)
	if err != nil {
		return BackgroundResult{}, err
	}

	original := newArtifactName(kind.Extension)
	if err := s.store.Save(ctx, core.FeatureBackgroundRemoval, original, bytes.NewReader(image), kind.MIMEType); err != nil {
		return BackgroundResult{}, fmt.Errorf("%w: save upload: %w", core.ErrStorage, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	png, err := s.remover.RemoveBackground(callCtx, image, original)
	if err != nil {
		slog.ErrorContext(ctx, "Background removal failed", "component", "background", "image", original, "error", err)
		return BackgroundResult{}, fmt.Errorf("%w: %w", core.ErrExternalService, err)
	}
	if !imaging.IsPNG(png) {
		return BackgroundResult{}, fmt.Errorf("%w: background remover returned non-PNG output", core.ErrExternalService)
	}

	result := newArtifactName(imaging.PNG.Extension)
	if err := s.store.Save(ctx, core.FeatureBackgroundRemoval, result, bytes.NewReader(png), imaging.PNG.MIMEType); err != nil {
		return BackgroundResult{}, fmt.Errorf("%w: save result: %w", core.ErrStorage, err)
	}

	s.history.Append(ctx, original, result)
	return BackgroundResult{Original: original, Result: result}, nil
}

// Exists reports whether a stored file is still available.
func (s *BackgroundService) Exists(ctx context.Context, name string) (bool, error) {
	return s.store.Exists(ctx, core.FeatureBackgroundRemoval, name)
}
