package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"multitool/internal/core"
	"multitool/internal/imaging"
)

// DefaultExternalTimeout bounds every call to a third-party service.
const DefaultExternalTimeout = 2 * time.Minute

func newArtifactName(ext string) string {
	return uuid.NewString() + ext
}

// CaptionService captions uploaded photos.
type CaptionService struct {
	captioner Captioner
	store     ArtifactStore
	history   *HistoryLog
	timeout   time.Duration
}

func NewCaptionService(captioner Captioner, store ArtifactStore, history *HistoryLog, timeout time.Duration) *CaptionService {
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}
	return &CaptionService{captioner: captioner, store: store, history: history, timeout: timeout}
}

// CaptionResult names the stored image and its caption.
type CaptionResult struct {
	ImageName string
	Caption   string
}

// Caption stores the photo and asks the vision model to describe it. The
// attempt is recorded in history even when the model call fails, with an
// empty caption.
func (s *CaptionService) Caption(ctx context.Context, image []byte) (CaptionResult, error) {
	image, kind, err := imaging.NormalizePhoto(image)
	if err != nil {
		return CaptionResult{}, err
	}

	name := newArtifactName(kind.Extension)
	if err := s.store.Save(ctx, core.FeatureImageCaption, name, bytes.NewReader(image), kind.MIMEType); err != nil {
		return CaptionResult{}, fmt.Errorf("%w: save upload: %w", core.ErrStorage, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	caption, err := s.captioner.Caption(callCtx, image, kind.MIMEType)
	s.history.Append(ctx, name, caption)
	if err != nil {
		slog.ErrorContext(ctx, "Caption request failed", "component", "caption", "image", name, "error", err)
		return CaptionResult{ImageName: name}, fmt.Errorf("%w: %w", core.ErrExternalService, err)
	}

	return CaptionResult{ImageName: name, Caption: caption}, nil
}
