package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"multitool/internal/core"
)

// SpeechService synthesizes speech from short texts.
type SpeechService struct {
	synth   Synthesizer
	store   ArtifactStore
	history *HistoryLog
	timeout time.Duration
}

func NewSpeechService(synth Synthesizer, store ArtifactStore, history *HistoryLog, timeout time.Duration) *SpeechService {
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}
	return &SpeechService{synth: synth, store: store, history: history, timeout: timeout}
}

// Synthesize validates the request, generates audio and stores it. It
// returns the stored file name. History is written only on success.
func (s *SpeechService) Synthesize(ctx context.Context, req core.SpeechRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	text := strings.TrimSpace(req.Text)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	audio, err := s.synth.Synthesize(callCtx, text, req.Voice)
	if err != nil {
		slog.ErrorContext(ctx, "Speech synthesis failed", "component", "speech", "voice", req.Voice, "error", err)
		return "", fmt.Errorf("%w: %w", core.ErrExternalService, err)
	}

	name := newArtifactName(audio.Extension)
	if err := s.store.Save(ctx, core.FeatureSpeech, name, bytes.NewReader(audio.Data), audio.ContentType); err != nil {
		return "", fmt.Errorf("%w: save audio: %w", core.ErrStorage, err)
	}

	s.history.Append(ctx, text, name)
	return name, nil
}

// Exists reports whether a synthesized file is still available.
func (s *SpeechService) Exists(ctx context.Context, name string) (bool, error) {
	return s.store.Exists(ctx, core.FeatureSpeech, name)
}
