package services

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"multitool/internal/core"
	"multitool/internal/imaging"
)

func historyFor(store *fakeHistoryStore, f core.Feature) *HistoryLog {
	return NewHistoryService(store, nil, "pw", time.UTC).Log(f)
}

func TestCaption_RejectsNonPhoto(t *testing.T) {
	store := newMemStore()
	hist := &fakeHistoryStore{}
	svc := NewCaptionService(&fakeCaptioner{}, store, historyFor(hist, core.FeatureImageCaption), 0)

	if _, err := svc.Caption(context.Background(), pngBytes); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(store.files) != 0 || len(hist.rows) != 0 {
		t.Fatal("rejected upload must not be stored or recorded")
	}
}

func TestCaption_Success(t *testing.T) {
	store := newMemStore()
	hist := &fakeHistoryStore{}
	capt := &fakeCaptioner{caption: "猫が座っています"}
	svc := NewCaptionService(capt, store, historyFor(hist, core.FeatureImageCaption), time.Second)

	res, err := svc.Caption(context.Background(), jpegBytes)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(res.ImageName, ".jpg") || res.Caption != "猫が座っています" || capt.mime != "image/jpeg" {
		t.Fatalf("unexpected %+v mime=%s", res, capt.mime)
	}
	if ok, _ := store.Exists(context.Background(), core.FeatureImageCaption, res.ImageName); !ok {
		t.Fatal("upload not stored")
	}
	if hist.rows[0].InputDescription != res.ImageName || hist.rows[0].OutputReference != res.Caption {
		t.Fatalf("unexpected history %+v", hist.rows[0])
	}
}

func heicPhoto(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("../imaging/testdata/photo.heic")
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestCaption_ConvertsHEIF(t *testing.T) {
	store := newMemStore()
	capt := &fakeCaptioner{caption: "灰色の画像"}
	svc := NewCaptionService(capt, store, historyFor(&fakeHistoryStore{}, core.FeatureImageCaption), time.Second)

	res, err := svc.Caption(context.Background(), heicPhoto(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(res.ImageName, ".jpg") {
		t.Fatalf("stored name = %q, want .jpg", res.ImageName)
	}
	if capt.mime != "image/jpeg" || !imaging.IsJPEG(capt.image) {
		t.Fatalf("captioner got mime=%s, jpeg=%v", capt.mime, imaging.IsJPEG(capt.image))
	}
	key := store.key(core.FeatureImageCaption, res.ImageName)
	if !imaging.IsJPEG(store.files[key]) || store.types[key] != "image/jpeg" {
		t.Fatalf("stored %s as %s", res.ImageName, store.types[key])
	}
}

func TestCaption_FailureStillRecorded(t *testing.T) {
	hist := &fakeHistoryStore{}
	svc := NewCaptionService(&fakeCaptioner{err: errBoom}, newMemStore(), historyFor(hist, core.FeatureImageCaption), 0)

	res, err := svc.Caption(context.Background(), jpegBytes)
	if !errors.Is(err, core.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if len(hist.rows) != 1 || hist.rows[0].InputDescription != res.ImageName || hist.rows[0].OutputReference != "" {
		t.Fatalf("expected failed attempt to be recorded, got %+v", hist.rows)
	}
}

func TestSpeech_Synthesize(t *testing.T) {
	store := newMemStore()
	hist := &fakeHistoryStore{}
	synth := &fakeSynth{}
	svc := NewSpeechService(synth, store, historyFor(hist, core.FeatureSpeech), 0)

	if _, err := svc.Synthesize(context.Background(), core.SpeechRequest{Text: "", Voice: core.VoiceMale}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if synth.calls != 0 {
		t.Fatal("invalid request reached the synthesizer")
	}

	name, err := svc.Synthesize(context.Background(), core.SpeechRequest{Text: " こんにちは ", Voice: core.VoiceFemale})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(name, ".wav") || synth.voice != core.VoiceFemale {
		t.Fatalf("unexpected name %q voice %q", name, synth.voice)
	}
	if ok, _ := svc.Exists(context.Background(), name); !ok {
		t.Fatal("audio not stored")
	}
	if hist.rows[0].InputDescription != "こんにちは" || hist.rows[0].OutputReference != name {
		t.Fatalf("unexpected history %+v", hist.rows[0])
	}

	failing := NewSpeechService(&fakeSynth{err: errBoom}, store, historyFor(hist, core.FeatureSpeech), 0)
	if _, err := failing.Synthesize(context.Background(), core.SpeechRequest{Text: "x", Voice: core.VoiceMale}); !errors.Is(err, core.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if len(hist.rows) != 1 {
		t.Fatal("failed synthesis must not be recorded")
	}
}

func TestBackground_ConvertsHEIF(t *testing.T) {
	store := newMemStore()
	remover := &fakeRemover{out: pngBytes}
	svc := NewBackgroundService(remover, store, historyFor(&fakeHistoryStore{}, core.FeatureBackgroundRemoval), time.Second)

	res, err := svc.Remove(context.Background(), heicPhoto(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(res.Original, ".jpg") || !imaging.IsJPEG(remover.image) {
		t.Fatalf("original=%s, remover got jpeg=%v", res.Original, imaging.IsJPEG(remover.image))
	}
	if !imaging.IsJPEG(store.files[store.key(core.FeatureBackgroundRemoval, res.Original)]) {
		t.Fatal("stored original is not JPEG")
	}
}

func TestBackground_Remove(t *testing.T) {
	store := newMemStore()
	hist := &fakeHistoryStore{}
	svc := NewBackgroundService(&fakeRemover{out: pngBytes}, store, historyFor(hist, core.FeatureBackgroundRemoval), 0)

	res, err := svc.Remove(context.Background(), jpegBytes)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(res.Result, ".png") || store.types["background_removal/"+res.Result] != "image/png" {
		t.Fatalf("unexpected result %+v", res)
	}
	if hist.rows[0].InputDescription != res.Original || hist.rows[0].OutputReference != res.Result {
		t.Fatalf("unexpected history %+v", hist.rows[0])
	}

	bad := NewBackgroundService(&fakeRemover{out: []byte("<html>")}, store, nil, 0)
	if _, err := bad.Remove(context.Background(), jpegBytes); !errors.Is(err, core.ErrExternalService) {
		t.Fatalf("expected ErrExternalService for non-PNG output, got %v", err)
	}
}

func TestMedia_Download(t *testing.T) {
	store := newMemStore()
	hist := &fakeHistoryStore{}
	dl := &fakeDownloader{}
	svc := NewMediaService(dl, store, historyFor(hist, core.FeatureMediaDownload), 0, t.TempDir())

	name, err := svc.Download(context.Background(), core.MediaRequest{URL: "https://youtu.be/x", Format: core.FormatMP3})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(name, ".mp3") {
		t.Fatalf("unexpected name %q", name)
	}
	if hist.rows[0].InputDescription != "https://youtu.be/x" {
		t.Fatalf("unexpected history %+v", hist.rows[0])
	}

	if err := svc.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ok, _ := svc.Exists(context.Background(), name); ok {
		t.Fatal("reset must clear downloads")
	}
}

func TestMedia_DownloadFailures(t *testing.T) {
	req := core.MediaRequest{URL: "https://youtu.be/x", Format: core.FormatMP4}

	unreachable := &fakeDownloader{reachErr: errBoom}
	svc := NewMediaService(unreachable, newMemStore(), nil, 0, t.TempDir())
	if _, err := svc.Download(context.Background(), req); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if unreachable.calls != 0 {
		t.Fatal("download attempted for unreachable URL")
	}

	svc = NewMediaService(&fakeDownloader{dlErr: errBoom}, newMemStore(), nil, 0, t.TempDir())
	if _, err := svc.Download(context.Background(), req); !errors.Is(err, core.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}
