package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"multitool/internal/artifact"
	"multitool/internal/core"
	"multitool/internal/imaging"
	"multitool/internal/log"
)

const msgUploadInvalid = imaging.ErrUnsupported

// uploadError answers a rejected upload with the upload endpoints' JSON
// error shape.
func uploadError(w http.ResponseWriter, err error) {
	msg := msgUploadInvalid
	if errors.Is(err, errUploadTooLarge) {
		msg = "ファイルサイズが大きすぎます"
	}
	JSONError(http.StatusBadRequest, msg).Write(w)
}

// validArtifact reports whether name is safe and still stored.
func (s *Server) validArtifact(ctx context.Context, exists func(context.Context, string) (bool, error), name string) bool {
	if artifact.ValidName(name) != nil {
		return false
	}
	ok, err := exists(ctx, name)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Artifact lookup failed",
			log.FieldArtifact, name,
			log.FieldError, err)
		return false
	}
	return ok
}

func (s *Server) handleCaption(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	image, err := ReadUpload(w, r, "file", s.opts.UploadMaxBytes)
	if err != nil {
		uploadError(w, err)
		return
	}

	res, err := s.deps.Caption.Caption(ctx, image)
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		uploadError(w, err)
		return
	case errors.Is(err, core.ErrExternalService) && res.ImageName != "":
		log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureImageCaption), "caption", err)
		s.render(w, r, http.StatusOK, "caption_result.html", "分析結果", res,
			Flash{Level: FlashDanger, Message: "画像の分析に失敗しました"})
		return
	case err != nil:
		log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureImageCaption), "caption", err)
		s.renderError(w, r, http.StatusInternalServerError, "画像の保存に失敗しました")
		return
	}
	s.render(w, r, http.StatusOK, "caption_result.html", "分析結果", res)
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const back = "/ai_voice_synthesis/"
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, back, FlashDanger, "リクエストの形式が正しくありません")
		return
	}

	name, err := s.deps.Speech.Synthesize(ctx, core.SpeechRequest{
		Text:  r.PostForm.Get("text"),
		Voice: core.VoiceGender(r.PostForm.Get("voice_gender")),
	})
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		redirectWithFlash(w, r, back, FlashWarning, inputMessage(err))
		return
	case err != nil:
		log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureSpeech), "synthesize", err)
		redirectWithFlash(w, r, back, FlashDanger, "音声の生成に失敗しました")
		return
	}
	http.Redirect(w, r, back+"result/"+url.PathEscape(name), http.StatusSeeOther)
}

func (s *Server) handleSpeechResult(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if !s.validArtifact(r.Context(), s.deps.Speech.Exists, name) {
		redirectWithFlash(w, r, "/ai_voice_synthesis/", FlashWarning, msgFileMissing)
		return
	}
	s.render(w, r, http.StatusOK, "speech_result.html", "音声合成結果", struct{ Filename string }{name})
}

// handleSpeechDownload returns the download URL as JSON.
func (s *Server) handleSpeechDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if !s.validArtifact(r.Context(), s.deps.Speech.Exists, name) {
		redirectWithFlash(w, r, "/ai_voice_synthesis/", FlashWarning, msgFileMissing)
		return
	}
	NewResponse().JSON(map[string]string{
		"download_url": artifactURL(core.FeatureSpeech, name),
	}).Write(w)
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const back = "/ai_remove_background/"
	image, err := ReadUpload(w, r, "file", s.opts.UploadMaxBytes)
	if err != nil {
		uploadError(w, err)
		return
	}

	res, err := s.deps.Background.Remove(ctx, image)
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		uploadError(w, err)
		return
	case err != nil:
		log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureBackgroundRemoval), "remove", err)
		redirectWithFlash(w, r, back, FlashDanger, "背景除去に失敗しました")
		return
	}

	q := url.Values{}
	q.Set("original_filename", res.Original)
	q.Set("result_filename", res.Result)
	http.Redirect(w, r, back+"result?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) handleBackgroundResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	original := r.URL.Query().Get("original_filename")
	result := r.URL.Query().Get("result_filename")
	if !s.validArtifact(ctx, s.deps.Background.Exists, original) || !s.validArtifact(ctx, s.deps.Background.Exists, result) {
		redirectWithFlash(w, r, "/ai_remove_background/", FlashWarning, msgFileMissing)
		return
	}
	s.render(w, r, http.StatusOK, "background_result.html", "背景除去結果", struct{ Original, Result string }{original, result})
}

func (s *Server) handleBackgroundDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if !s.validArtifact(r.Context(), s.deps.Background.Exists, name) {
		redirectWithFlash(w, r, "/ai_remove_background/", FlashWarning, msgFileMissing)
		return
	}
	s.streamArtifact(w, r, core.FeatureBackgroundRemoval, name, name)
}

// handleMedia clears previous downloads, then fetches the requested URL.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	const back = "/youtube_to_mpeg/"
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, back, FlashDanger, "リクエストの形式が正しくありません")
		return
	}

	if err := s.deps.Media.Reset(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Clearing previous downloads failed",
			log.FieldFeature, core.FeatureMediaDownload,
			log.FieldError, err)
	}

	name, err := s.deps.Media.Download(ctx, core.MediaRequest{
		URL:    r.PostForm.Get("text"),
		Format: core.MediaFormat(r.PostForm.Get("format")),
	})
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		redirectWithFlash(w, r, back, FlashWarning, inputMessage(err))
		return
	case err != nil:
		log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureMediaDownload), "download", err)
		redirectWithFlash(w, r, back, FlashDanger, "ダウンロードに失敗しました")
		return
	}
	http.Redirect(w, r, back+"result/"+url.PathEscape(name), http.StatusSeeOther)
}

func (s *Server) handleMediaResult(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if !s.validArtifact(r.Context(), s.deps.Media.Exists, name) {
		redirectWithFlash(w, r, "/youtube_to_mpeg/", FlashWarning, msgFileMissing)
		return
	}
	s.render(w, r, http.StatusOK, "media_result.html", "ダウンロード結果", struct{ Filename string }{name})
}
