package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"multitool/internal/artifact"
	"multitool/internal/core"
	"multitool/internal/log"
)

const (
	msgWrongPassword = "パスワードが正しくありません"
	msgNotFound      = "該当するデータが見つかりませんでした。"
	msgStorage       = "データベースの読み込みに失敗しました"
	msgFileMissing   = "ファイルが見つかりません"
)

// featureRoute describes how one feature's history page is shown.
type featureRoute struct {
	feature          core.Feature
	prefix           string
	title            string
	inputLabel       string
	outputLabel      string
	inputIsArtifact  bool
	outputIsArtifact bool
}

var featureRoutes = []featureRoute{
	{core.FeatureImageCaption, "/ai_image_analysis/", "AI画像分析", "画像", "キャプション", true, false},
	{core.FeatureSpeech, "/ai_voice_synthesis/", "AI音声合成", "テキスト", "音声ファイル", false, true},
	{core.FeatureBackgroundRemoval, "/ai_remove_background/", "AI背景除去", "元画像", "背景除去後", true, true},
	{core.FeatureMediaDownload, "/youtube_to_mpeg/", "動画ダウンロード", "URL", "ファイル", false, true},
	{core.FeatureArchive, "/bakusai_db/", "爆サイDB", "検索ワード", "", false, false},
	{core.FeatureBudget, "/kakei_db/", "家計簿DB", "集計条件", "", false, false},
}

// inputMessage strips the sentinel prefix from validation errors so the
// user sees only the detail.
func inputMessage(err error) string {
	for _, sentinel := range []error{core.ErrInvalidInput, core.ErrMissingParameter} {
		if errors.Is(err, sentinel) {
			if _, detail, ok := strings.Cut(err.Error(), sentinel.Error()+": "); ok {
				return detail
			}
			return err.Error()
		}
	}
	return err.Error()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct{ BackgroundEnabled bool }{BackgroundEnabled: s.deps.Background != nil}
	s.render(w, r, http.StatusOK, "index.html", "", data)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks templates and pings every storage dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for name, p := range s.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"status":         "ok",
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	traceMetrics := s.tracer.GetMetrics()
	uptime := time.Since(s.started)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_request_duration_avg_ms Average request duration\n")
	fmt.Fprintf(w, "# TYPE http_request_duration_avg_ms gauge\n")
	fmt.Fprintf(w, "http_request_duration_avg_ms %d\n\n", traceMetrics.AverageResponseTime.Milliseconds())

	if s.deps.CacheStats != nil {
		stats := s.deps.CacheStats()
		fmt.Fprintf(w, "# HELP cache_hits_total Total category cache hits\n")
		fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
		fmt.Fprintf(w, "cache_hits_total %d\n\n", stats.Hits)

		fmt.Fprintf(w, "# HELP cache_misses_total Total category cache misses\n")
		fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
		fmt.Fprintf(w, "cache_misses_total %d\n\n", stats.Misses)

		fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
		fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
		fmt.Fprintf(w, "cache_entries{type=\"categories\"} %d\n\n", stats.Size)
	}

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

// handleArtifact streams a stored file. The content type is sniffed from
// the first bytes since HEIF and WAV have no reliable extension mapping.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	feature := core.Feature(r.PathValue("feature"))
	name := r.PathValue("name")
	if !feature.Valid() || artifact.ValidName(name) != nil || s.deps.Artifacts == nil {
		http.NotFound(w, r)
		return
	}
	s.streamArtifact(w, r, feature, name, "")
}

// streamArtifact copies an artifact to the response. A non-empty
// attachment name sets Content-Disposition.
func (s *Server) streamArtifact(w http.ResponseWriter, r *http.Request, feature core.Feature, name, attachment string) {
	ctx := r.Context()
	rc, err := s.deps.Artifacts.Open(ctx, feature, name)
	if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrInvalidInput) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Artifact open failed",
			log.FieldFeature, feature,
			log.FieldArtifact, name,
			log.FieldError, err)
		http.Error(w, "artifact unavailable", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	head := make([]byte, 3072)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		http.Error(w, "artifact unavailable", http.StatusInternalServerError)
		return
	}
	head = head[:n]

	w.Header().Set("Content-Type", mimetype.Detect(head).String())
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if attachment != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(head); err != nil {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Artifact stream interrupted",
			log.FieldArtifact, name,
			log.FieldError, err)
	}
}

func (s *Server) handleAdminLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "admin_login.html", "管理者ログイン",
		struct{ Action string }{Action: r.URL.Path})
}

// handleAdminLogin compares the shared admin password and redirects into
// target on success.
func (s *Server) handleAdminLogin(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			redirectWithFlash(w, r, r.URL.Path, FlashDanger, "リクエストの形式が正しくありません")
			return
		}
		if !secretMatches(r.PostForm.Get("password"), s.opts.AdminPassword) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Admin login failed",
				log.FieldComponent, log.ComponentSecurity,
				log.FieldPath, r.URL.Path)
			redirectWithFlash(w, r, r.URL.Path, FlashDanger, msgWrongPassword)
			return
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

func secretMatches(given, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}

func (s *Server) handleHistoryPrompt(fr featureRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, "password_prompt.html", fr.title+" 履歴",
			struct{ Action, Back string }{Action: fr.prefix + "history", Back: fr.prefix})
	}
}

// historyView is the data of history.html.
type historyView struct {
	Records          []core.HistoryRecord
	Feature          core.Feature
	InputLabel       string
	OutputLabel      string
	InputIsArtifact  bool
	OutputIsArtifact bool
	Back             string
}

func (s *Server) handleHistory(fr featureRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := r.ParseForm(); err != nil {
			redirectWithFlash(w, r, fr.prefix+"history", FlashDanger, "リクエストの形式が正しくありません")
			return
		}

		records, err := s.deps.History.Log(fr.feature).ListAll(ctx, r.PostForm.Get("password"))
		switch {
		case errors.Is(err, core.ErrUnauthorized):
			log.FromContext(ctx).WarnContext(ctx, "History access denied",
				log.FieldComponent, log.ComponentSecurity,
				log.FieldFeature, fr.feature)
			redirectWithFlash(w, r, fr.prefix+"history", FlashDanger, msgWrongPassword)
			return
		case err != nil:
			log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(fr.feature), log.OpList, err)
			redirectWithFlash(w, r, fr.prefix, FlashDanger, msgStorage)
			return
		}

		s.render(w, r, http.StatusOK, "history.html", fr.title+" 履歴", historyView{
			Records:          records,
			Feature:          fr.feature,
			InputLabel:       fr.inputLabel,
			OutputLabel:      fr.outputLabel,
			InputIsArtifact:  fr.inputIsArtifact,
			OutputIsArtifact: fr.outputIsArtifact,
			Back:             fr.prefix,
		})
	}
}
