package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"multitool/internal/cache"
	"multitool/internal/core"
	"multitool/internal/log"
	"multitool/internal/middleware/ratelimit"
	"multitool/internal/middleware/security"
	"multitool/internal/middleware/trace"
	"multitool/internal/services"
	appweb "multitool/web"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 60 * time.Second
	// generous: caption, speech and media requests wait on external calls
	writeTimeout = 5 * time.Minute
	idleTimeout  = 120 * time.Second

	defaultUploadMaxBytes = 20 << 20
	staticMaxAge          = 3600
)

// Pinger is a dependency that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services behind the routes. A nil Background
// disables the background removal routes.
type Dependencies struct {
	History    *services.HistoryService
	Caption    *services.CaptionService
	Speech     *services.SpeechService
	Background *services.BackgroundService
	Media      *services.MediaService
	Archive    *services.ArchiveService
	Budget     *services.BudgetService
	Artifacts  services.ArtifactStore

	// Checks are pinged by /readyz, keyed by name.
	Checks map[string]Pinger
	// CacheStats reports the category cache on /metrics. Optional.
	CacheStats func() cache.Stats
}

// Options configure the listener and request handling.
type Options struct {
	Addr               string
	UploadMaxBytes     int64
	RateLimitPerMinute int
	AdminPassword      string
	Location           *time.Location
	Logger             *log.Logger
}

// Server is the web front end of every tool.
type Server struct {
	http.Server
	templates *template.Template
	deps      Dependencies
	opts      Options
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options, deps Dependencies) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = defaultUploadMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		deps:     deps,
		opts:     opts,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(rlConfig),
		detector: security.NewDetector(),
		started:  time.Now(),
		now:      func() time.Time { return time.Now().In(opts.Location) },
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs(opts.Location)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpParse,
			log.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /artifacts/{feature}/{name}", s.handleArtifact)


	mux.HandleFunc("GET /admin-login", s.handleAdminLoginForm)
	mux.HandleFunc("POST /admin-login", s.handleAdminLogin("/bakusai_db/"))
	mux.HandleFunc("GET /admin-login2", s.handleAdminLoginForm)
	mux.HandleFunc("POST /admin-login2", s.handleAdminLogin("/kakei_db/"))

	for _, fr := range featureRoutes {
		if fr.feature == core.FeatureBackgroundRemoval && s.deps.Background == nil {
			continue
		}
		handle(mux, "GET "+fr.prefix+"history", log.ComponentHistory, security.NoStore(s.handleHistoryPrompt(fr)).ServeHTTP)
		handle(mux, "POST "+fr.prefix+"history", log.ComponentHistory, security.NoStore(s.handleHistory(fr)).ServeHTTP)
	}

	handle(mux, "GET /ai_image_analysis/{$}", log.ComponentCaption, s.page("caption_upload.html", "AI画像分析"))
	handle(mux, "POST /ai_image_analysis/{$}", log.ComponentCaption, s.handleCaption)

	handle(mux, "GET /ai_voice_synthesis/{$}", log.ComponentSpeech, s.page("speech_upload.html", "AI音声合成"))
	handle(mux, "POST /ai_voice_synthesis/{$}", log.ComponentSpeech, s.handleSpeech)
	handle(mux, "GET /ai_voice_synthesis/result/{filename}", log.ComponentSpeech, s.handleSpeechResult)
	handle(mux, "GET /ai_voice_synthesis/download/{filename}", log.ComponentSpeech, s.handleSpeechDownload)

	if s.deps.Background != nil {
		handle(mux, "GET /ai_remove_background/{$}", log.ComponentBackground, s.page("background_upload.html", "AI背景除去"))
		handle(mux, "POST /ai_remove_background/{$}", log.ComponentBackground, s.handleBackground)
		handle(mux, "GET /ai_remove_background/result", log.ComponentBackground, s.handleBackgroundResult)
		handle(mux, "GET /ai_remove_background/download/{filename}", log.ComponentBackground, s.handleBackgroundDownload)
	}

	handle(mux, "GET /youtube_to_mpeg/{$}", log.ComponentMedia, s.page("media_upload.html", "動画ダウンロード"))
	handle(mux, "POST /youtube_to_mpeg/{$}", log.ComponentMedia, s.handleMedia)
	handle(mux, "GET /youtube_to_mpeg/result/{filename}", log.ComponentMedia, s.handleMediaResult)

	handle(mux, "GET /bakusai_db/{$}", log.ComponentArchive, s.page("archive_search.html", "爆サイDB"))
	handle(mux, "POST /bakusai_db/{$}", log.ComponentArchive, s.handleArchiveSearch)
	handle(mux, "GET /bakusai_db/tab/{name}", log.ComponentArchive, s.handleArchiveTab)
	handle(mux, "GET /bakusai_db/detail/{name}/{id}", log.ComponentArchive, s.handleArchiveDetail)

	handle(mux, "GET /kakei_db/{$}", log.ComponentBudget, s.handleBudgetForm)
	handle(mux, "POST /kakei_db/{$}", log.ComponentBudget, s.handleBudgetReport)
	handle(mux, "GET /kakei_db/details", log.ComponentBudget, s.handleBudgetDetails)
	handle(mux, "GET /kakei_db/drilldown", log.ComponentBudget, s.handleBudgetDrilldown)
}

// handle registers h with its feature's component on the request logger.
func handle(mux *http.ServeMux, pattern, component string, h http.HandlerFunc) {
	mux.Handle(pattern, log.ComponentMiddleware(component)(h))
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Page is the data every template receives.
type Page struct {
	Title   string
	Flashes []Flash
	Data    any
}

// render executes a page template into a buffer so a failing template
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, extra ...Flash) {
	ctx := r.Context()
	if s.templates == nil {
		log.FromContext(ctx).ErrorContext(ctx, "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate)
		ErrorPage(http.StatusInternalServerError, "templates not loaded").Write(w)
		return
	}

	page := Page{Title: title, Flashes: append(popFlashes(w, r), extra...), Data: data}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, page); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Template execution failed",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err)
		ErrorPage(http.StatusInternalServerError, "テンプレートの表示に失敗しました").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "error.html", "エラー", message)
}

// page renders a static form page.
func (s *Server) page(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, name, title, nil)
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	s.renderError(w, r, http.StatusTooManyRequests, "リクエストが多すぎます。しばらくしてから再度お試しください。")
}
