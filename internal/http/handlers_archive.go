package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"multitool/internal/core"
	"multitool/internal/log"
	"multitool/internal/services"
)

const archiveBack = "/bakusai_db/"

// handleArchiveSearch lists every tab for an empty query, otherwise runs
// the two-token search.
func (s *Server) handleArchiveSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, archiveBack, FlashDanger, "リクエストの形式が正しくありません")
		return
	}
	raw := sanitizeInput(r.PostForm.Get("text"))

	if raw == "" {
		listing, err := s.deps.Archive.ListTabs(ctx)
		if err != nil {
			log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureArchive), log.OpList, err)
			redirectWithFlash(w, r, archiveBack, FlashDanger, msgStorage)
			return
		}
		s.render(w, r, http.StatusOK, "archive_tabs.html", "タブ一覧", listing)
		return
	}

	result, err := s.deps.Archive.Search(ctx, raw)
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		redirectWithFlash(w, r, archiveBack, FlashWarning, inputMessage(err))
		return
	case err != nil:
		log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureArchive), log.OpRead, err)
		redirectWithFlash(w, r, archiveBack, FlashDanger, msgStorage)
		return
	}
	if len(result.Records) == 0 {
		redirectWithFlash(w, r, archiveBack, FlashInfo, msgNotFound)
		return
	}
	s.render(w, r, http.StatusOK, "archive_results.html", "検索結果", result)
}

func (s *Server) handleArchiveTab(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := strings.TrimSpace(r.PathValue("name"))
	records, err := s.deps.Archive.Tab(ctx, name)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureArchive), log.OpList, err)
		redirectWithFlash(w, r, archiveBack, FlashDanger, msgStorage)
		return
	}
	s.render(w, r, http.StatusOK, "archive_results.html", "タブ: "+name,
		services.SearchResult{Tab: name, Records: records})
}

// handleArchiveDetail shows one record with its neighbours, or a 404 page
// when the record does not exist in that tab.
func (s *Server) handleArchiveDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tab := r.PathValue("name")
	rawID := r.PathValue("id")
	notFound := struct {
		Tab string
		ID  string
	}{tab, rawID}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		s.render(w, r, http.StatusNotFound, "archive_no_result.html", "該当なし", notFound)
		return
	}

	detail, err := s.deps.Archive.DetailWithContext(ctx, tab, id)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogFeatureError(ctx, string(core.FeatureArchive), log.OpRead, err)
		s.renderError(w, r, http.StatusInternalServerError, msgStorage)
		return
	}
	if !detail.Found {
		s.render(w, r, http.StatusNotFound, "archive_no_result.html", "該当なし", notFound)
		return
	}
	s.render(w, r, http.StatusOK, "archive_detail.html", "詳細", detail)
}
