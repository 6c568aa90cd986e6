package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"musicroom-core/internal/media"
)

func (s *Server) handleMediaSearch(w http.ResponseWriter, r *http.Request) {
	if s.media == nil {
		writeError(w, http.StatusServiceUnavailable, "media search is not configured")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("query"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(q) > 200 {
		writeError(w, http.StatusBadRequest, "query is too long")
		return
	}

	limit := media.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = media.ClampLimit(v)
	}

	items, err := s.media.Search(r.Context(), q, limit)
	if errors.Is(err, media.ErrUpstream) {
		s.log.Warn("media search", "error", err)
		writeError(w, http.StatusBadGateway, "failed to query provider")
		return
	}
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": nonNil(items),
	})
}
