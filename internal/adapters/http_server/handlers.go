// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_scraper/internal/domain"
)

// RecordQueries is the read side the handlers need.
type RecordQueries interface {
	Latest(ctx context.Context, site, key string) (domain.RecordView, error)
	ListVersions(ctx context.Context, site, key string, limit int) (domain.RecordsPage, error)
}

type Handlers struct{ Q RecordQueries }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const (
	defaultLimit = 20
	maxLimit     = 200
)

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/sites/{site}/records/latest", h.latest)
	s.mux.Get("/v1/sites/{site}/records", h.listVersions)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "could not encode response")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeQueryErr(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	log.Error().Err(err).Msg("record query failed")
	writeProblem(w, http.StatusInternalServerError, "Internal Error", "record lookup failed")
}

func dedupKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		writeProblem(w, http.StatusBadRequest, "Missing key", "key query parameter is required (source URL or hotel name)")
		return "", false
	}
	return key, true
}

func (h *Handlers) latest(w http.ResponseWriter, r *http.Request) {
	key, ok := dedupKey(w, r)
	if !ok {
		return
	}
	rv, err := h.Q.Latest(r.Context(), chi.URLParam(r, "site"), key)
	if err != nil {
		writeQueryErr(w, err)
		return
	}
	writeJSON(w, r, rv)
}

func (h *Handlers) listVersions(w http.ResponseWriter, r *http.Request) {
	key, ok := dedupKey(w, r)
	if !ok {
		return
	}

	limit := defaultLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > maxLimit {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	// Newest first
	page, err := h.Q.ListVersions(r.Context(), chi.URLParam(r, "site"), key, limit)
	if err != nil {
		writeQueryErr(w, err)
		return
	}
	writeJSON(w, r, page)
}
