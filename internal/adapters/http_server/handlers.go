// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"phenohub/internal/app"
	"phenohub/internal/domain"
	"phenohub/internal/validate"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Handlers struct {
	Q          *app.QueryService
	R          *app.ReportService
	Agg        app.Recalculator
	AdminToken string
	// Ready reports whether the live store is in use.
	Ready func() bool
}

type problem struct {
	Type   string   `json:"type"`
	Title  string   `json:"title"`
	Status int      `json:"status"`
	Detail string   `json:"detail,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/readyz", h.ready)

	s.mux.Group(func(r chi.Router) {
		r.Use(AgeGate)
		r.Get("/v1/providers", h.listProviders)
		r.Get("/v1/providers/{id}", h.getProvider)
		r.Get("/v1/providers/{id}/reports", h.listProviderReports)
		r.Get("/v1/cultivars", h.listCultivars)
		r.Get("/v1/cultivars/{id}", h.getCultivar)
		r.Post("/v1/reports", h.submitReport)
	})

	s.mux.Route("/v1/admin", func(r chi.Router) {
		r.Use(AdminOnly(h.AdminToken))
		r.Get("/reports", h.moderationQueue)
		r.Patch("/reports/{id}", h.moderateReport)
		r.Delete("/reports", h.deleteReports)
		r.Post("/metrics/recalc", h.recalc)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string, errs ...string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Errors: errs}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors to problem responses. Anything unknown is a 500
// and gets logged with the request route.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeProblem(w, http.StatusServiceUnavailable, "Store Unavailable", "the catalog database is not available")
	case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrEmptyFilter):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Request", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Str("method", r.Method).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
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
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable writes a GET response with a weak ETag, answering 304 when
// the client already holds this version.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func writeValue(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	writeJSON(w, status, body)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return 0, false
	}
	return id, true
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return defaultLimit, true
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > maxLimit {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
		return 0, false
	}
	return l, true
}

func (h *Handlers) ready(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil && !h.Ready() {
		writeProblem(w, http.StatusServiceUnavailable, "Degraded", "serving sample catalog; database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

/********** catalog **********/

func (h *Handlers) listProviders(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	out, err := h.Q.ListProviders(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) getProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.Q.GetProvider(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) listProviderReports(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	out, err := h.Q.ListProviderReports(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) listCultivars(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	out, err := h.Q.ListCultivars(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) getCultivar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.Q.GetCultivar(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

/********** reports **********/

func (h *Handlers) submitReport(w http.ResponseWriter, r *http.Request) {
	in := validate.Decode[app.ReportInput](r.Body)
	if !in.Valid() {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Report", "", in.Problems()...)
		return
	}
	out, err := h.R.Submit(r.Context(), in.Value())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusCreated, out)
}

/********** admin **********/

func (h *Handlers) moderationQueue(w http.ResponseWriter, r *http.Request) {
	st := domain.StatusPending
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, err := domain.ParseStatus(s)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid status", "status must be PENDING, PUBLISHED or REJECTED")
			return
		}
		st = parsed
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	out, err := h.Q.ModerationQueue(r.Context(), st, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, out)
}

func (h *Handlers) moderateReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in := validate.Decode[app.StatusInput](r.Body)
	if !in.Valid() {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Status", "", in.Problems()...)
		return
	}
	st, err := domain.ParseStatus(in.Value().Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.R.Moderate(r.Context(), id, st); err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, map[string]any{"id": id, "status": st})
}

func (h *Handlers) deleteReports(w http.ResponseWriter, r *http.Request) {
	in := validate.Decode[app.DeleteReportsInput](r.Body)
	if !in.Valid() {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Request", "", in.Problems()...)
		return
	}
	res, err := h.R.DeleteReports(r.Context(), in.Value().IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, res)
}

func (h *Handlers) recalc(w http.ResponseWriter, r *http.Request) {
	if err := h.Agg.RecalcAll(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
