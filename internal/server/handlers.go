package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"duckstack/internal/domain"
	"duckstack/internal/render"
)

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type dashboardSummary struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Metrics     int    `json:"metrics"`
	Charts      int    `json:"charts"`
	GeneratedAt string `json:"generated_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var notFound *domain.NotFoundError
	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestIDFromContext(r.Context()))
	}
	writeJSON(w, status, errorBody{Code: status, Message: err.Error()})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

// summaries reads every dashboard in the output directory.
func (s *Server) summaries() ([]dashboardSummary, error) {
	slugs, err := render.List(s.opts.Dir)
	if err != nil {
		return nil, err
	}
	out := make([]dashboardSummary, 0, len(slugs))
	for _, slug := range slugs {
		d, err := render.Read(s.opts.Dir, slug)
		if err != nil {
			return nil, err
		}
		out = append(out, dashboardSummary{
			Slug:        slug,
			Name:        d.Config.Name,
			Metrics:     len(d.Config.Metrics),
			Charts:      len(d.Config.Charts),
			GeneratedAt: d.GeneratedAt,
		})
	}
	return out, nil
}

func (s *Server) listDashboards(w http.ResponseWriter, r *http.Request) {
	list, err := s.summaries()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dashboards": list})
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := render.Read(s.opts.Dir, chi.URLParam(r, "slug"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
