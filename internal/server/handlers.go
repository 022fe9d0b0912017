package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KaramelBytes/trialdash/internal/analysis"
	"github.com/KaramelBytes/trialdash/internal/dashboard"
	"github.com/KaramelBytes/trialdash/internal/dataset"
	"github.com/KaramelBytes/trialdash/internal/export"
	"github.com/KaramelBytes/trialdash/internal/filter"
)

// errorResponse is the JSON body of every failed API call.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// writeError maps pipeline errors to status codes.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ioErr  *dataset.IOError
		fmtErr *dataset.FormatError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dashboard.ErrInvalidQuery):
		status = http.StatusBadRequest
	case errors.As(err, &ioErr), errors.As(err, &fmtErr):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).
			WithField("request_id", requestIDFromContext(r.Context())).
			Error("Request failed")
	}
	writeJSON(w, status, errorResponse{err.Error()})
}

// query parses the request parameters against the default selection.
func (s *server) query(r *http.Request) (dashboard.Query, error) {
	def, err := s.pipeline.DefaultSelection(r.Context())
	if err != nil {
		return dashboard.Query{}, err
	}
	return parseQuery(r.URL.Query(), def)
}

// snapshot runs the pipeline for the request, writing any error.
func (s *server) snapshot(w http.ResponseWriter, r *http.Request) (*dashboard.Snapshot, bool) {
	q, err := s.query(r)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}

	start := time.Now()
	snap, err := s.pipeline.Run(r.Context(), q)
	rows := 0
	if snap != nil {
		rows = snap.KPI.Trials
	}
	recordPipelineRun(time.Since(start), rows, err)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return snap, true
}

// handleIndex serves the embedded dashboard page.
func (s *server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tbl, err := s.pipeline.Table(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rows": tbl.Len()})
}

type optionsResponse struct {
	Choices  filter.Choices   `json:"choices"`
	Defaults analysis.Filters `json:"defaults"`
	TopN     topNBounds       `json:"top_n"`
	Charts   []string         `json:"charts"`
	Scales   []string         `json:"scales"`
}

type topNBounds struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
}

// handleOptions lists the filter values and the initial control state.
func (s *server) handleOptions(w http.ResponseWriter, r *http.Request) {
	choices, err := s.pipeline.Choices(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	def, err := s.pipeline.DefaultSelection(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, optionsResponse{
		Choices:  choices,
		Defaults: analysis.FiltersOf(def),
		TopN:     topNBounds{Min: filter.MinTopN, Max: filter.MaxTopN, Default: def.TopN},
		Charts:   []string{dashboard.ChartLine, dashboard.ChartBar},
		Scales:   []string{dashboard.ScaleLinear, dashboard.ScaleLog},
	})
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, snap)
	}
}

func (s *server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, snap.KPI)
	}
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]any{"counts": snap.Status})
	}
}

func (s *server) handlePhases(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]any{"counts": snap.Phases})
	}
}

func (s *server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"chart":   snap.Chart,
			"months":  snap.Monthly.Months,
			"unknown": snap.Monthly.Unknown,
		})
	}
}

func (s *server) handleCountries(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"top_n":     snap.Filters.TopN,
			"countries": snap.Countries,
		})
	}
}

func (s *server) handleEnrollment(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"scale":     snap.Scale,
			"histogram": snap.Enrollment,
		})
	}
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"columns": snap.Columns,
			"rows":    snap.Samples,
			"total":   snap.KPI.Trials,
		})
	}
}

// handleDownload streams the filtered rows as a CSV attachment.
func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	withMonth, err := parseBool(r.URL.Query(), paramStartMonth, s.cfg.IncludeStartMonth)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.pipeline.View(r.Context(), q.Selection)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := dataset.CSVBytes(export.Rows(v, export.Options{IncludeStartMonth: withMonth}))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.cfg.DownloadName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
