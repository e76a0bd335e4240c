package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
	"github.com/lucasnoah/scriptcheck/internal/analytics"
	"github.com/lucasnoah/scriptcheck/internal/db"
	"github.com/lucasnoah/scriptcheck/internal/executor"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// analyzeRequest is the body of /api/analyze and /api/validate.
type analyzeRequest struct {
	Output string `json:"output"`
	// ExecutionTime null means the executor timed out; absent means 0s.
	ExecutionTime analysis.ReportedTime `json:"execution_time"`
	TimedOut      bool                  `json:"timed_out"`
}

// executeRequest is the body of /api/execute.
type executeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Validate bool   `json:"validate"`
}

// RunView is the JSON shape of a stored run.
type RunView struct {
	ID            string                 `json:"id"`
	Source        string                 `json:"source"`
	Language      string                 `json:"language"`
	Success       bool                   `json:"success"`
	TimedOut      bool                   `json:"timed_out"`
	ExecutionTime *float64               `json:"execution_time"`
	ErrorCount    int                    `json:"error_count"`
	Summary       string                 `json:"summary"`
	CreatedAt     string                 `json:"created_at"`
	Output        string                 `json:"output,omitempty"`
	Errors        []analysis.ErrorRecord `json:"errors,omitempty"`
}

func runView(r db.Run, full bool) RunView {
	v := RunView{
		ID:            r.ID,
		Source:        r.Source,
		Language:      r.Language,
		Success:       r.Success,
		TimedOut:      r.TimedOut,
		ExecutionTime: r.ExecutionTime,
		ErrorCount:    r.ErrorCount,
		Summary:       r.Summary,
		CreatedAt:     r.CreatedAt,
	}
	if full {
		v.Output = r.Output
		v.Errors = r.Errors
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) analyzeBody(w http.ResponseWriter, r *http.Request) (analysis.Outcome, bool) {
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return analysis.Outcome{}, false
	}
	o := s.analyzer.Analyze(req.Output, req.ExecutionTime.Resolve(req.TimedOut))
	s.record(o)
	return o, true
}

func (s *Server) record(o analysis.Outcome) {
	if s.db == nil {
		return
	}
	if _, err := s.db.SaveRun("serve", o); err != nil {
		s.logger.Warnf("record outcome: %v", err)
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	o, ok := s.analyzeBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	o, ok := s.analyzeBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, o.Validation())
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "no script executor configured")
		return
	}
	var req executeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	o, err := s.runner.Run(r.Context(), executor.Script{Code: req.Code, Language: req.Language})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, executor.ErrRejected) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	if req.Validate {
		writeJSON(w, http.StatusOK, o.Validation())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		s.logger.Errorf("list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView(run, false))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	id := r.PathValue("id")
	run, err := s.db.GetRun(id)
	if err != nil {
		s.logger.Errorf("get run %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, runView(*run, true))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	since, err := analytics.NormalizeSince(r.URL.Query().Get("since"), time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := analytics.Summarize(s.db, since)
	if err != nil {
		s.logger.Errorf("summarize: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
