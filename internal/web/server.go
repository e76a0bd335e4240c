// Package web serves the JSON API over analysed runs and recorded history.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
	"github.com/lucasnoah/scriptcheck/internal/db"
	"github.com/lucasnoah/scriptcheck/internal/executor"
	"github.com/lucasnoah/scriptcheck/internal/logger"
)

const maxBodyBytes = 8 << 20

// Server is the JSON API server.
type Server struct {
	analyzer *analysis.Analyzer
	runner   *executor.Runner
	db       *db.DB
	logger   logger.Logger
	port     int
}

// Options configures a Server. Every field is optional: without a DB the
// history endpoints answer 503, without a Runner so does /api/execute.
type Options struct {
	Analyzer *analysis.Analyzer
	Runner   *executor.Runner
	DB       *db.DB
	Logger   logger.Logger
	Port     int
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	s := &Server{
		analyzer: opts.Analyzer,
		runner:   opts.Runner,
		db:       opts.DB,
		logger:   opts.Logger,
		port:     opts.Port,
	}
	if s.analyzer == nil {
		s.analyzer = analysis.NewAnalyzer()
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/validate", s.handleValidate)
	mux.HandleFunc("POST /api/execute", s.handleExecute)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	return s.logRequests(mux)
}

// Start listens on the configured port until ctx is done, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Infof("scriptcheck API: http://localhost%s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debugf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
