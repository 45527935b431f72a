package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gatewatch/promptbench/internal/run"
	"github.com/gatewatch/promptbench/internal/store"
)

// Status is the snapshot served from /api/v1/promptbench/status.
type Status struct {
	RunID               string `json:"run_id"`
	State               string `json:"state"`
	RequestsParsed      int    `json:"requests_parsed"`
	ResponsesParsed     int    `json:"responses_parsed"`
	ResponsesCorrelated int    `json:"responses_correlated"`
	UnmatchedResponses  int    `json:"unmatched_responses"`
	UnknownRequests     int    `json:"unknown_requests"`
}

type Server struct {
	router *chi.Mux
	srv    *http.Server
	fs     *store.FS

	mu     sync.RWMutex
	status Status
}

func NewServer(port int, fs *store.FS) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		},
		fs:     fs,
		status: Status{State: "idle"},
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/promptbench/status", s.getStatus)
	router.Get("/api/v1/promptbench/report", s.getReport)

	return s
}

// SetStatus replaces the served status snapshot.
func (s *Server) SetStatus(runID, state string, counters run.Counters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{
		RunID:               runID,
		State:               state,
		RequestsParsed:      counters.RequestsParsed,
		ResponsesParsed:     counters.ResponsesParsed,
		ResponsesCorrelated: counters.ResponsesCorrelated,
		UnmatchedResponses:  counters.UnmatchedResponses,
		UnknownRequests:     counters.UnknownRequests,
	}
}

func (s *Server) Start() error {
	slog.Info("API server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, status)
}

// getReport serves the benchmark analysis persisted by the last run.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.fs.LoadAnalysis()
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no analysis available; run the parser first",
		})
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
