package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"reqflow/internal/domain"
	"reqflow/internal/logging"
	"reqflow/internal/services"
	"reqflow/internal/workflow"
)

// Server exposes the workflow engine over a small JSON HTTP API.
type Server struct {
	engine      *workflow.Engine
	httpServer  *http.Server
	persistence *services.PersistenceManager
	tracker     *services.FeedbackTracker
}

// New creates a Server listening on addr.
func New(addr string, engine *workflow.Engine, persistence *services.PersistenceManager, tracker *services.FeedbackTracker) *Server {
	s := &Server{
		engine:      engine,
		persistence: persistence,
		tracker:     tracker,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /workflow", s.handleWorkflow)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handlePurge)
	mux.HandleFunc("GET /sessions/{id}/context", s.handleContext)
	mux.HandleFunc("GET /sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /sessions/{id}/feedback", s.handleFeedback)
	mux.HandleFunc("GET /sessions/{id}/test-suite", s.handleTestSuite)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	logging.Logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type workflowRequest struct {
	Action    string `json:"action"`
	Input     string `json:"input"`
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}

	result, err := s.engine.Execute(r.Context(), req.Action, req.Input, req.SessionID)
	if err != nil {
		writeError(w, req.SessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.persistence.ListSessions(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, source, err := s.persistence.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session, "source": source})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.persistence.Purge(r.Context(), id); err != nil {
		writeError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "purged": true})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sc, err := s.persistence.SessionContext(r.Context(), id)
	if err != nil {
		writeError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entries, source, err := s.persistence.History(r.Context(), id)
	if err != nil {
		writeError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"history":    entries,
		"source":     source,
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, err := s.tracker.Report(r.Context(), id)
	if err != nil {
		writeError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTestSuite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cases, _, err := s.persistence.TestCases(r.Context(), id)
	if err != nil {
		writeError(w, id, err)
		return
	}
	suite := domain.SuiteFromCases(id, cases)

	if r.URL.Query().Get("format") == "csv" {
		csvData, err := suite.ToCSV()
		if err != nil {
			writeError(w, id, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"_test_suite.csv"))
		_, _ = w.Write([]byte(csvData))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"test_suite": suite})
}

// writeError maps domain error kinds to HTTP statuses. The session_id rides
// along so callers can retry or inspect history.
func writeError(w http.ResponseWriter, sessionID string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrRequirementNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidReviewFormat),
		errors.Is(err, domain.ErrNoRequirements):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, domain.ErrSessionExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrCapabilityTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrCapabilityUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrMalformedResponse):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), SessionID: sessionID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.Warn("failed to encode response", "error", err)
	}
}
