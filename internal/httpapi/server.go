// Package httpapi exposes the workflow coordinator over HTTP: session
// lifecycle as JSON endpoints and the per-session event stream as SSE.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/caldermed/psurd/internal/ingest"
	"github.com/caldermed/psurd/internal/provider"
	"github.com/caldermed/psurd/internal/report"
	"github.com/caldermed/psurd/internal/workflow"
)

// Server serves the coordinator's external contract.
type Server struct {
	coord *workflow.Coordinator
	http  *http.Server
}

// NewServer wraps a coordinator.
func NewServer(coord *workflow.Coordinator) *Server {
	return &Server{coord: coord}
}

// Handler builds the route table. Exposed separately so tests can drive
// it through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", s.handleCreate)
	mux.HandleFunc("GET /api/sessions", s.handleList)
	mux.HandleFunc("POST /api/sessions/{id}/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/sessions/{id}/start", s.handleStart)
	mux.HandleFunc("POST /api/sessions/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /api/sessions/{id}/resume", s.handleResume)
	mux.HandleFunc("POST /api/sessions/{id}/ask", s.handleAsk)
	mux.HandleFunc("POST /api/sessions/{id}/override", s.handleOverride)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/sessions/{id}/state", s.handleState)
	mux.HandleFunc("GET /api/sessions/{id}/report", s.handleReport)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleEvents)

	return mux
}

// Start begins serving in a background goroutine and returns immediately.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}
	go s.http.ListenAndServe()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var meta workflow.Metadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sess, err := s.coord.CreateSession(meta)
	if err != nil {
		writeCoordError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session_id": sess.ID, "status": sess.Status})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.coord.Sessions()})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var facts ingest.Facts
	if err := json.NewDecoder(r.Body).Decode(&facts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	issues, err := s.coord.Ingest(r.Context(), r.PathValue("id"), facts)
	if err != nil {
		writeCoordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"issues":   issues,
		"blocking": ingest.HasBlocking(issues),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	override := r.URL.Query().Get("override") == "true"
	id := r.PathValue("id")

	if err := s.coord.Start(id, override); err != nil {
		if errors.Is(err, workflow.ErrBlockingIssues) {
			st, stateErr := s.coord.GetState(id)
			if stateErr == nil {
				writeJSON(w, http.StatusConflict, map[string]any{
					"error":  err.Error(),
					"issues": st.Session.Issues,
				})
				return
			}
		}
		writeCoordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": workflow.StatusRunning})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Pause(r.PathValue("id")); err != nil {
		writeCoordError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"pause_requested": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Resume(r.PathValue("id")); err != nil {
		writeCoordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resumed": true})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Agent    string `json:"agent"`
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Agent == "" || req.Question == "" {
		writeError(w, http.StatusUnprocessableEntity, "agent and question are required")
		return
	}
	answer, err := s.coord.Ask(r.Context(), r.PathValue("id"), req.Agent, req.Question)
	if err != nil {
		writeCoordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent": req.Agent, "answer": answer})
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Key == "" || req.Actor == "" {
		writeError(w, http.StatusUnprocessableEntity, "key and actor are required")
		return
	}
	if err := s.coord.Override(r.PathValue("id"), req.Key, req.Value, req.Actor); err != nil {
		writeCoordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": req.Key, "frozen": true})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Delete(r.PathValue("id")); err != nil {
		writeCoordError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.coord.GetState(r.PathValue("id"))
	if err != nil {
		writeCoordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleReport assembles the approved sections into a document: JSON by
// default, rendered Markdown with ?format=markdown.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	st, err := s.coord.GetState(r.PathValue("id"))
	if err != nil {
		writeCoordError(w, err)
		return
	}
	ex := report.Build(s.coord.Template(), st)

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(ex.Markdown(st.MasterContext)))
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var fromSeq uint64
	if from := r.URL.Query().Get("from"); from != "" {
		n, err := strconv.ParseUint(from, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from parameter")
			return
		}
		fromSeq = n
	}

	ch, cancel, err := s.coord.Subscribe(r.PathValue("id"), fromSeq)
	if err != nil {
		writeCoordError(w, err)
		return
	}
	defer cancel()

	sw := NewSSEWriter(w)
	sw.Init()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := sw.WriteEvent(ev); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeCoordError maps coordinator sentinel errors to HTTP statuses.
func writeCoordError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrInvalidState), errors.Is(err, workflow.ErrBlockingIssues):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrUnknownAgent):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, provider.ErrNoProviderAvailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
