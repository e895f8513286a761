package server

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"

	"github.com/ca-srg/tripintel/internal/metrics"
	"github.com/ca-srg/tripintel/internal/planner"
	"github.com/ca-srg/tripintel/internal/render"
	"github.com/ca-srg/tripintel/internal/types"
	"github.com/ca-srg/tripintel/internal/view"
)

const (
	maxRequestBody    = 1 << 20
	msgInvalidRequest = "Invalid request body."
)

// routes configures HTTP routes
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		s.logger.Printf("Warning: failed to setup static files: %v", err)
	} else {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	mux.HandleFunc("POST /api/plan-trip", s.handlePlanTrip)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /report", s.handleReport)

	return mux
}

// handlePlanTrip relays the upstream generateContent JSON unchanged
func (s *Server) handlePlanTrip(w http.ResponseWriter, r *http.Request) {
	var req types.TripRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	raw, err := s.planner.Plan(r.Context(), req)
	if err != nil {
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			s.logger.Printf("[%s] plan-trip failed: %v", RequestID(r.Context()), err)
		}
		s.writeError(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		s.logger.Printf("Failed to write response: %v", err)
	}
}

// classify maps a planner error to the status and message sent to callers.
// Upstream detail never leaves the server.
func classify(err error) (int, string) {
	var validationErr *planner.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Message
	}
	var configErr *planner.ConfigurationError
	if errors.As(err, &configErr) {
		return http.StatusInternalServerError, configErr.Message
	}
	return http.StatusInternalServerError, planner.MsgUpstream
}

type healthResponse struct {
	Status string                    `json:"status"`
	Plans  map[metrics.Outcome]int64 `json:"plans"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Plans: metrics.GetStats()})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, view.Build(view.State{Phase: view.PhaseIdle}))
}

// handleReport is the form submit path: plan, render and show the result
// without any client-side script.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	req := types.TripRequest{
		Destination: r.PostFormValue("destination"),
		Origin:      r.PostFormValue("origin"),
		Experience:  r.PostFormValue("experience"),
	}.Normalized()

	state := view.State{Phase: view.PhaseInvalid, Request: req}
	if req.Destination != "" {
		state = s.planPage(r, state)
	}

	s.renderPage(w, view.Build(state))
}

func (s *Server) planPage(r *http.Request, state view.State) view.State {
	raw, err := s.planner.Plan(r.Context(), state.Request)
	if err != nil {
		s.logger.Printf("[%s] report failed: %v", RequestID(r.Context()), err)
		_, msg := classify(err)
		state.Phase = view.PhaseFailed
		state.Err = errors.New(msg)
		return state
	}

	report, err := s.renderer.Render(raw)
	switch {
	case errors.Is(err, render.ErrNoContent):
		state.Phase = view.PhaseNoContent
	case err != nil:
		s.logger.Printf("[%s] render failed: %v", RequestID(r.Context()), err)
		state.Phase = view.PhaseFailed
		state.Err = err
	default:
		state.Phase = view.PhaseReport
		state.Report = report
	}
	return state
}

func (s *Server) renderPage(w http.ResponseWriter, page view.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.Render(w, "index.html", page); err != nil {
		s.logger.Printf("Failed to render page: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, types.ErrorBody{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("Failed to encode JSON: %v", err)
	}
}
