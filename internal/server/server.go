package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"blockcheck/internal/metrics"
	"blockcheck/internal/models"
	"blockcheck/internal/monitor"
	"blockcheck/internal/storage"
)

// Server wraps HTTP serving of the reachability API.
type Server struct {
	httpServer   *http.Server
	monitor      *monitor.Monitor
	store        storage.RunStore
	historyLimit int
}

// catalogPayload is served by /api/catalog and pushed over /api/ws.
type catalogPayload struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	State       models.RunState           `json:"state"`
	Metrics     models.Metrics            `json:"metrics"`
	Categories  []models.Category         `json:"categories"`
	Breakdown   []metrics.CategoryMetrics `json:"breakdown"`
}

// New creates a configured HTTP server for the monitor.
func New(addr string, mon *monitor.Monitor, store storage.RunStore, historyLimit int) *Server {
	if historyLimit <= 0 {
		historyLimit = 200
	}
	mux := http.NewServeMux()
	s := &Server{
		httpServer:   &http.Server{Addr: addr, Handler: mux},
		monitor:      mon,
		store:        store,
		historyLimit: historyLimit,
	}
	s.registerRoutes(mux)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/history/latest", s.handleLatest)
	mux.HandleFunc("GET /api/ws", s.handleWS)
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.buildPayload())
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	snap := s.monitor.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   snap.State,
		"metrics": snap.Metrics,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, _ *http.Request) {
	handle := s.monitor.StartRun()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":         handle.ID,
		"generation": handle.Generation,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Reset())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []models.RunRecord{})
		return
	}
	history, err := s.store.HistoryN(parseLimit(r, s.historyLimit))
	if err != nil {
		log.Printf("history: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	if history == nil {
		history = []models.RunRecord{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs recorded"})
		return
	}
	latest, ok, err := s.store.Latest()
	if err != nil {
		log.Printf("latest run: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs recorded"})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) buildPayload() catalogPayload {
	snap := s.monitor.Snapshot()
	return catalogPayload{
		GeneratedAt: time.Now().UTC(),
		State:       snap.State,
		Metrics:     snap.Metrics,
		Categories:  snap.Categories,
		Breakdown:   metrics.ByCategory(snap.Categories),
	}
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
