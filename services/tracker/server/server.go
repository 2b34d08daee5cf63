package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ordertrack-backend/services/tracker"
	"ordertrack-backend/services/tracker/watch"

	"github.com/gorilla/websocket"
)

// Server exposes the page-snapshot ingest socket plus the small JSON
// control surface (settings, employees, backfill, status) used by the
// settings UI and the CLI.
type Server struct {
	service  *tracker.Service
	debounce *watch.Debouncer
	upgrader websocket.Upgrader
}

func New(service *tracker.Service, debounce *watch.Debouncer) *Server {
	return &Server{
		service:  service,
		debounce: debounce,
		upgrader: websocket.Upgrader{
			// the companion connects from the exchange's origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws/page", s.handlePageSocket)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("GET /api/employees", s.handleEmployees)
	mux.HandleFunc("POST /api/backfill", s.handleBackfill)
	mux.HandleFunc("GET /api/status", s.handleStatus)
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJson(w, status, map[string]string{"error": message})
}

func (s *Server) handlePageSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade page socket", "err", err)
		return
	}
	defer conn.Close()

	session := newSession(conn)
	s.service.SetPresenter(session)
	defer s.service.ClearPresenter()

	slog.Info("page session connected", "remote", r.RemoteAddr)
	go s.service.CheckBackend(r.Context())

	for {
		var msg pageMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			slog.Info("page session disconnected", "err", err)
			return
		}

		switch msg.Type {
		case "snapshot":
			s.debounce.Offer(watch.Snapshot{
				HTML:       msg.Html,
				ReceivedAt: time.Now(),
			})
		default:
			slog.Warn("unknown page message", "type", msg.Type)
		}
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, s.service.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings tracker.Settings
	err := json.NewDecoder(r.Body).Decode(&settings)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed settings body")
		return
	}

	err = s.service.UpdateSettings(r.Context(), settings)
	if err != nil {
		slog.Warn("failed to save settings", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJson(w, http.StatusOK, s.service.Settings())
}

func (s *Server) handleEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := s.service.Employees(r.Context())
	if err != nil {
		slog.Warn("failed to fetch employees", "err", err)
		writeError(w, http.StatusBadGateway, "could not reach the accounting backend")
		return
	}
	writeJson(w, http.StatusOK, employees)
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Backfill(r.Context())
	switch {
	case errors.Is(err, tracker.ErrNoSnapshot):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tracker.ErrNoCandidates):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJson(w, http.StatusOK, result)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, s.service.Status())
}
