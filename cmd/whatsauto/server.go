package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"whatsauto/internal/archive"
	"whatsauto/internal/creds"
	apperrors "whatsauto/internal/errors"
	"whatsauto/internal/events"
	"whatsauto/internal/metrics"
	"whatsauto/internal/middleware"
	"whatsauto/internal/models"
	"whatsauto/internal/session"
	"whatsauto/pkg/transport"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	cfg      *models.Config
	registry *session.Registry
	wire     transport.Transport
	store    creds.Store
	archive  *archive.Archive
	server   *http.Server
}

func NewServer(cfg *models.Config, registry *session.Registry, wire transport.Transport, store creds.Store, messageArchive *archive.Archive, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		cfg:      cfg,
		registry: registry,
		wire:     wire,
		store:    store,
		archive:  messageArchive,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", s.handleListSessions()).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleCreateSession()).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleGetSession()).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession()).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/send/text", s.handleSendText()).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/messages", s.handleListMessages()).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting admin server on port %d", s.cfg.Server.Port)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warnf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{
		"error": err.Error(),
		"code":  string(apperrors.GetCode(err)),
	})
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sessions": len(s.registry.List()),
		})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

func (s *Server) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		controllers := s.registry.All()
		infos := make([]models.SessionInfo, 0, len(controllers))
		for _, ctrl := range controllers {
			infos = append(infos, ctrl.Info())
		}
		s.writeJSON(w, http.StatusOK, infos)
	}
}

func (s *Server) handleCreateSession() http.HandlerFunc {
	type request struct {
		ID     string               `json:"id"`
		Config models.SessionConfig `json:"config"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "invalid JSON payload"))
			return
		}

		if err := startSession(r.Context(), models.SessionEntry{ID: req.ID, Config: req.Config}, s.cfg, s.wire, s.store, s.registry, s.archive, s.logger); err != nil {
			s.writeError(w, err)
			return
		}

		ctrl, _ := s.registry.Get(req.ID)
		s.writeJSON(w, http.StatusCreated, ctrl.Info())
	}
}

func (s *Server) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctrl, ok := s.registry.Get(id)
		if !ok {
			s.writeError(w, apperrors.NewNotFoundError("session", id))
			return
		}
		s.writeJSON(w, http.StatusOK, ctrl.Info())
	}
}

func (s *Server) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctrl, ok := s.registry.Get(id)
		if !ok {
			s.writeError(w, apperrors.NewNotFoundError("session", id))
			return
		}

		purge := r.URL.Query().Get("purge") == "true"
		if err := ctrl.Destroy(r.Context(), purge); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSendText() http.HandlerFunc {
	type request struct {
		To      string `json:"to"`
		IsGroup bool   `json:"isGroup"`
		Text    string `json:"text"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		ctrl, ok := s.registry.Get(id)
		if !ok {
			s.writeError(w, apperrors.NewNotFoundError("session", id))
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "invalid JSON payload"))
			return
		}
		if req.To == "" {
			s.writeError(w, apperrors.NewValidationError("to", "recipient is required"))
			return
		}
		if req.Text == "" {
			s.writeError(w, apperrors.NewValidationError("text", "text is required"))
			return
		}

		receipt, err := ctrl.SendText(r.Context(), req.To, req.IsGroup, req.Text, nil)
		if err != nil {
			apperrors.LogWarn(s.logger.WithField("session", ctrl.ID()), err, "Send failed")
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, receipt)
	}
}

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.archive == nil {
			s.writeError(w, apperrors.New(apperrors.ErrCodeNotFound, "archive is not enabled"))
			return
		}

		limit := 50
		if q := r.URL.Query().Get("limit"); q != "" {
			fmt.Sscanf(q, "%d", &limit)
		}

		records, err := s.archive.RecentMessages(r.Context(), mux.Vars(r)["id"], limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, records)
	}
}

// sessionBus returns the event bus of the session named in the request
// query, for the live event stream.
func (s *Server) sessionBus(r *http.Request) (*events.Bus, string, error) {
	id := r.URL.Query().Get("session")
	if id == "" {
		return nil, "", apperrors.NewValidationError("session", "session query parameter is required")
	}
	ctrl, ok := s.registry.Get(id)
	if !ok {
		return nil, "", apperrors.NewNotFoundError("session", id)
	}
	return ctrl.Bus(), id, nil
}
