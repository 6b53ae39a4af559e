// Package server exposes the daemon's HTTP surface: health, metrics, the
// cron poll trigger and the review actions.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ports"
)

const (
	cronSecretHeader = "X-CRON-SECRET"

	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
	maxBodyBytes      = 1 << 20
)

// Reviewer is the human review surface served under /api
type Reviewer interface {
	Revise(ctx context.Context, userID, emailID, currentDraft, instruction string) (*core.DraftVersion, error)
	Send(ctx context.Context, userID, emailID, finalText string) (string, error)
}

// Config holds the HTTP server settings
type Config struct {
	ListenAddress string
	// CronSecret authorises POST /cron/poll; empty rejects every request
	CronSecret string
	// APIToken authorises the review API as a bearer token; empty disables it
	APIToken string
}

// Server serves the daemon's HTTP endpoints
type Server struct {
	cfg        Config
	runner     ports.Runner
	reviewer   Reviewer
	metrics    http.Handler
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer creates a new server. metrics may be nil when metrics are disabled.
func NewServer(cfg Config, runner ports.Runner, reviewer Reviewer, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		runner:   runner,
		reviewer: reviewer,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	mux.HandleFunc("POST /cron/poll", s.handlePoll)

	if s.cfg.APIToken != "" && s.reviewer != nil {
		mux.Handle("POST /api/users/{userID}/emails/{emailID}/revise", s.requireToken(http.HandlerFunc(s.handleRevise)))
		mux.Handle("POST /api/users/{userID}/emails/{emailID}/send", s.requireToken(http.HandlerFunc(s.handleSend)))
	}

	return mux
}

// Start starts listening in the background
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.logger.Info("HTTP server starting", zap.String("address", s.cfg.ListenAddress))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type pollResponse struct {
	OK      bool                `json:"ok"`
	Reports []*core.BatchReport `json:"reports"`
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if !secretMatches(s.cfg.CronSecret, r.Header.Get(cronSecretHeader)) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reports, err := s.runner.RunOnce(r.Context())
	if err != nil {
		s.logger.Error("Triggered poll failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pollResponse{OK: true, Reports: reports})
}

type reviseRequest struct {
	Draft       string `json:"draft_text"`
	Instruction string `json:"instruction"`
}

type draftResponse struct {
	EmailID     string    `json:"email_item_id"`
	Version     int       `json:"version"`
	Text        string    `json:"draft_text"`
	Instruction string    `json:"instruction"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	var req reviseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	v, err := s.reviewer.Revise(r.Context(), r.PathValue("userID"), r.PathValue("emailID"), req.Draft, req.Instruction)
	if err != nil {
		s.reviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{
		EmailID:     v.EmailID,
		Version:     v.Version,
		Text:        v.Text,
		Instruction: v.Instruction,
		CreatedAt:   v.CreatedAt,
	})
}

type sendRequest struct {
	Text string `json:"final_text"`
}

type sendResponse struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"sent_message_id"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.reviewer.Send(r.Context(), r.PathValue("userID"), r.PathValue("emailID"), req.Text)
	if err != nil {
		s.reviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{OK: true, MessageID: id})
}

func (s *Server) reviewError(w http.ResponseWriter, err error) {
	var collabErr *core.CollaboratorError
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &collabErr):
		s.logger.Warn("Review collaborator failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("Review action failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !secretMatches(s.cfg.APIToken, token) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secretMatches(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
