// Package stubserver is a local stand-in for the appeal service so the
// console can be exercised without the real agent pipeline. It serves the
// same REST surface the console consumes, replays a canned six-stage
// workflow for each processed claim, and keeps everything in memory for the
// life of the process.
package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/claimpilot/console/internal/api"
)

const apiPrefix = "/api/v1"

// Logger records server status lines. It matches logbook's formatting
// methods so the console journal can be plugged in directly.
type Logger interface {
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// requestError is a client-visible failure carrying the HTTP status and the
// structured detail string the console prefers.
type requestError struct {
	status int
	detail string
}

func (e *requestError) Error() string { return e.detail }

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
			s.store.clock = clock
		}
	}
}

// Server wraps the HTTP listener and handlers for the stub appeal service.
type Server struct {
	settings Settings
	logger   Logger
	clock    func() time.Time
	store    *store

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer prepares a stub service using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	settings.normalize()
	clock := func() time.Time { return time.Now().UTC() }
	s := &Server{
		settings: settings,
		logger:   nopLogger{},
		clock:    clock,
		store:    newStore(clock),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("stubserver: already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("stubserver: listen %s: %w", addr, err)
	}
	s.listener = listener

	server := &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("stubserver: serve error: %v", err)
		}
	}()
	s.logger.Info("stubserver: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.server = nil
	s.listener = nil
	return nil
}

// BaseURL returns the API root (scheme + host:port + prefix) once started.
func (s *Server) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.settings.URL()
	}
	return "http://" + s.listener.Addr().String() + apiPrefix
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/health", s.handleHealth)
	mux.HandleFunc(apiPrefix+"/claims", s.handleClaims)
	mux.HandleFunc(apiPrefix+"/claims/process", s.handleProcess)
	mux.HandleFunc(apiPrefix+"/appeals", s.handleAppeals)
	mux.HandleFunc(apiPrefix+"/appeals/", s.handleAppealSubroutes)
	mux.HandleFunc(apiPrefix+"/audit", s.handleAudit)
	mux.HandleFunc(apiPrefix+"/audit/agents", s.handleAgents)
	mux.HandleFunc(apiPrefix+"/audit/claim/", s.handleAuditForClaim)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, &requestError{status: http.StatusMethodNotAllowed, detail: "method not allowed"})
		return
	}
	s.writeJSON(w, http.StatusOK, api.Health{Status: "ok", Timestamp: s.clock(), Version: "stub"})
}

func (s *Server) handleClaims(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, &requestError{status: http.StatusMethodNotAllowed, detail: "method not allowed"})
		return
	}
	var draft api.ClaimDraft
	if err := s.readJSON(w, r, &draft); err != nil {
		return
	}
	claim, err := s.store.createClaim(draft)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("stubserver: claim %s created", claim.ClaimID)
	s.writeJSON(w, http.StatusCreated, claim)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, &requestError{status: http.StatusMethodNotAllowed, detail: "method not allowed"})
		return
	}
	var body struct {
		ClaimID string `json:"claim_id"`
	}
	if err := s.readJSON(w, r, &body); err != nil {
		return
	}
	if s.settings.WorkflowDelay > 0 {
		select {
		case <-time.After(s.settings.WorkflowDelay):
		case <-r.Context().Done():
			return
		}
	}
	result, err := s.store.runWorkflow(body.ClaimID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("stubserver: claim %s processed, appeal %s drafted", body.ClaimID, result.AppealID)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAppeals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, &requestError{status: http.StatusMethodNotAllowed, detail: "method not allowed"})
		return
	}
	appeals := s.store.listAppeals(r.URL.Query().Get("status_filter"))
	if appeals == nil {
		appeals = []api.Appeal{}
	}
	s.writeJSON(w, http.StatusOK, appeals)
}

func (s *Server) handleAppealSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, apiPrefix+"/appeals/")
	switch {
	case strings.HasPrefix(rest, "claim/"):
		if r.Method != http.MethodGet {
			s.writeError(w, &requestError{status: http.StatusMethodNotAllowed, detail: "method not allowed"})
			return
		}
		claimID := strings.TrimPrefix(rest, "claim/")
		appeal, err := s.store.appealForClaim(claimID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, appeal)
	case strings.HasSuffix(rest, "/approve"):
		if r.Method != http.MethodPost {
			s.writeError(w, &requestError{status: http.StatusMethodNotAllowed, detail: "method not allowed"})
			return
		}
		appealID := strings.TrimSuffix(rest, "/approve")
		var decision api.Decision
		if err := s.readJSON(w, r, &decision); err != nil {
			return
		}
		appeal, err := s.store.decideAppeal(appealID, decision)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.logger.Info("stubserver: appeal %s %s", appeal.ID, appeal.Status)
		s.writeJSON(w, http.StatusOK, appeal)
	default:
		s.writeError(w, &requestError{status: http.StatusNotFound, detail: "not found"})
	}
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, &requestError{status: http.StatusMethodNotAllowed, detail: "method not allowed"})
		return
	}
	query := r.URL.Query()
	limit := 50
	if raw := query.Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			limit = 50
		}
	}
	entries := s.store.listTrail(query.Get("agent_name"), limit)
	if entries == nil {
		entries = []api.AuditEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAuditForClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, &requestError{status: http.StatusMethodNotAllowed, detail: "method not allowed"})
		return
	}
	claimID := strings.TrimPrefix(r.URL.Path, apiPrefix+"/audit/claim/")
	entries, err := s.store.trailForClaim(claimID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []api.AuditEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, &requestError{status: http.StatusMethodNotAllowed, detail: "method not allowed"})
		return
	}
	agents := s.store.listAgents()
	if agents == nil {
		agents = []api.Agent{}
	}
	s.writeJSON(w, http.StatusOK, agents)
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, out any) error {
	body := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		s.writeError(w, &requestError{status: http.StatusBadRequest, detail: "malformed JSON body"})
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("stubserver: encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if !errors.As(err, &reqErr) {
		reqErr = &requestError{status: http.StatusInternalServerError, detail: err.Error()}
	}
	s.writeJSON(w, reqErr.status, map[string]string{"detail": reqErr.detail})
}
