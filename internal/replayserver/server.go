// Package replayserver hosts combat playback for remote renderers. Logs are
// uploaded over HTTP and each websocket connection plays one log: the server
// paces the session, the client draws the items and acknowledges them.
package replayserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/udisondev/combatplay/internal/battle/session"
	"github.com/udisondev/combatplay/internal/combatlog"
	"github.com/udisondev/combatplay/internal/config"
	"github.com/udisondev/combatplay/internal/db"
)

// ServerOption is a functional option for Server configuration.
type ServerOption func(*Server)

// WithOutcomeStore records finished sessions in store.
func WithOutcomeStore(store OutcomeStore) ServerOption {
	return func(s *Server) { s.outcomes = store }
}

// WithSessionOptions adds options to every playback session, e.g. a manual
// scheduler in tests.
func WithSessionOptions(opts ...session.Option) ServerOption {
	return func(s *Server) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

// WithPinger lets the server check database health on /healthz.
func WithPinger(p interface{ Ping(context.Context) error }) ServerOption {
	return func(s *Server) { s.pinger = p }
}

// Server accepts log uploads and websocket watchers.
type Server struct {
	cfg         config.Server
	logs        LogStore
	outcomes    OutcomeStore
	sessionOpts []session.Option
	pinger      interface{ Ping(context.Context) error }
	upgrader    websocket.Upgrader

	httpSrv  *http.Server
	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a Server. Playback settings from cfg.Playback apply to
// every session.
func NewServer(cfg config.Replay, logs LogStore, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg.Server,
		logs:        logs,
		sessionOpts: cfg.Playback.SessionOptions(cfg.Catalog()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /logs", s.handleUpload)
	mux.HandleFunc("GET /logs/{id}/watch", s.handleWatch)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Addr returns the listening address, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops the HTTP server immediately.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv != nil {
		return s.httpSrv.Close()
	}
	return nil
}

// Run listens on cfg.BindAddress:cfg.Port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = ln
	s.httpSrv = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("replay server shutdown", "err", err)
		}
	}()

	slog.Info("replay server started", "address", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving replay http: %w", err)
	}
	return nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxLogBytes
	if limit <= 0 {
		limit = 4 << 20
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err, false)
		return
	}

	l, err := combatlog.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, session.IsRetryable(err))
		return
	}
	stored, err := s.logs.Save(r.Context(), l)
	switch {
	case errors.Is(err, combatlog.ErrMalformedLog):
		writeError(w, http.StatusUnprocessableEntity, err, true)
		return
	case errors.Is(err, db.ErrLogIDTaken):
		writeError(w, http.StatusConflict, err, false)
		return
	case err != nil:
		slog.Error("storing combat log", "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("storing combat log failed"), false)
		return
	}

	slog.Info("combat log stored",
		"log", stored.ID,
		"dungeon", stored.DungeonID,
		"rounds", stored.TotalRounds)
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error, retry bool) {
	writeJSON(w, status, errorMessage{Type: typeError, Reason: err.Error(), Retry: retry})
}
