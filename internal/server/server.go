// Package server exposes the runner status, session stats and prometheus
// metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/flipped-trading/internal/archive"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/trading/engine"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/internal/version"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// StatusProvider is the read side of a runner.
type StatusProvider interface {
	Status() engine.Status
	Stats() types.SessionStats
}

// ArchiveReporter summarizes the log archive.
type ArchiveReporter interface {
	Stats() (archive.Stats, error)
}

// Options holds the server collaborators. Metrics and Archive are optional.
type Options struct {
	Addr    string
	Status  StatusProvider
	Metrics http.Handler
	Archive ArchiveReporter
}

// Server serves the read-only HTTP endpoints.
type Server struct {
	opts       Options
	router     *mux.Router
	httpServer *http.Server
	listener   net.Listener
	log        *logger.Logger
}

type healthResponse struct {
	Status       string             `json:"status"`
	EngineStatus types.EngineStatus `json:"engine_status"`
	Version      string             `json:"version"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds the router. It does not listen yet.
func New(opts Options, log *logger.Logger) (*Server, error) {
	if opts.Status == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "server requires a status provider")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Server{
		opts:       opts,
		router:     mux.NewRouter(),
		httpServer: nil,
		listener:   nil,
		log:        log,
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/archives", s.handleArchives).Methods(http.MethodGet)

	if opts.Metrics != nil {
		s.router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address once Run has started listening.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.opts.Addr
	}

	return s.listener.Addr().String()
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "failed to listen on %s", s.opts.Addr)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return nil
}

// Serve blocks until ctx is cancelled, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("Status server listening", zap.String("addr", s.Addr()))

		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.opts.Status.Status()

	code := http.StatusOK
	health := "ok"

	if status.EngineStatus == types.EngineStatusStopped {
		code = http.StatusServiceUnavailable
		health = "stopped"
	}

	s.writeJSON(w, code, healthResponse{
		Status:       health,
		EngineStatus: status.EngineStatus,
		Version:      version.GetVersion(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.opts.Status.Status())
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.opts.Status.Stats())
}

func (s *Server) handleArchives(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Archive == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "log archiving is not configured"})

		return
	}

	stats, err := s.opts.Archive.Stats()
	if err != nil {
		s.log.Warn("Failed to read archive stats", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})

		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("Failed to encode response", zap.Error(err))
	}
}
