package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/libsync/internal/models"
	"github.com/desertthunder/libsync/internal/repositories"
	"github.com/desertthunder/libsync/internal/shared"
	"github.com/desertthunder/libsync/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultLimit = 20

// History is the read side of the batch history.
type History interface {
	Recent(limit int) ([]*models.BatchRun, error)
	Lookup(ref string) (*models.BatchRun, []*models.TrackOutcomeRecord, error)
}

// BatchFunc runs one import batch to completion.
type BatchFunc func(ctx context.Context) (*tasks.BatchResult, error)

// Options configures a [Server]. Nil History or Run disables the matching routes with 503 and 501.
type Options struct {
	History  History
	Gatherer prometheus.Gatherer
	Run      BatchFunc
	Logger   *log.Logger
}

// Server serves history and metrics, and runs at most one triggered batch at a time.
type Server struct {
	ctx     context.Context
	router  *BasicRouter
	history History
	run     BatchFunc
	logger  *log.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New builds a server. Triggered batches run under ctx, so cancelling it aborts them.
func New(ctx context.Context, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.NewRegistry()
	}

	s := &Server{
		ctx:     ctx,
		router:  NewBasicRouter(),
		history: opts.History,
		run:     opts.Run,
		logger:  opts.Logger,
	}

	s.router.Use(Recover(s.logger), Logging(s.logger))
	s.router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(s.health))
	s.router.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	s.router.Handle(http.MethodGet, "/batches", http.HandlerFunc(s.listBatches))
	s.router.Handle(http.MethodGet, "/batches/{ref}", http.HandlerFunc(s.getBatch))
	s.router.Handle(http.MethodPost, "/batches", http.HandlerFunc(s.startBatch))
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until the server context is cancelled, then shuts down and
// waits for an in-flight batch to return.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-s.ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown incomplete", "error", err)
	}
	s.Wait()
	return nil
}

// Wait blocks until no triggered batch is running.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Running reports whether a triggered batch is in flight.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) health(w http.ResponseWriter, req *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": s.Running()})
}

func (s *Server) listBatches(w http.ResponseWriter, req *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "batch history is not available")
		return
	}

	limit := defaultLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	batches, err := s.history.Recent(limit)
	if err != nil {
		s.logger.Error("failed to list batches", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}
	if batches == nil {
		batches = []*models.BatchRun{}
	}
	s.writeJSON(w, http.StatusOK, batches)
}

func (s *Server) getBatch(w http.ResponseWriter, req *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "batch history is not available")
		return
	}

	ref := req.PathValue("ref")
	batch, outcomes, err := s.history.Lookup(ref)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no batch %s", ref))
		return
	case err != nil:
		s.logger.Error("failed to look up batch", "ref", ref, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to look up batch")
		return
	}
	if outcomes == nil {
		outcomes = []*models.TrackOutcomeRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"batch": batch, "outcomes": outcomes})
}

func (s *Server) startBatch(w http.ResponseWriter, req *http.Request) {
	if s.run == nil {
		s.writeError(w, http.StatusNotImplemented, "batch runs are not enabled")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.writeError(w, http.StatusConflict, "a batch is already running")
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runBatch()
	s.writeJSON(w, http.StatusAccepted, map[string]any{"status": "started"})
}

func (s *Server) runBatch() {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("triggered batch started")
	result, err := s.run(s.ctx)

	var batchErr *tasks.BatchError
	switch {
	case errors.As(err, &batchErr):
		s.logger.Warn("triggered batch finished with unresolved tracks", "failed", len(batchErr.Failures), "total", batchErr.Total)
	case err != nil:
		s.logger.Error("triggered batch failed", "error", err)
	case result != nil:
		s.logger.Info("triggered batch finished", "playlist", result.PlaylistName, "resolved", len(result.Resolved()))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := shared.MarshalJSON(data, false)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
