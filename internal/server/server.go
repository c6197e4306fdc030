// Package server wires together HTTP routes, dependency injection, and the
// upload/query handlers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"

	"github.com/dharsanguruparan/SectionDrop/internal/config"
	"github.com/dharsanguruparan/SectionDrop/internal/filestore"
	"github.com/dharsanguruparan/SectionDrop/internal/metrics"
	"github.com/dharsanguruparan/SectionDrop/internal/model"
	"github.com/dharsanguruparan/SectionDrop/internal/store"
)

// Submitter accepts thumbnail jobs. Both the in-process pool and the Redis
// queue client satisfy it.
type Submitter interface {
	Submit(ctx context.Context, job model.ThumbnailJob) error
}

// Mirror receives a copy of every stored upload.
type Mirror interface {
	Put(ctx context.Context, id, path, contentType string) error
}

// Deps are the collaborators a Server needs. Thumbnails and Mirror are
// optional.
type Deps struct {
	Store      store.Store
	Files      *filestore.Store
	Thumbnails Submitter
	Mirror     Mirror
	Logger     *slog.Logger
}

// Server hosts the HTTP surface of SectionDrop.
type Server struct {
	cfg        *config.Config
	store      store.Store
	files      *filestore.Store
	thumbnails Submitter
	mirror     Mirror
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a configured server.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		store:      deps.Store,
		files:      deps.Files,
		thumbnails: deps.Thumbnails,
		mirror:     deps.Mirror,
		logger:     logger,
		now:        time.Now,
	}
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then drains in-flight
// requests for up to five seconds.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	s.logger.Info("listening", "addr", ln.Addr().String())
	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Post("/upload", s.handleUpload)
	r.Get("/files/{section}", s.handleFilesBySection)
	r.Handle("/uploads/*", http.StripPrefix("/uploads", staticFiles(s.cfg.UploadsDir)))
	r.Handle("/*", staticFiles(s.cfg.PublicDir))

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-Id"}),
		handlers.ExposedHeaders([]string{"X-Request-Id"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(cors(r))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		slog.Error("encode json failed", "err", err)
	}
}

// recoveryLogger adapts slog to gorilla's RecoveryHandlerLogger.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.logger.Error("panic serving request", "panic", args)
}
