// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"paper_navigator/internal/app"
	"paper_navigator/internal/chat"
	"paper_navigator/internal/metrics"
)

const shutdownTimeout = 15 * time.Second

type Options struct {
	Addr        string
	MaxUploadMB int64
}

type Server struct {
	app     *app.App
	chats   *chat.Store
	metrics *metrics.Recorder
	log     *zap.SugaredLogger

	maxUpload int64
	router    *mux.Router
	srv       *http.Server
}

// New builds the server and its routes. Call Start to listen.
func New(opts Options, a *app.App, chats *chat.Store, rec *metrics.Recorder, log *zap.SugaredLogger) *Server {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 64
	}
	s := &Server{
		app:       a,
		chats:     chats,
		metrics:   rec,
		log:       log,
		maxUpload: opts.MaxUploadMB << 20,
	}
	s.setupRouter()
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// setupRouter registers the API routes and middleware.
func (s *Server) setupRouter() {
	s.router = mux.NewRouter()
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metricsMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/documents", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/messages", s.handleMessages).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/messages", s.handleClearMessages).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/query", s.handleQuery).Methods(http.MethodPost)
	api.HandleFunc("/workspace", s.handleClearWorkspace).Methods(http.MethodDelete)

	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("🌐 Listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Infof("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debugw("HTTP request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

// metricsMiddleware records request latency by route template.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		s.metrics.HTTPRequest(route, r.Method, strconv.Itoa(wrapper.statusCode), time.Since(start))
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWrapper) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
