// Package httpapi serves slide metadata and region reads over HTTP.
//
// Every endpoint takes the slide location in the path query parameter and an
// optional driver ID (default from config). Slides are opened through the
// shared imaging.SlideCache.
//
//	GET /healthz
//	GET /api/drivers
//	GET /api/slide?path=...
//	GET /api/slide/scenes/{index}?path=...
//	GET /api/slide/scenes/{index}/block?path=...&x=&y=&w=&h=&width=&height=&channels=0,2&z=&t=&format=png
//	GET /api/slide/aux/{name}/block?path=...&max_size=&format=jpeg
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
)

// Server wraps the HTTP server around a slide cache.
type Server struct {
	addr          string
	cache         *imaging.SlideCache
	defaultDriver string
	log           *slog.Logger
	server        *http.Server
}

// NewServer creates a server listening on addr. An empty defaultDriver means
// AUTO.
func NewServer(addr string, cache *imaging.SlideCache, defaultDriver string, log *slog.Logger) *Server {
	if defaultDriver == "" {
		defaultDriver = "AUTO"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		addr:          addr,
		cache:         cache,
		defaultDriver: defaultDriver,
		log:           log,
	}
}

// Handler returns the routed handler, for use with httptest or a custom
// listener.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.setupRoutes(r)
	r.Use(s.logRequests)
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("Shutting down server...")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctxShutdown); err != nil {
			s.log.Warn("shutdown failed", "error", err)
		}
	}()

	s.log.Info("Server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/drivers", s.handleDrivers).Methods("GET")
	api.HandleFunc("/slide", s.handleSlide).Methods("GET")
	api.HandleFunc("/slide", s.handleSlideClose).Methods("DELETE")
	api.HandleFunc("/slide/scenes/{index:[0-9]+}", s.handleScene).Methods("GET")
	api.HandleFunc("/slide/scenes/{index:[0-9]+}/block", s.handleSceneBlock).Methods("GET")
	api.HandleFunc("/slide/aux/{name}/block", s.handleAuxBlock).Methods("GET")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
