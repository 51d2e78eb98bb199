package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vbonduro/wardrobe/internal/auth"
	"github.com/vbonduro/wardrobe/internal/service"
)

type Server struct {
	service *service.WardrobeService
	auth    *auth.Service
	mux     *http.ServeMux
	logger  *slog.Logger
}

func NewServer(svc *service.WardrobeService, authSvc *auth.Service, logger *slog.Logger) *Server {
	s := &Server{
		service: svc,
		auth:    authSvc,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /auth/signup", s.handleSignUp)
	s.mux.HandleFunc("POST /auth/signin", s.handleSignIn)

	s.handleAuthed("POST /auth/signout", s.handleSignOut)
	s.handleAuthed("GET /categories", s.handleCategories)
	s.handleAuthed("GET /closet", s.handleCloset)

	s.handleAuthed("GET /items", s.handleListItems)
	s.handleAuthed("POST /items", s.handleAddItem)
	s.handleAuthed("PATCH /items/{id}", s.handleUpdateItem)
	s.handleAuthed("DELETE /items/{id}", s.handleRemoveItem)
	s.handleAuthed("GET /items/{id}/image", s.handleItemImage)

	s.handleAuthed("POST /flows", s.handleStartFlow)
	s.handleAuthed("POST /flows/{id}/complete", s.handleCompleteFlow)
	s.handleAuthed("DELETE /flows/{id}", s.handleAbandonFlow)

	s.handleAuthed("GET /shuffle", s.handleShuffleState)
	s.handleAuthed("POST /shuffle", s.handleShuffle)
	s.handleAuthed("POST /shuffle/{category}", s.handleReroll)
	s.handleAuthed("PUT /shuffle/{category}/pause", s.handleSetPaused(true))
	s.handleAuthed("DELETE /shuffle/{category}/pause", s.handleSetPaused(false))
	s.handleAuthed("PUT /shuffle/{category}/exclude", s.handleSetExcluded(true))
	s.handleAuthed("DELETE /shuffle/{category}/exclude", s.handleSetExcluded(false))

	s.handleAuthed("GET /favorites", s.handleListFavorites)
	s.handleAuthed("POST /favorites", s.handleSaveFavorite)
	s.handleAuthed("DELETE /favorites/{id}", s.handleRemoveFavorite)
}

func (s *Server) handleAuthed(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.requireAuth(h))
}

// securityHeaders sets the response headers every API reply carries.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
