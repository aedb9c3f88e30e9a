// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bryan-buckman/readdeck/internal/database"
	"github.com/bryan-buckman/readdeck/internal/model"
	"github.com/bryan-buckman/readdeck/internal/rss"
	"github.com/bryan-buckman/readdeck/internal/store"
	"github.com/bryan-buckman/readdeck/internal/widget"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Options tunes the server.
type Options struct {
	// MaxBodyBytes caps request bodies; zero means 10 MiB.
	MaxBodyBytes int64
	// Now is the clock used for day grouping and filters; nil means time.Now.
	Now func() time.Time
}

// Server is the main HTTP server.
type Server struct {
	db        database.Store
	stores    *store.Set
	poller    *rss.Poller
	opts      Options
	router    chi.Router
	templates *template.Template

	// pageMu serializes page builds, which load into the shared list store.
	pageMu sync.Mutex
}

// New creates a new server. poller may be nil, in which case refreshes are rejected.
func New(db database.Store, stores *store.Set, poller *rss.Poller, opts Options) (*Server, error) {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"timeAgo": timeAgo,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, name := range widget.Names() {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("parse templates: no template for widget %s", name)
		}
	}

	s := &Server{
		db:        db,
		stores:    stores,
		poller:    poller,
		opts:      opts,
		templates: tmpl,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(s.opts.MaxBodyBytes))
	r.Use(middleware.Compress(5))

	// Serve static files.
	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Pages.
	r.Get("/", s.handleHome)
	r.Get("/feed/{feedID}", s.handleFeed)
	r.Get("/article/{articleID}", s.handleArticle)
	r.Get("/widgets/{name}", s.handleWidget)

	// API.
	r.Route("/api", func(r chi.Router) {
		r.Post("/mark-read", s.handleMarkRead)
		r.Post("/articles/{articleID}/favorite", s.handleToggleFavorite)
		r.Get("/search", s.handleSearch)
		r.Post("/reader-mode", s.handleReaderMode)
		r.Get("/tasks", s.handleTasks)
		r.Get("/sprite", s.handleSprite)
		r.Get("/events", s.handleEvents)
		r.Post("/settings", s.handleSaveSettings)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/import-opml", s.handleImportOPML)
		r.Get("/export-opml", s.handleExportOPML)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/cleanup", s.handleCleanup)
		r.Get("/sidebar", s.handleSidebar)
		r.Get("/widgets", s.handleWidgets)
	})

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on srv until ctx is cancelled, then shuts down gracefully.
// srv.Handler is replaced by the server's router.
func (s *Server) Run(ctx context.Context, srv *http.Server) error {
	srv.Handler = s
	errc := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Printf("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Helpers ---

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func respondErr(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, widget.ErrUnresolvedArticle):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidReadMode), errors.Is(err, model.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, rss.ErrRefreshRunning):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("server: %s %s: %v", r.Method, r.URL.Path, err)
	}
	respondErr(w, status, err.Error())
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
