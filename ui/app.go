// Package ui serves the generated report and the run archive over
// HTTP: the latest report page, per-run stored reports and datasets,
// and a small JSON API for run metadata.
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"overcount/internal/archive"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// App represents the UI application
type App struct {
	router    *chi.Mux
	store     *archive.Store
	templates *template.Template

	outDir     string
	reportFile string
}

// Config holds UI application configuration
type Config struct {
	Store      *archive.Store
	OutputDir  string
	ReportFile string
}

// NewApp creates a new UI application
func NewApp(config Config) (*App, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("ui: archive store is required")
	}

	funcMap := template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"short": func(s string) string {
			if len(s) > 8 {
				return s[:8]
			}
			return s
		},
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	app := &App{
		router:     chi.NewRouter(),
		store:      config.Store,
		templates:  templates,
		outDir:     config.OutputDir,
		reportFile: config.ReportFile,
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))

	// Figures are written to disk by the report pipeline, not embedded
	figuresDir := http.Dir(filepath.Join(a.outDir, "figures"))
	a.router.Handle("/figures/*", http.StripPrefix("/figures/", http.FileServer(figuresDir)))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	// Main pages
	a.router.Get("/", a.handleIndex)
	a.router.Get("/report", a.handleLatestReport)
	a.router.Get("/runs", a.handleRuns)
	a.router.Get("/runs/{id}", a.handleRunReport)
	a.router.Get("/runs/{id}/dataset.csv", a.handleRunDataset)

	// API endpoints
	a.router.Get("/api/runs", a.handleListRuns)
	a.router.Get("/api/runs/{id}", a.handleGetRun)

	a.router.Get("/healthz", a.handleHealth)
}

// Router exposes the HTTP handler, mainly for tests.
func (a *App) Router() http.Handler {
	return a.router
}

// Start starts the HTTP server
func (a *App) Start(addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	log.Printf("Starting overcount UI server on %s", addr)
	return srv.ListenAndServe()
}
