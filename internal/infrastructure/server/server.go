// Package server exposes the workbench over HTTP: an embedded single-page
// UI plus a JSON API for uploads, filtering, plotting and exports.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"gardi.app/cli/internal/application/services"
	"gardi.app/cli/internal/infrastructure/config"
)

//go:embed ui.html
var uiFS embed.FS

// Server hosts the gardi web UI and API.
type Server struct {
	cfg  *config.Config
	wb   *services.Workbench
	http *http.Server
}

// New creates a server around the given workbench.
func New(cfg *config.Config, wb *services.Workbench) *Server {
	s := &Server{cfg: cfg, wb: wb}
	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the HTTP mux. Exposed for httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/stations", s.handleStations)
	mux.HandleFunc("GET /api/figure", s.handleFigure)
	mux.HandleFunc("GET /api/query", s.handleGetQuery)
	mux.HandleFunc("POST /api/query", s.handleUpdateQuery)
	mux.HandleFunc("POST /api/mode", s.handleSwitchMode)
	mux.HandleFunc("POST /api/convert-ac", s.handleConvertAC)
	mux.HandleFunc("GET /api/tables/services", s.handleServiceTable)
	mux.HandleFunc("GET /api/tables/rakes", s.handleRakeTable)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/export/text", s.handleExportText)
	mux.HandleFunc("GET /api/export/xlsx", s.handleExportXLSX)

	return logRequests(mux)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.http.Addr, err)
	}
	log.Info("server listening", "addr", s.http.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := uiFS.ReadFile("ui.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ui unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"loaded": s.wb.Loaded(),
	})
}

// logRequests wraps the mux with access logging at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("request", "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start))
	})
}
