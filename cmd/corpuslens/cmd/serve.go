package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corpuslens/corpuslens/internal/app"
	"github.com/corpuslens/corpuslens/internal/apperr"
	"github.com/corpuslens/corpuslens/internal/config"
)

func newServeCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (spec.md §6: index/search/health endpoints)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configDir)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", ".", "Directory to load .corpuslens.yaml from")
	return cmd
}

// runServe loads configuration, wires the App, reconciles and watches every
// already-registered directory, and serves the HTTP API until ctx is
// canceled. Graceful shutdown follows the teacher pack's
// bbiangul-go-reason/cmd/server/main.go shape: a signal-triggered
// http.Server.Shutdown with a bounded grace period.
func runServe(ctx context.Context, configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.ReconcileOnStartup(ctx); err != nil {
		slog.Warn("startup reconciliation failed", "error", err)
	}
	if err := a.WatchAllRegistered(ctx); err != nil {
		slog.Warn("failed to attach watchers to registered directories", "error", err)
	}

	h := newAPIHandler(a)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /index-directory", h.handleIndexDirectory)
	mux.HandleFunc("POST /index-file", h.handleIndexFile)
	mux.HandleFunc("POST /reindex-file", h.handleReindexFile)
	mux.HandleFunc("DELETE /remove-file", h.handleRemoveFile)
	mux.HandleFunc("POST /search", h.handleSearch)
	mux.HandleFunc("POST /ask", h.handleAsk)
	mux.HandleFunc("GET /index-info", h.handleIndexInfo)
	mux.HandleFunc("GET /file-content", h.handleFileContent)
	mux.HandleFunc("GET /health", h.handleHealth)

	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAppError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  apperr.GetCode(err),
	})
}
