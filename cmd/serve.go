package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/illnessatlas/atlas-cli/internal/enrich"
	"github.com/illnessatlas/atlas-cli/internal/metrics"
	"github.com/illnessatlas/atlas-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the checkpoint read-only over HTTP for the atlas front-end",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		backend, err := initBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(backend),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the read-only API. Every request reads the checkpoint
// afresh so a concurrent enrich run shows up without a restart.
func newRouter(loader metrics.Loader) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/outcomes", func(w http.ResponseWriter, req *http.Request) {
			records, ok := loadRecords(w, req, loader)
			if !ok {
				return
			}
			if records == nil {
				records = []model.Outcome{}
			}
			writeJSON(w, http.StatusOK, records)
		})

		r.Get("/outcomes/{entity}", func(w http.ResponseWriter, req *http.Request) {
			name := chi.URLParam(req, "entity")
			// chi routes on RawPath when the name carries an escaped slash.
			if req.URL.RawPath != "" {
				unescaped, err := url.PathUnescape(name)
				if err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid entity name"})
					return
				}
				name = unescaped
			}
			records, ok := loadRecords(w, req, loader)
			if !ok {
				return
			}
			for _, rec := range records {
				if rec.Entity == name {
					writeJSON(w, http.StatusOK, rec)
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "entity not found"})
		})

		r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
			records, ok := loadRecords(w, req, loader)
			if !ok {
				return
			}
			stats := enrich.NewStats(records)
			writeJSON(w, http.StatusOK, map[string]any{
				"total":     stats.Total(),
				"resolved":  stats.Resolved(),
				"by_source": stats.Snapshot(),
			})
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(metrics.NewRegistry(loader), promhttp.HandlerOpts{}))

	return r
}

func loadRecords(w http.ResponseWriter, req *http.Request, loader metrics.Loader) ([]model.Outcome, bool) {
	records, err := loader.Load(req.Context())
	if err != nil {
		zap.L().Error("serve: load checkpoint", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "checkpoint unavailable"})
		return nil, false
	}
	return records, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
