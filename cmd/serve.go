package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/migration-cli/internal/migration"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the operator HTTP surface for the migration workflow",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/import", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Text   string `json:"text"`
				Source string `json:"source"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
				return
			}
			if body.Text == "" {
				writeError(w, http.StatusBadRequest, eris.New("text is required"))
				return
			}
			parsed, err := env.Orchestrator.ImportBatch(req.Context(), body.Text, body.Source)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"parsed": len(parsed), "records": parsed})
		})

		r.Get("/preview", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, env.Orchestrator.PreviewParsed())
		})

		r.Post("/stage", func(w http.ResponseWriter, req *http.Request) {
			result, err := env.Orchestrator.StageAll(req.Context())
			if err != nil {
				writeError(w, phaseStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Get("/duplicates", func(w http.ResponseWriter, req *http.Request) {
			report, err := env.Orchestrator.DetectDuplicates(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		r.Post("/duplicates/auto-remove", func(w http.ResponseWriter, req *http.Request) {
			result, err := env.Orchestrator.AutoRemoveExactDuplicates(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Post("/mappings", func(w http.ResponseWriter, req *http.Request) {
			stats, err := env.Orchestrator.BuildMappings(req.Context())
			if err != nil {
				writeError(w, phaseStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})

		r.Post("/merge", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				KeepID    string   `json:"keep_id"`
				RemoveIDs []string `json:"remove_ids"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
				return
			}
			result, err := env.Orchestrator.Merge(req.Context(), body.KeepID, body.RemoveIDs)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Post("/cutover", func(w http.ResponseWriter, req *http.Request) {
			result, err := env.Orchestrator.ExecuteCutover(req.Context())
			if err != nil {
				writeError(w, phaseStatus(err), err)
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			st, err := env.Orchestrator.Status(req.Context(), 10)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, st)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// phaseStatus maps a wrong-phase rejection to 409 and everything else to
// 500.
func phaseStatus(err error) int {
	if errors.Is(err, migration.ErrInvalidPhase) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
