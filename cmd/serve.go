package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/junkusano/famille-docsync/internal/reconcile"
)

var servePort int

// shutdownTimeout bounds graceful shutdown so a stuck in-flight request
// cannot hang the process.
const shutdownTimeout = 10 * time.Second

// shutdownWhenDone blocks until ctx is cancelled, then shuts the server down
// with its own bounded context (ctx is already dead at that point and would
// abort the drain immediately; the parent command context would never fire).
func shutdownWhenDone(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server for triggering reconciliation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
		})

		r.Post("/webhook/reconcile", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				DaysBack int  `json:"days_back"`
				Limit    int  `json:"limit"`
				DryRun   bool `json:"dry_run"`
			}
			if req.ContentLength > 0 {
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
					return
				}
			}

			// Run asynchronously; the report lands in the run log.
			go func() {
				report := env.Runner.Run(ctx, reconcile.Params{
					DaysBack: body.DaysBack,
					Limit:    body.Limit,
					DryRun:   body.DryRun,
				})
				zap.L().Info("webhook reconciliation complete",
					zap.String("run_id", report.RunID),
					zap.Bool("ok", report.OK),
				)
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"status": "accepted"}) //nolint:errcheck
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			return shutdownWhenDone(gctx, srv, shutdownTimeout)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
