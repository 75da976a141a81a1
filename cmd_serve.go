package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	accountsapp "rainlog/internal/accounts/application"
	accountspg "rainlog/internal/accounts/infrastructure/postgres"
	accountshttp "rainlog/internal/accounts/interfaces/http"
	"rainlog/internal/audit"
	"rainlog/internal/auth"
	"rainlog/internal/config"
	masterdataapp "rainlog/internal/masterdata/application"
	masterdatapg "rainlog/internal/masterdata/infrastructure/postgres"
	"rainlog/internal/observability/metrics"
	rainapp "rainlog/internal/rainfall/application"
	rainfallpg "rainlog/internal/rainfall/infrastructure/postgres"
	"rainlog/internal/rainfall/interfaces/export"
	rainhttp "rainlog/internal/rainfall/interfaces/http"
	rainkafka "rainlog/internal/rainfall/interfaces/kafka"
	"rainlog/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long:  `Start the rainlog web server. Run "rainlog migrate --seed" once beforehand.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireServe(); err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	accountsService, err := accountsapp.NewService(accountspg.NewUserRepository(db), logger)
	if err != nil {
		return err
	}
	stationService, err := masterdataapp.NewStationService(masterdatapg.NewStationRepository(db), logger)
	if err != nil {
		return err
	}

	rainOpts := []rainapp.Option{rainapp.WithLocation(cfg.Location)}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := rainkafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaTimeout)
		if err != nil {
			return err
		}
		defer publisher.Close()
		rainOpts = append(rainOpts, rainapp.WithPublisher(publisher))
		logger.Printf("kafka publisher: brokers=%v topic=%s", cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	rainService, err := rainapp.NewService(rainfallpg.NewObservationRepository(db), stationService, logger, rainOpts...)
	if err != nil {
		return err
	}

	renderer, err := web.NewRenderer(cfg.Location, logger)
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessions([]byte(cfg.AuthSecret),
		auth.WithTTL(cfg.SessionTTL, cfg.RememberTTL),
		auth.WithSecureCookies(cfg.CookieSecure))
	if err != nil {
		return err
	}

	accountsHandler, err := accountshttp.NewHandler(accountsService, sessions, renderer, auditRepo, logger)
	if err != nil {
		return err
	}
	layout, err := export.ParseLayout(cfg.ExportLayout)
	if err != nil {
		return err
	}
	rainHandler, err := rainhttp.NewHandler(rainService, renderer, auditRepo, logger,
		rainhttp.WithExportDefaults(layout, cfg.ExportScope == config.ScopeAll))
	if err != nil {
		return err
	}

	if cfg.SnapshotDir != "" {
		encoder := export.NewEncoder(layout, cfg.Location)
		scheduler, err := rainapp.NewSnapshotScheduler(rainService, encoder.Encode, cfg.SnapshotDir, cfg.SnapshotCron, nil, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				logger.Printf("snapshot scheduler: err=%v", err)
			}
		}()
	}

	authMiddleware := auth.NewMiddleware(sessions, auth.NewDefaultPolicy(nil, nil))
	authMiddleware.JSONPaths = []string{rainhttp.InlineUpdatePath}
	authMiddleware.PostOnlyPaths = []string{rainhttp.InlineUpdatePath}

	router := newRouter(db, renderer, accountsHandler, rainHandler)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(router), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("http server listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Printf("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Printf("server stopped")
	return nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

type routes interface {
	Routes(r *mux.Router)
}

func newRouter(db pinger, renderer *web.Renderer, handlers ...routes) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthHandler(db)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	for _, h := range handlers {
		h.Routes(router)
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		renderer.Error(w, r, http.StatusNotFound, "صفحه پیدا نشد")
	})
	return router
}

// healthHandler reports database reachability.
func healthHandler(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				status, code = "db unavailable", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"service": "rainlog",
		})
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
