package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crucial707/a11y-monitor/internal/config"
	"github.com/crucial707/a11y-monitor/internal/db"
	"github.com/crucial707/a11y-monitor/internal/handlers"
	"github.com/crucial707/a11y-monitor/internal/middleware"
	"github.com/crucial707/a11y-monitor/internal/pipeline"
	"github.com/crucial707/a11y-monitor/internal/repo"
	"github.com/crucial707/a11y-monitor/internal/scheduler"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogFormat)

	if cfg.Env == "prod" && cfg.JWTSecret == "supersecretkey" {
		slog.Error("JWT_SECRET must be set in prod")
		os.Exit(1)
	}

	database, err := db.Connect(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)

	if err := db.Run(db.URL(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass)); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "host", cfg.DBHost, "name", cfg.DBName)

	scheduleRepo := repo.NewScheduleRepo(database)
	runRepo := repo.NewRunRepo(database)
	userRepo := repo.NewUserRepo(database)
	auditRepo := repo.NewAuditRepo(database)

	pipelineTimeout := time.Duration(cfg.PipelineTimeoutSeconds) * time.Second
	runner := &scheduler.Runner{
		DB:               database,
		Schedules:        scheduleRepo,
		Runs:             runRepo,
		Audit:            auditRepo,
		Scanner:          pipeline.NewScanClient(cfg.ScanEngineURL, pipelineTimeout),
		Deliverer:        pipeline.NewDeliveryClient(cfg.ReportServiceURL, pipelineTimeout),
		BatchSize:        cfg.TickBatchSize,
		FailureThreshold: cfg.FailureThreshold,
	}

	authHandler := &handlers.AuthHandler{
		UserRepo:    userRepo,
		Secret:      []byte(cfg.JWTSecret),
		ExpireHours: cfg.JWTExpireHours,
	}
	scheduleHandler := &handlers.ScheduleHandler{
		Schedules: scheduleRepo,
		Runs:      runRepo,
		Audit:     auditRepo,
	}
	tickHandler := &handlers.TickHandler{Runner: runner}
	auditHandler := &handlers.AuditHandler{Repo: auditRepo}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := database.Ping(); err != nil {
			handlers.JSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	authLimiter := middleware.AuthRateLimiter()
	r.Group(func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.JWT([]byte(cfg.JWTSecret)))

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", scheduleHandler.ListSchedules)
			r.Post("/", scheduleHandler.CreateSchedule)
			r.Get("/{id}", scheduleHandler.GetSchedule)
			r.Put("/{id}", scheduleHandler.UpdateSchedule)
			r.Delete("/{id}", scheduleHandler.DeleteSchedule)
			r.Post("/{id}/enable", scheduleHandler.EnableSchedule)
			r.Post("/{id}/disable", scheduleHandler.DisableSchedule)
			r.Get("/{id}/runs", scheduleHandler.ListRuns)
			r.With(middleware.RequireAdmin).Post("/{id}/reset", scheduleHandler.ResetSchedule)
		})

		r.With(middleware.RequireAdmin).Post("/tick", tickHandler.Tick)
		r.With(middleware.RequireAdmin).Get("/audit", auditHandler.ListAudit)
	})

	var cronTrigger interface{ Stop() context.Context }
	if cfg.SchedulerEnabled {
		c, err := scheduler.Start(runner)
		if err != nil {
			slog.Error("start scheduler", "error", err)
			os.Exit(1)
		}
		cronTrigger = c
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.Port, "tls", cfg.TLSCertFile != "")
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	slog.Info("shutting down")

	if cronTrigger != nil {
		// Stop scheduling new ticks; an in-flight tick finishes its batch.
		<-cronTrigger.Stop().Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("stopped")
}

func setupLogging(format string) {
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}
