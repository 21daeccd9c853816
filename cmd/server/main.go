package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"driftwatch/internal/app"
	"driftwatch/internal/config"
	"driftwatch/internal/logging"
	"driftwatch/internal/service"
	"driftwatch/internal/transport/rest"
	"driftwatch/internal/transport/ws"
)

// @title driftwatch API
// @version 1.0
// @description Read-only query surface over model stance scores, drift events and analytics
// @host localhost:8080
// @BasePath /v1
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize", zap.Error(err))
	}

	// Initialize WebSocket hub
	wsHub := ws.NewHub(log.Named("ws"))
	a.AddNotifier(wsHub)

	var scheduler *service.SchedulerService
	if cfg.Schedule.Cron != "" {
		scheduler, err = service.NewSchedulerService(cfg.Schedule.Cron, a.Orchestrator, log.Named("scheduler"))
		if err != nil {
			log.Fatal("failed to create scheduler", zap.Error(err))
		}
		scheduler.Start()
	}

	if cfg.Auth.Password == "" {
		log.Warn("HOST_PASSWORD not set, operator login is disabled")
	}

	router := rest.NewRouter(&rest.Container{
		AuthService:  service.NewAuthService(cfg.Auth),
		Orchestrator: a.Orchestrator,
		Aggregator:   a.Aggregator,
		Store:        a.Store,
		Sessions:     a.Sessions,
		Catalog:      a.Catalog,
		DriftBoard:   a.DriftBoard,
		WSHub:        wsHub,
		Metrics:      a.Metrics,
		Log:          log.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.Strings("models", a.Orchestrator.Models()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ListenAndServe", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	// cancels running sessions and waits for them to finalize
	if err := a.Close(shutdownCtx); err != nil {
		log.Error("failed to close resources", zap.Error(err))
	}
	wsHub.Close()

	log.Info("server exited")
}
