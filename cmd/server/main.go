package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/listflow/internal/api"
	"github.com/ignite/listflow/internal/app"
	"github.com/ignite/listflow/internal/config"
	"github.com/ignite/listflow/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	app.ConfigureLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to build services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	health := api.NewHealthChecker()
	for name, check := range a.Checks {
		health.Register(name, check)
	}
	server := api.NewServer(cfg.Server, &api.Handlers{
		Subscribers:    a.Subscribers,
		Settings:       a.Settings,
		Unsubscribe:    a.Unsubscribe,
		Segmentation:   a.Segmentation,
		Sending:        a.Sending,
		Health:         health,
		ThankYouURL:    cfg.Public.ThankYouURL,
		UnsubscribeURL: cfg.Public.UnsubscribeLink,
	})

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", server.Addr(), "store", cfg.Store, "lease", cfg.Lease.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			done <- syscall.SIGTERM
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
