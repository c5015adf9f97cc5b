package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"device-engine/internal/api"
	"device-engine/internal/config"
	"device-engine/internal/generators"
	"device-engine/internal/logging"
	"device-engine/internal/manager"
	"device-engine/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Version is set at build time via -ldflags "-X main.Version=vX.Y.Z"
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel(), os.Stdout)
	logger := logging.For(log, "main")
	logger.WithField("version", Version).Infof("configuration loaded: %s", cfg)

	sink := metrics.New(metrics.NewHTTPLineWriter(cfg.SinkURL(), cfg.SinkToken()), logging.For(log, "metrics"))
	go sink.Run()

	registry := generators.NewHandlerRegistry()

	mgr := manager.New(cfg, sink, registry, logging.For(log, "manager"))
	if err := mgr.LoadModels(); err != nil {
		logger.WithError(err).Fatal("failed to load device models")
	}
	go mgr.Run()

	server := api.NewServer(mgr, logging.For(log, "api"))

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.Router(),
	}

	go func() {
		logger.Infof("device engine starting on %s", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	waitForShutdown(httpServer, mgr, sink, logger)
}

func waitForShutdown(httpServer *http.Server, mgr *manager.Manager, sink *metrics.Sink, logger *logrus.Entry) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(ctx)
	mgr.Shutdown(ctx)
	sink.Shutdown()
}
