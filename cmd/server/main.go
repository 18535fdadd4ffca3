package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	configLoader "github.com/andiksetyawan/config"
	"go.uber.org/zap"

	"db-schema-keeper/internal/app"
	"db-schema-keeper/internal/config"
	"db-schema-keeper/internal/models"
)

func main() {
	cfg := &config.AppConfig{}
	loader := configLoader.New(
		configLoader.WithEnvPath(".env"),
	)

	if err := loader.Load(cfg); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Name))

	db, err := config.InitDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	redisClient, err := config.InitRedis(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize redis", zap.Error(err))
	}

	ms, err := models.LoadModels(cfg.Reset.ModelsFile)
	if err != nil {
		logger.Fatal("Failed to load models", zap.String("file", cfg.Reset.ModelsFile), zap.Error(err))
	}
	logger.Info("Models loaded", zap.Int("count", len(ms)))

	application := app.NewApplication(cfg, db, redisClient, ms, logger)
	defer application.Close()

	application.StartupReset(ctx)

	if cfg.Maintenance.AutoStart {
		if err := application.Maintenance.Start(); err != nil {
			logger.Error("Failed to start maintenance", zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: application.Routes(),
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
