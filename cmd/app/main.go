package main

import (
	"FaceOverlay/internal/config"
	"FaceOverlay/pkg/log"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	// .env is loaded first so LOG_LEVEL and LOG_DIR from it reach the logger
	env, envErr := config.LoadEnv()
	logger := log.NewLogger()
	if envErr != nil {
		logger.Fatalf("Error loading configuration: %v", envErr)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithEnv(env),
		config.WithValidator(validator),
		config.WithMiddleware(),
		config.WithUtils(),
		config.WithModelLoader(),
		config.WithSessionStore(),
		config.WithS3Client(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()
	server.StartModelLoading()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
