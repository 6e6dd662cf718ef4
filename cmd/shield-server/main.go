// Package main is the entry point for the MITRE Shield API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mitre-shield/internal/api"
	"mitre-shield/internal/api/auth"
	"mitre-shield/internal/config"
	"mitre-shield/internal/filestore"
	"mitre-shield/internal/logging"
	"mitre-shield/internal/storage"
)

var version = "dev"

func main() {
	var (
		showVersion bool
		memoryMode  bool
	)
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&memoryMode, "memory", false, "Run against in-memory storage (development only)")
	flag.Parse()

	if showVersion {
		fmt.Printf("shield-server %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging)
	logger.Info("configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"mongo_uri", logging.MaskMongoURI(cfg.Mongo.URI),
		"auth_enabled", cfg.Auth.Enabled,
		"uploads_backend", cfg.Uploads.Backend,
		"memory_mode", memoryMode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := api.Deps{}

	var mongoClient *storage.Client
	if memoryMode {
		deps.Rules = storage.NewMemoryRuleStore()
		deps.Techniques = storage.NewMemoryTechniqueStore()
		logger.Warn("running with in-memory storage; data will not survive a restart")
	} else {
		mongoClient, err = storage.NewClient(ctx, cfg.Mongo)
		if err != nil {
			logger.Error("failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		if err := mongoClient.EnsureIndexes(ctx); err != nil {
			logger.Error("failed to ensure indexes", "error", err)
			os.Exit(1)
		}
		deps.Rules = mongoClient.Rules()
		deps.Techniques = mongoClient.Techniques()
		deps.Pinger = mongoClient
	}

	switch cfg.Uploads.Backend {
	case "s3":
		deps.Files, err = filestore.NewS3(ctx, cfg.Uploads.S3, logger)
	default:
		deps.Files, err = filestore.NewLocal(cfg.Uploads.Local.Dir)
	}
	if err != nil {
		logger.Error("failed to initialize upload store", "backend", cfg.Uploads.Backend, "error", err)
		os.Exit(1)
	}

	if cfg.Auth.Enabled {
		var sessions auth.SessionStorage
		if cfg.Redis.Enabled {
			sessions, err = auth.NewRedisSessionStorage(cfg.Redis)
			if err != nil {
				logger.Error("failed to connect to Redis", "error", err)
				os.Exit(1)
			}
		} else {
			sessions = auth.NewMemorySessionStorage()
		}
		deps.Sessions = auth.NewManager(cfg.Auth.Users, sessions, cfg.Auth.SessionTTL)
	}

	server := api.NewServer(cfg, logger, deps)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting API server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if deps.Sessions != nil {
		if err := deps.Sessions.Close(); err != nil {
			logger.Error("session storage close error", "error", err)
		}
	}
	if mongoClient != nil {
		if err := mongoClient.Close(shutdownCtx); err != nil {
			logger.Error("mongo close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
