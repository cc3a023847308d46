package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jjesus1982/conecta-plus-sub001/internal/api"
	"github.com/jjesus1982/conecta-plus-sub001/internal/audit"
	"github.com/jjesus1982/conecta-plus-sub001/internal/config"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/jjesus1982/conecta-plus-sub001/internal/health"
	"github.com/jjesus1982/conecta-plus-sub001/internal/identity"
	"github.com/jjesus1982/conecta-plus-sub001/internal/registry"
	"go.uber.org/zap"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	flags, configFile, showVersion := config.ParseFlags()

	// Handle version flag
	if showVersion {
		fmt.Printf("Conecta+ Access Engine v%s\n", version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Conecta+ Access Engine",
		zap.String("version", version),
		zap.String("database", cfg.Database.Type),
	)

	// Initialize database
	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Hydrate the in-memory layers from storage
	ids, err := identity.NewStore(db, logger)
	if err != nil {
		logger.Fatal("Failed to load identity store", zap.Error(err))
	}

	reg, err := registry.New(db, logger)
	if err != nil {
		logger.Fatal("Failed to load access point registry", zap.Error(err))
	}

	auditLog, err := audit.New(db, logger)
	if err != nil {
		logger.Fatal("Failed to open audit log", zap.Error(err))
	}

	// Event fan-out to dashboards
	hub := events.NewHub(logger)
	go hub.Run()
	broadcaster := events.NewBroadcaster(hub, logger)

	// Background schedulers
	checker := health.NewChecker(reg, ids, broadcaster, cfg.Health, logger)
	if err := checker.Start(); err != nil {
		logger.Fatal("Failed to start health schedulers", zap.Error(err))
	}
	defer checker.Stop()

	// Initialize router
	router := api.NewRouter(api.Deps{
		Config:      cfg,
		DB:          db,
		Identity:    ids,
		Registry:    reg,
		AuditLog:    auditLog,
		Hub:         hub,
		Broadcaster: broadcaster,
		Logger:      logger,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", srv.Addr),
			zap.Bool("tls", cfg.Server.TLSEnabled),
		)

		var err error
		if cfg.Server.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Set log level
	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zapConfig.Build()
}
