package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"ai-notetaking-agent/internal/bootstrap"
	"ai-notetaking-agent/internal/config"
	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/internal/server"
	"ai-notetaking-agent/internal/tracer"
	"ai-notetaking-agent/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	bootLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	shutdownTracer := tracer.Init(cfg.Tracing, cfg.App.Environment, bootLogger)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, poolConfig(cfg.Database))
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 4. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. Start Background Services
	if err := container.Start(ctx); err != nil {
		log.Fatalf("Failed to start background services: %v", err)
	}

	// 6. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 7. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
	container.Close()
}

func poolConfig(db config.DatabaseConfig) database.PoolConfig {
	return database.PoolFromConfig(db.MaxIdleConns, db.MaxOpenConns, db.ConnMaxLifetime, db.SlowQuery)
}
